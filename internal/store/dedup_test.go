package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"convstore/internal/conversation"
)

func convWithSystem(content string) *conversation.Conversation {
	conv := &conversation.Conversation{}
	blk := completedBlock("q", "a")
	conv.AddBlock(blk, &conversation.SystemMessage{Content: content})
	return conv
}

func convWithAttachment(att conversation.Attachment) *conversation.Conversation {
	req := userMessage("msg")
	req.Attachments = []conversation.Attachment{att}
	conv := &conversation.Conversation{}
	conv.AddBlock(conversation.NewMessageBlock(req, testModel()), nil)
	return conv
}

func TestSystemPromptDedupAcrossConversations(t *testing.T) {
	gdb := openTestDB(t)
	repo := NewRepo(gdb)
	ctx := context.Background()

	_, err := repo.SaveConversation(ctx, convWithSystem("shared instructions"))
	require.NoError(t, err)
	_, err = repo.SaveConversation(ctx, convWithSystem("shared instructions"))
	require.NoError(t, err)

	var promptCount int64
	require.NoError(t, gdb.Model(&SystemPrompt{}).Count(&promptCount).Error)
	require.EqualValues(t, 1, promptCount)

	// Two links, one shared prompt row.
	var linkCount int64
	require.NoError(t, gdb.Model(&ConversationSystemPrompt{}).Count(&linkCount).Error)
	require.EqualValues(t, 2, linkCount)
}

func TestAttachmentDedupIgnoresMetadata(t *testing.T) {
	gdb := openTestDB(t)
	repo := NewRepo(gdb)
	ctx := context.Background()

	payload := []byte("identical bytes")

	_, err := repo.SaveConversation(ctx, convWithAttachment(conversation.Attachment{
		Location:    conversation.LocationLocal,
		Data:        payload,
		Name:        strPtr("first.txt"),
		Description: strPtr("first copy"),
	}))
	require.NoError(t, err)

	id2, err := repo.SaveConversation(ctx, convWithAttachment(conversation.Attachment{
		Location:    conversation.LocationLocal,
		Data:        payload,
		Name:        strPtr("second.txt"),
		Description: strPtr("second copy"),
	}))
	require.NoError(t, err)

	var attCount int64
	require.NoError(t, gdb.Model(&Attachment{}).Count(&attCount).Error)
	require.EqualValues(t, 1, attCount)

	// Per-link metadata survives on the link row.
	loaded, err := repo.LoadConversation(ctx, id2)
	require.NoError(t, err)
	att := loaded.Blocks[0].Request.Attachments[0]
	require.Equal(t, "second copy", *att.Description)
	// Shared-row metadata belongs to the first writer.
	require.Equal(t, "first.txt", *att.Name)
}

func TestURLAttachmentsDedupByURL(t *testing.T) {
	gdb := openTestDB(t)
	repo := NewRepo(gdb)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := repo.SaveConversation(ctx, convWithAttachment(conversation.Attachment{
			Location: conversation.LocationURL,
			URL:      "https://example.com/shared.pdf",
		}))
		require.NoError(t, err)
	}

	var attCount int64
	require.NoError(t, gdb.Model(&Attachment{}).Count(&attCount).Error)
	require.EqualValues(t, 1, attCount)
}

func TestGetOrCreateSystemPromptReturnsExisting(t *testing.T) {
	gdb := openTestDB(t)

	firstID, err := getOrCreateSystemPrompt(gdb, "the prompt")
	require.NoError(t, err)
	secondID, err := getOrCreateSystemPrompt(gdb, "the prompt")
	require.NoError(t, err)
	require.Equal(t, firstID, secondID)

	otherID, err := getOrCreateSystemPrompt(gdb, "a different prompt")
	require.NoError(t, err)
	require.NotEqual(t, firstID, otherID)
}

func TestGetOrCreateSystemPromptRecoversFromRace(t *testing.T) {
	gdb := openTestDB(t)

	// Simulate losing the insert race: the row exists before our insert
	// attempt, inserted under the same hash by "someone else".
	hash := hashBytes([]byte("contested"))
	require.NoError(t, gdb.Create(&SystemPrompt{ContentHash: hash, Content: "contested"}).Error)

	id, err := getOrCreateSystemPrompt(gdb, "contested")
	require.NoError(t, err)

	var row SystemPrompt
	require.NoError(t, gdb.Where("content_hash = ?", hash).First(&row).Error)
	require.Equal(t, row.ID, id)
}

func TestUnreadableAttachmentIsSkipped(t *testing.T) {
	gdb := openTestDB(t)
	repo := NewRepo(gdb)
	ctx := context.Background()

	// A local attachment with no bytes cannot be hashed; the message is
	// kept, the attachment dropped.
	id, err := repo.SaveConversation(ctx, convWithAttachment(conversation.Attachment{
		Location: conversation.LocationLocal,
		Name:     strPtr("ghost.bin"),
	}))
	require.NoError(t, err)

	loaded, err := repo.LoadConversation(ctx, id)
	require.NoError(t, err)
	require.Empty(t, loaded.Blocks[0].Request.Attachments)
}
