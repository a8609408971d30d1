package store

import (
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"convstore/internal/conversation"
)

// Serialization: domain values to rows. Positions always come from the
// caller's list order, never from insertion order, so save and load stay
// symmetric.

func insertBlockTx(tx *gorm.DB, convID uint64, position int, blk *conversation.MessageBlock, linkID *uint64, includeResponse bool) error {
	row := MessageBlock{
		ConversationID:     convID,
		Position:           position,
		SystemPromptLinkID: linkID,
		ModelProvider:      blk.Model.ProviderID,
		ModelID:            blk.Model.ModelID,
		Temperature:        blk.Temperature,
		MaxTokens:          blk.MaxTokens,
		TopP:               blk.TopP,
		Stream:             blk.Stream,
		CreatedAt:          blk.CreatedAt,
		UpdatedAt:          blk.UpdatedAt,
	}
	if err := tx.Create(&row).Error; err != nil {
		return err
	}

	if err := insertMessageTx(tx, row.ID, conversation.RoleUser, &blk.Request); err != nil {
		return err
	}
	if includeResponse && blk.Response != nil {
		if err := insertMessageTx(tx, row.ID, conversation.RoleAssistant, blk.Response); err != nil {
			return err
		}
	}
	return nil
}

func insertMessageTx(tx *gorm.DB, blockID uint64, role conversation.Role, msg *conversation.Message) error {
	row := Message{
		MessageBlockID: blockID,
		Role:           string(role),
		Content:        msg.Content,
	}
	if err := tx.Create(&row).Error; err != nil {
		return err
	}

	linkPos := 0
	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		attID, err := getOrCreateAttachment(tx, att)
		if errors.Is(err, errNoContent) {
			// Unreadable attachment: keep the message, drop the file.
			log.Warn().Err(err).Msg("skipping unreadable attachment")
			continue
		}
		if err != nil {
			return err
		}
		link := MessageAttachment{
			MessageID:    row.ID,
			AttachmentID: attID,
			Position:     linkPos,
			Description:  att.Description,
		}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
		linkPos++
	}

	for pos := range msg.Citations {
		cit := &msg.Citations[pos]
		citRow := Citation{
			MessageID:   row.ID,
			Position:    pos,
			CitedText:   cit.CitedText,
			SourceTitle: cit.SourceTitle,
			SourceURL:   cit.SourceURL,
			StartIndex:  cit.StartIndex,
			EndIndex:    cit.EndIndex,
		}
		if err := tx.Create(&citRow).Error; err != nil {
			return err
		}
	}
	return nil
}

// resolveSystemPromptLink finds or creates the conversation-system-prompt
// link a block points at, returning nil when the block has none.
func resolveSystemPromptLink(tx *gorm.DB, convID uint64, blk *conversation.MessageBlock, system *conversation.SystemMessage) (*uint64, error) {
	if system == nil || blk.SystemIndex == nil {
		return nil, nil
	}

	spID, err := getOrCreateSystemPrompt(tx, system.Content)
	if err != nil {
		return nil, err
	}

	var link ConversationSystemPrompt
	err = tx.Where("conversation_id = ? AND position = ?", convID, *blk.SystemIndex).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		link = ConversationSystemPrompt{
			ConversationID: convID,
			SystemPromptID: spID,
			Position:       *blk.SystemIndex,
		}
		err = tx.Create(&link).Error
	}
	if err != nil {
		return nil, err
	}
	return &link.ID, nil
}

// deleteBlockAt removes any block occupying position, cascading to its
// messages, citations and attachment links. Used to replace drafts in
// place without tripping the (conversation_id, position) constraint.
func deleteBlockAt(tx *gorm.DB, convID uint64, position int) error {
	res := tx.Where("conversation_id = ? AND position = ?", convID, position).
		Delete(&MessageBlock{})
	return res.Error
}

// Deserialization: the preloaded row graph back to domain values.

// toDomainConversation rebuilds the value object from a fully preloaded
// conversation row. Systems holds the distinct prompt rows actually
// referenced, in first-seen link order; each block's SystemIndex is
// rewired to its prompt's index in that list.
func toDomainConversation(row *Conversation) *conversation.Conversation {
	out := &conversation.Conversation{Title: row.Title}

	promptIndex := make(map[uint64]int)
	linkPrompt := make(map[uint64]uint64, len(row.SystemPromptLinks))
	for i := range row.SystemPromptLinks {
		link := &row.SystemPromptLinks[i]
		linkPrompt[link.ID] = link.SystemPromptID
		if _, seen := promptIndex[link.SystemPromptID]; !seen {
			promptIndex[link.SystemPromptID] = len(out.Systems)
			out.Systems = append(out.Systems, conversation.SystemMessage{
				Content: link.SystemPrompt.Content,
			})
		}
	}

	for i := range row.Blocks {
		blockRow := &row.Blocks[i]

		var request, response *conversation.Message
		for j := range blockRow.Messages {
			msgRow := &blockRow.Messages[j]
			switch msgRow.Role {
			case string(conversation.RoleUser):
				request = toDomainMessage(msgRow, conversation.RoleUser)
			case string(conversation.RoleAssistant):
				response = toDomainMessage(msgRow, conversation.RoleAssistant)
			}
		}
		if request == nil {
			log.Warn().Uint64("block_id", blockRow.ID).
				Msg("block has no user message, skipping")
			continue
		}

		var systemIndex *int
		if blockRow.SystemPromptLinkID != nil {
			if spID, ok := linkPrompt[*blockRow.SystemPromptLinkID]; ok {
				idx := promptIndex[spID]
				systemIndex = &idx
			}
		}

		out.Blocks = append(out.Blocks, conversation.MessageBlock{
			Request:     *request,
			Response:    response,
			SystemIndex: systemIndex,
			Model: conversation.ModelInfo{
				ProviderID: blockRow.ModelProvider,
				ModelID:    blockRow.ModelID,
			},
			Temperature: blockRow.Temperature,
			MaxTokens:   blockRow.MaxTokens,
			TopP:        blockRow.TopP,
			Stream:      blockRow.Stream,
			CreatedAt:   blockRow.CreatedAt,
			UpdatedAt:   blockRow.UpdatedAt,
		})
	}
	return out
}

func toDomainMessage(row *Message, role conversation.Role) *conversation.Message {
	msg := &conversation.Message{Role: role, Content: row.Content}

	for i := range row.AttachmentLinks {
		link := &row.AttachmentLinks[i]
		att := toDomainAttachment(&link.Attachment, link.Description)
		if att != nil {
			msg.Attachments = append(msg.Attachments, *att)
		}
	}

	for i := range row.Citations {
		cit := &row.Citations[i]
		msg.Citations = append(msg.Citations, conversation.Citation{
			CitedText:   cit.CitedText,
			SourceTitle: cit.SourceTitle,
			SourceURL:   cit.SourceURL,
			StartIndex:  cit.StartIndex,
			EndIndex:    cit.EndIndex,
		})
	}
	return msg
}

// toDomainAttachment rebuilds an attachment with readable content: URL
// rows keep their URL, blob rows come back as in-memory bytes.
func toDomainAttachment(row *Attachment, description *string) *conversation.Attachment {
	att := &conversation.Attachment{
		Name:        row.Name,
		MimeType:    row.MimeType,
		Size:        row.Size,
		Description: description,
		IsImage:     row.IsImage,
		Width:       row.ImageWidth,
		Height:      row.ImageHeight,
	}
	if row.LocationType == string(conversation.LocationURL) {
		att.Location = conversation.LocationURL
		if row.URL != nil {
			att.URL = *row.URL
		}
		return att
	}
	if row.BlobData == nil {
		log.Warn().Uint64("attachment_id", row.ID).
			Msg("attachment has no blob data")
		return nil
	}
	att.Location = conversation.LocationMemory
	att.Data = row.BlobData
	return att
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
