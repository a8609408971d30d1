package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"convstore/internal/conversation"
)

// Repo is the public surface of the persistence engine. Every write
// operation runs inside one transaction: commit on success, rollback on
// any error, connection released on every path.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// SaveConversation inserts the conversation with all its current blocks,
// messages, attachments and system-prompt links, and returns the new id.
func (r *Repo) SaveConversation(ctx context.Context, conv *conversation.Conversation) (uint64, error) {
	var convID uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := Conversation{Title: conv.Title}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		linkIDs := make(map[int]uint64, len(conv.Systems))
		for pos := range conv.Systems {
			spID, err := getOrCreateSystemPrompt(tx, conv.Systems[pos].Content)
			if err != nil {
				return err
			}
			link := ConversationSystemPrompt{
				ConversationID: row.ID,
				SystemPromptID: spID,
				Position:       pos,
			}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
			linkIDs[pos] = link.ID
		}

		for pos := range conv.Blocks {
			blk := &conv.Blocks[pos]
			var linkID *uint64
			if blk.SystemIndex != nil {
				if id, ok := linkIDs[*blk.SystemIndex]; ok {
					linkID = &id
				}
			}
			if err := insertBlockTx(tx, row.ID, pos, blk, linkID, true); err != nil {
				return err
			}
		}

		convID = row.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Debug().Uint64("conversation_id", convID).Msg("saved conversation")
	return convID, nil
}

// SaveMessageBlock upserts a completed block at position. An existing
// block there (typically a draft) is replaced in place.
func (r *Repo) SaveMessageBlock(ctx context.Context, convID uint64, position int, blk *conversation.MessageBlock, system *conversation.SystemMessage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteBlockAt(tx, convID, position); err != nil {
			return err
		}
		linkID, err := resolveSystemPromptLink(tx, convID, blk, system)
		if err != nil {
			return err
		}
		if err := insertBlockTx(tx, convID, position, blk, linkID, true); err != nil {
			return err
		}
		return touchConversation(tx, convID, blk.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("save block %d of conversation %d: %w", position, convID, err)
	}
	log.Debug().Uint64("conversation_id", convID).Int("position", position).
		Msg("saved message block")
	return nil
}

// SaveDraftBlock upserts a draft (user message only) at position.
// Calling it again at the same position overwrites the previous draft.
func (r *Repo) SaveDraftBlock(ctx context.Context, convID uint64, position int, blk *conversation.MessageBlock, system *conversation.SystemMessage) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteBlockAt(tx, convID, position); err != nil {
			return err
		}
		linkID, err := resolveSystemPromptLink(tx, convID, blk, system)
		if err != nil {
			return err
		}
		if err := insertBlockTx(tx, convID, position, blk, linkID, false); err != nil {
			return err
		}
		return touchConversation(tx, convID, blk.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("save draft %d of conversation %d: %w", position, convID, err)
	}
	log.Debug().Uint64("conversation_id", convID).Int("position", position).
		Msg("saved draft block")
	return nil
}

// DeleteDraftBlock removes the block at position only when it has no
// assistant message. A completed block is left untouched, so a stale
// draft-flush timer can never destroy a finished exchange.
func (r *Repo) DeleteDraftBlock(ctx context.Context, convID uint64, position int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row MessageBlock
		err := tx.Preload("Messages").
			Where("conversation_id = ? AND position = ?", convID, position).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		for i := range row.Messages {
			if row.Messages[i].Role == string(conversation.RoleAssistant) {
				return nil
			}
		}
		return tx.Delete(&row).Error
	})
}

// LoadConversation reconstructs the full conversation value object.
func (r *Repo) LoadConversation(ctx context.Context, id uint64) (*conversation.Conversation, error) {
	byPosition := func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }

	var row Conversation
	err := r.db.WithContext(ctx).
		Preload("SystemPromptLinks", byPosition).
		Preload("SystemPromptLinks.SystemPrompt").
		Preload("Blocks", byPosition).
		Preload("Blocks.Messages").
		Preload("Blocks.Messages.AttachmentLinks", byPosition).
		Preload("Blocks.Messages.AttachmentLinks.Attachment").
		Preload("Blocks.Messages.Citations", byPosition).
		First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("conversation %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return toDomainConversation(&row), nil
}

// UpdateConversationTitle sets or clears the title. Unknown ids are a
// silent no-op, matching delete semantics.
func (r *Repo) UpdateConversationTitle(ctx context.Context, id uint64, title *string) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", id).
		Update("title", title).Error
}

// DeleteConversation removes the conversation and everything it owns,
// then sweeps shared rows nothing references anymore. Deleting an
// unknown id is not an error.
func (r *Repo) DeleteConversation(ctx context.Context, id uint64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Conversation{}, id).Error; err != nil {
			return err
		}
		if _, err := cleanupOrphanAttachmentsTx(tx); err != nil {
			return err
		}
		_, err := cleanupOrphanSystemPromptsTx(tx)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete conversation %d: %w", id, err)
	}
	log.Debug().Uint64("conversation_id", id).Msg("deleted conversation")
	return nil
}

// ConversationSummary is one row of the history listing.
type ConversationSummary struct {
	ID           uint64    `json:"id"`
	Title        *string   `json:"title"`
	MessageCount int64     `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListOptions control history listing. Search matches the conversation
// title or any message content, as a case-insensitive substring.
type ListOptions struct {
	Search string
	Limit  int
	Offset int
}

const defaultListLimit = 100

// ListConversations returns summaries ordered by most recently updated.
func (r *Repo) ListConversations(ctx context.Context, opts ListOptions) ([]ConversationSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := r.db.WithContext(ctx).Table("conversations").
		Select("conversations.id, conversations.title, COALESCE(block_counts.cnt, 0) AS message_count, conversations.updated_at").
		Joins("LEFT JOIN (SELECT conversation_id, COUNT(id) AS cnt FROM message_blocks GROUP BY conversation_id) block_counts ON block_counts.conversation_id = conversations.id").
		Order("conversations.updated_at DESC").
		Limit(limit).
		Offset(opts.Offset)
	q = r.applySearchFilter(q, opts.Search)

	var out []ConversationSummary
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ConversationCount counts conversations matching the same filter as
// ListConversations.
func (r *Repo) ConversationCount(ctx context.Context, search string) (int64, error) {
	q := r.db.WithContext(ctx).Table("conversations")
	q = r.applySearchFilter(q, search)
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// applySearchFilter narrows a conversations query to rows whose title or
// message content contains search. SQLite LIKE is case-insensitive for
// ASCII, which is the contract here.
func (r *Repo) applySearchFilter(q *gorm.DB, search string) *gorm.DB {
	if search == "" {
		return q
	}
	pattern := "%" + search + "%"
	matching := r.db.Table("message_blocks").
		Select("DISTINCT message_blocks.conversation_id").
		Joins("JOIN messages ON messages.message_block_id = message_blocks.id").
		Where("messages.content LIKE ?", pattern)
	return q.Where("conversations.title LIKE ? OR conversations.id IN (?)", pattern, matching)
}

// touchConversation refreshes the parent's updated_at after a child
// write.
func touchConversation(tx *gorm.DB, convID uint64, at time.Time) error {
	return tx.Model(&Conversation{}).
		Where("id = ?", convID).
		Update("updated_at", at).Error
}
