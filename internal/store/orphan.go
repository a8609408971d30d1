package store

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Orphan collection. Shared dedup rows (attachments, system prompts) are
// never deleted by conversation cascades; this is the only code path
// allowed to remove them, and only when no link row references them
// anywhere in the store.

// CleanupOrphanAttachments deletes every attachment with zero referencing
// links, store-wide, and returns how many rows were removed. It runs at
// the end of DeleteConversation and is safe to call standalone.
func (r *Repo) CleanupOrphanAttachments(ctx context.Context) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		removed, err = cleanupOrphanAttachmentsTx(tx)
		return err
	})
	return removed, err
}

// CleanupOrphanSystemPrompts is the symmetric sweep for system prompts.
func (r *Repo) CleanupOrphanSystemPrompts(ctx context.Context) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		removed, err = cleanupOrphanSystemPromptsTx(tx)
		return err
	})
	return removed, err
}

func cleanupOrphanAttachmentsTx(tx *gorm.DB) (int64, error) {
	res := tx.Exec("DELETE FROM attachments WHERE id NOT IN (SELECT attachment_id FROM message_attachments)")
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Debug().Int64("removed", res.RowsAffected).Msg("removed orphan attachments")
	}
	return res.RowsAffected, nil
}

func cleanupOrphanSystemPromptsTx(tx *gorm.DB) (int64, error) {
	res := tx.Exec("DELETE FROM system_prompts WHERE id NOT IN (SELECT system_prompt_id FROM conversation_system_prompts)")
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Debug().Int64("removed", res.RowsAffected).Msg("removed orphan system prompts")
	}
	return res.RowsAffected, nil
}
