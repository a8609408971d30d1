package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"convstore/internal/conversation"
)

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// getOrCreateSystemPrompt returns the id of the system_prompts row for
// content, inserting it when absent. A lost insert race is resolved by
// re-querying the hash: first writer wins, the caller never sees the
// unique violation.
func getOrCreateSystemPrompt(tx *gorm.DB, content string) (uint64, error) {
	hash := hashBytes([]byte(content))

	var sp SystemPrompt
	err := tx.Where("content_hash = ?", hash).First(&sp).Error
	if err == nil {
		return sp.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	sp = SystemPrompt{ContentHash: hash, Content: content}
	if createErr := tx.Create(&sp).Error; createErr != nil {
		var existing SystemPrompt
		if err := tx.Where("content_hash = ?", hash).First(&existing).Error; err == nil {
			return existing.ID, nil
		}
		return 0, createErr
	}
	return sp.ID, nil
}

// errNoContent marks an attachment whose bytes cannot be read. The
// mapper drops such attachments instead of failing the whole save.
var errNoContent = errors.New("attachment has no readable content")

// attachmentContent returns the bytes an attachment is hashed over: the
// URL string for URL attachments, the raw blob for everything else.
func attachmentContent(att *conversation.Attachment) ([]byte, error) {
	if att.Location == conversation.LocationURL {
		return []byte(att.URL), nil
	}
	if att.Data == nil {
		return nil, fmt.Errorf("%q: %w", strOrEmpty(att.Name), errNoContent)
	}
	return att.Data, nil
}

// getOrCreateAttachment deduplicates an attachment by content hash.
// Metadata differences (name, mime type) do not defeat deduplication:
// two byte-identical attachments share one row, and the first writer's
// metadata sticks.
func getOrCreateAttachment(tx *gorm.DB, att *conversation.Attachment) (uint64, error) {
	content, err := attachmentContent(att)
	if err != nil {
		return 0, err
	}
	hash := hashBytes(content)

	var existing Attachment
	err = tx.Where("content_hash = ?", hash).First(&existing).Error
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	isURL := att.Location == conversation.LocationURL
	row := Attachment{
		ContentHash:  hash,
		Name:         att.Name,
		MimeType:     att.MimeType,
		Size:         att.Size,
		LocationType: string(att.Location),
		IsImage:      att.IsImage,
		ImageWidth:   att.Width,
		ImageHeight:  att.Height,
	}
	if isURL {
		url := att.URL
		row.URL = &url
	} else {
		row.BlobData = content
	}

	if createErr := tx.Create(&row).Error; createErr != nil {
		if err := tx.Where("content_hash = ?", hash).First(&existing).Error; err == nil {
			return existing.ID, nil
		}
		return 0, createErr
	}
	return row.ID, nil
}
