// Package store is the conversation persistence engine: relational
// schema, content-addressed deduplication of shared rows, incremental
// save / draft lifecycle, and orphan garbage collection over an embedded
// SQLite database.
package store

import "time"

// Conversation is the root row. Deleting it cascades to its blocks and
// system-prompt links; shared system_prompts/attachments rows are left
// for the orphan sweep.
type Conversation struct {
	ID        uint64  `gorm:"primaryKey;autoIncrement"`
	Title     *string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index:idx_conversations_updated,sort:desc"`

	SystemPromptLinks []ConversationSystemPrompt `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
	Blocks            []MessageBlock             `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

func (Conversation) TableName() string { return "conversations" }

// SystemPrompt stores deduplicated system prompts keyed by content hash.
type SystemPrompt struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	ContentHash string `gorm:"type:varchar(64);uniqueIndex;not null"`
	Content     string `gorm:"type:text;not null"`
}

func (SystemPrompt) TableName() string { return "system_prompts" }

// ConversationSystemPrompt links a conversation to a shared system
// prompt at a position. The prompt itself is never owned: the FK carries
// no cascade, only the orphan sweep may remove prompt rows.
type ConversationSystemPrompt struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	ConversationID uint64 `gorm:"not null;uniqueIndex:uniq_conv_sys_position,priority:1;index:idx_conv_sys_prompts_conv"`
	SystemPromptID uint64 `gorm:"not null;index"`
	Position       int    `gorm:"not null;uniqueIndex:uniq_conv_sys_position,priority:2"`

	SystemPrompt SystemPrompt `gorm:"foreignKey:SystemPromptID"`
	// Removing a link detaches its blocks, it never deletes them.
	Blocks []MessageBlock `gorm:"foreignKey:SystemPromptLinkID;constraint:OnDelete:SET NULL"`
}

func (ConversationSystemPrompt) TableName() string { return "conversation_system_prompts" }

// MessageBlock is one request/response exchange within a conversation.
type MessageBlock struct {
	ID                 uint64 `gorm:"primaryKey;autoIncrement"`
	ConversationID     uint64 `gorm:"not null;uniqueIndex:uniq_block_conv_position,priority:1;index:idx_message_blocks_conversation,priority:1"`
	Position           int    `gorm:"not null;uniqueIndex:uniq_block_conv_position,priority:2;index:idx_message_blocks_conversation,priority:2"`
	SystemPromptLinkID *uint64
	ModelProvider      string  `gorm:"type:varchar(64);not null"`
	ModelID            string  `gorm:"type:varchar(128);not null"`
	Temperature        float64 `gorm:"not null;default:1"`
	MaxTokens          int     `gorm:"not null;default:4096"`
	TopP               float64 `gorm:"not null;default:1"`
	Stream             bool    `gorm:"not null;default:false"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	SystemPromptLink *ConversationSystemPrompt `gorm:"foreignKey:SystemPromptLinkID"`
	Messages         []Message                 `gorm:"foreignKey:MessageBlockID;constraint:OnDelete:CASCADE"`
}

func (MessageBlock) TableName() string { return "message_blocks" }

// Message is the user or assistant half of a block. The unique
// (block, role) pair caps a block at one message per role; the presence
// of the assistant row is what distinguishes a completed block from a
// draft.
type Message struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	MessageBlockID uint64 `gorm:"not null;uniqueIndex:uniq_message_block_role,priority:1;index:idx_messages_block"`
	Role           string `gorm:"type:varchar(16);not null;uniqueIndex:uniq_message_block_role,priority:2"`
	Content        string `gorm:"type:text;not null"`

	AttachmentLinks []MessageAttachment `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
	Citations       []Citation          `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (Message) TableName() string { return "messages" }

// Attachment stores deduplicated attachment content keyed by hash.
// Per-link metadata (description) lives on MessageAttachment, never here.
type Attachment struct {
	ID           uint64  `gorm:"primaryKey;autoIncrement"`
	ContentHash  string  `gorm:"type:varchar(64);uniqueIndex;not null"`
	Name         *string `gorm:"type:varchar(255)"`
	MimeType     *string `gorm:"type:varchar(128)"`
	Size         *int64
	LocationType string  `gorm:"type:varchar(16);not null"`
	URL          *string `gorm:"type:text"`
	BlobData     []byte  `gorm:"type:blob"`
	IsImage      bool    `gorm:"not null;default:false"`
	ImageWidth   *int
	ImageHeight  *int
}

func (Attachment) TableName() string { return "attachments" }

// MessageAttachment links a message to a shared attachment at a position.
type MessageAttachment struct {
	ID           uint64  `gorm:"primaryKey;autoIncrement"`
	MessageID    uint64  `gorm:"not null;uniqueIndex:uniq_msg_att_position,priority:1"`
	AttachmentID uint64  `gorm:"not null;index"`
	Position     int     `gorm:"not null;uniqueIndex:uniq_msg_att_position,priority:2"`
	Description  *string `gorm:"type:text"`

	Attachment Attachment `gorm:"foreignKey:AttachmentID"`
}

func (MessageAttachment) TableName() string { return "message_attachments" }

// Citation is owned by its message and dies with it.
type Citation struct {
	ID          uint64  `gorm:"primaryKey;autoIncrement"`
	MessageID   uint64  `gorm:"not null;index"`
	Position    int     `gorm:"not null"`
	CitedText   *string `gorm:"type:text"`
	SourceTitle *string `gorm:"type:text"`
	SourceURL   *string `gorm:"type:text"`
	StartIndex  *int
	EndIndex    *int
}

func (Citation) TableName() string { return "citations" }

// AllModels lists every table in dependency order, for migration.
func AllModels() []any {
	return []any{
		&Conversation{},
		&SystemPrompt{},
		&ConversationSystemPrompt{},
		&MessageBlock{},
		&Message{},
		&Attachment{},
		&MessageAttachment{},
		&Citation{},
	}
}
