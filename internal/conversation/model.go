// Package conversation holds the value objects exchanged with the
// persistence engine. None of these types know anything about rows or
// the database; they are what the GUI and provider layers pass around.
package conversation

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ModelInfo identifies the provider/model pair a block was generated with.
type ModelInfo struct {
	ProviderID string `json:"provider_id"`
	ModelID    string `json:"model_id"`
}

// AttachmentLocation tells where an attachment's content lives.
type AttachmentLocation string

const (
	LocationLocal  AttachmentLocation = "local"
	LocationMemory AttachmentLocation = "memory"
	LocationURL    AttachmentLocation = "url"
)

// Attachment is a file or URL attached to a user message. For URL
// attachments the content is the URL itself; for everything else Data
// carries the raw bytes so the content stays readable after a reload.
type Attachment struct {
	Location    AttachmentLocation `json:"location_type"`
	URL         string             `json:"url,omitempty"`
	Data        []byte             `json:"data,omitempty"`
	Name        *string            `json:"name,omitempty"`
	MimeType    *string            `json:"mime_type,omitempty"`
	Size        *int64             `json:"size,omitempty"`
	Description *string            `json:"description,omitempty"`
	IsImage     bool               `json:"is_image,omitempty"`
	Width       *int               `json:"width,omitempty"`
	Height      *int               `json:"height,omitempty"`
}

// Citation is a source reference attached to an assistant message.
type Citation struct {
	CitedText   *string `json:"cited_text,omitempty"`
	SourceTitle *string `json:"source_title,omitempty"`
	SourceURL   *string `json:"source_url,omitempty"`
	StartIndex  *int    `json:"start_index,omitempty"`
	EndIndex    *int    `json:"end_index,omitempty"`
}

// Message is a single user or assistant message within a block.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Citations   []Citation   `json:"citations,omitempty"`
}

// SystemMessage is a system prompt shared across blocks and conversations.
type SystemMessage struct {
	Content string `json:"content"`
}

// MessageBlock is one request/response exchange plus the generation
// parameters it was made with. A block with a nil Response is a draft.
type MessageBlock struct {
	Request     Message   `json:"request"`
	Response    *Message  `json:"response,omitempty"`
	SystemIndex *int      `json:"system_index,omitempty"`
	Model       ModelInfo `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	TopP        float64   `json:"top_p"`
	Stream      bool      `json:"stream"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewMessageBlock builds a block with the default generation parameters.
func NewMessageBlock(request Message, model ModelInfo) MessageBlock {
	now := time.Now().UTC().Truncate(time.Second)
	return MessageBlock{
		Request:     request,
		Model:       model,
		Temperature: 1,
		MaxTokens:   4096,
		TopP:        1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsDraft reports whether the block is still waiting for a response.
func (b *MessageBlock) IsDraft() bool { return b.Response == nil }

// Conversation is an ordered list of message blocks plus the distinct
// system prompts they reference. Blocks address their prompt through
// SystemIndex, an index into Systems.
type Conversation struct {
	Title   *string         `json:"title,omitempty"`
	Systems []SystemMessage `json:"systems,omitempty"`
	Blocks  []MessageBlock  `json:"messages"`
}

// AddBlock appends a block, registering its system prompt in Systems.
// Identical prompt content is reused rather than appended twice.
func (c *Conversation) AddBlock(block MessageBlock, system *SystemMessage) {
	if system != nil {
		idx := -1
		for i, s := range c.Systems {
			if s.Content == system.Content {
				idx = i
				break
			}
		}
		if idx == -1 {
			c.Systems = append(c.Systems, *system)
			idx = len(c.Systems) - 1
		}
		block.SystemIndex = &idx
	}
	c.Blocks = append(c.Blocks, block)
}
