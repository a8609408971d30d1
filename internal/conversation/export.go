package conversation

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/oklog/ulid/v2"
)

// Export writes the conversation to path as indented JSON.
func (c *Conversation) Export(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Open reads a conversation previously written by Export.
func Open(path string) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

// DefaultExportName returns a unique, sortable filename for an export.
func DefaultExportName() string {
	return fmt.Sprintf("conversation-%s.json", ulid.Make().String())
}
