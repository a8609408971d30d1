package store

import "errors"

// ErrNotFound is returned by LoadConversation for an unknown id. Callers
// should treat it as a stale id, not a transient failure.
var ErrNotFound = errors.New("conversation not found")
