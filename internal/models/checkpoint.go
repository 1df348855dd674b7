package models

import "time"

// ThreadVariant distinguishes the conversations kept for one collection.
type ThreadVariant string

const (
	// VariantPrimary is the user-facing conversation.
	VariantPrimary ThreadVariant = ""
	// VariantAsk is the sub-agent conversation used by the query tool.
	VariantAsk ThreadVariant = "ask"
)

// ThreadID derives the canonical thread identifier for a key and variant.
// Keys that pass Validate never contain ':', so the mapping is injective.
func ThreadID(key CollectionKey, variant ThreadVariant) string {
	id := key.UserID + ":" + key.CollectionID
	if variant != VariantPrimary {
		id += ":" + string(variant)
	}
	return id
}

// ThreadCheckpoint is the persisted snapshot of a thread between turns.
type ThreadCheckpoint struct {
	ThreadID string            `json:"thread_id"`
	Key      CollectionKey     `json:"key"`
	Variant  ThreadVariant     `json:"variant"`
	Step     string            `json:"step"`
	State    ConversationState `json:"state"`

	// Version is the stored revision the checkpoint was loaded at. Zero means
	// the thread has never been committed.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}
