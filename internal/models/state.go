package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey indicates a user or collection identifier that cannot be used as a storage key.
var ErrInvalidKey = errors.New("invalid collection key")

// CollectionKey identifies one user's collection. It partitions the
// similarity index, the raw documents and the conversation threads.
type CollectionKey struct {
	UserID       string `json:"user_id"`
	CollectionID string `json:"collection_id"`
}

// NewCollectionKey builds and validates a key.
func NewCollectionKey(userID, collectionID string) (CollectionKey, error) {
	k := CollectionKey{UserID: strings.TrimSpace(userID), CollectionID: strings.TrimSpace(collectionID)}
	return k, k.Validate()
}

// Validate rejects identifiers that are empty or could escape a storage partition.
func (k CollectionKey) Validate() error {
	if err := validateSegment(k.UserID); err != nil {
		return fmt.Errorf("%w: user id %q: %v", ErrInvalidKey, k.UserID, err)
	}
	if err := validateSegment(k.CollectionID); err != nil {
		return fmt.Errorf("%w: collection id %q: %v", ErrInvalidKey, k.CollectionID, err)
	}
	return nil
}

func validateSegment(v string) error {
	switch {
	case v == "":
		return errors.New("empty")
	case v == "." || v == "..":
		return errors.New("reserved name")
	case strings.ContainsAny(v, `/\:`):
		return errors.New("contains a path or thread separator")
	case strings.ContainsFunc(v, func(r rune) bool { return r < 0x20 || r == 0x7f }):
		return errors.New("contains control characters")
	}
	return nil
}

func (k CollectionKey) String() string {
	return k.UserID + "/" + k.CollectionID
}

// RetrievedDocument is one chunk returned by retrieval, with its provenance.
type RetrievedDocument struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Page       int     `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// ConversationState is the data threaded through a graph run.
type ConversationState struct {
	Key      CollectionKey       `json:"key"`
	Question string              `json:"question"`
	Docs     []RetrievedDocument `json:"docs,omitempty"`
	Answer   string              `json:"answer,omitempty"`
	Messages []Message           `json:"messages,omitempty"`

	// LastResponse holds the latest assistant message while its tool call is pending.
	LastResponse *Message `json:"last_response,omitempty"`
}

// Append adds messages to the history.
func (s *ConversationState) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// LastAssistantText returns the content of the most recent assistant
// message that carries no tool calls.
func (s *ConversationState) LastAssistantText() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].IsFinalAnswer() {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

// Clone returns a deep enough copy for a turn to mutate without touching the original.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.Docs = append([]RetrievedDocument(nil), s.Docs...)
	out.Messages = append([]Message(nil), s.Messages...)
	if s.LastResponse != nil {
		lr := *s.LastResponse
		out.LastResponse = &lr
	}
	return out
}
