package core

import (
	"context"
	"time"
)

// User is the persisted identity record of a trainee.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Identity string `json:"identity"`
}

// TurnRecord is the durable form of a single conversation turn. The sender
// and recipient labels preserve who was talking to whom at save time, so the
// transcript stays readable without joining against session state.
type TurnRecord struct {
	SessionID      string    `json:"session_id"`
	Identity       string    `json:"identity"`
	SenderRole     Speaker   `json:"sender_role"`
	SenderLabel    string    `json:"sender_label"`
	RecipientLabel string    `json:"recipient_label"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// ResultRecord is the durable form of a debrief evaluation.
type ResultRecord struct {
	SessionID string    `json:"session_id"`
	Identity  string    `json:"identity"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore persists users, turns and debrief results.
//
// Contract:
//   - SaveUser is idempotent on identity: saving a known identity returns
//     the existing record without error
//   - SaveTurn and SaveResult are append-only; duplicates are possible when
//     callers retry after partial failures and are tolerated
//   - Callers never roll back conversation state when a write fails
type TranscriptStore interface {
	SaveUser(ctx context.Context, name, identity string) (User, error)
	SaveTurn(ctx context.Context, rec TurnRecord) error
	SaveResult(ctx context.Context, rec ResultRecord) error
}
