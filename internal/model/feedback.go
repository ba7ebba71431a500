package model

import (
	"fmt"
	"time"
)

// Feedback is one reputation signal emitted by an author about a subject
// agent. Rows are append-only; the only permitted mutation after insert is
// the one-way revoked flag, mirroring the source chain's ledger semantics.
type Feedback struct {
	ID            string    `json:"id"`
	Subject       string    `json:"subject"`
	Author        string    `json:"author"`
	Tag1          string    `json:"tag1,omitempty"`
	Tag2          string    `json:"tag2,omitempty"`
	Tag3          string    `json:"tag3,omitempty"`
	Value         int64     `json:"value"`
	ValueDecimals int       `json:"value_decimals"`
	Comment       string    `json:"comment,omitempty"`
	Revoked       bool      `json:"revoked"`
	BlockNumber   uint64    `json:"block_number"`
	TxHash        string    `json:"tx_hash"`
	Timestamp     time.Time `json:"timestamp"`
	CreatedAt     time.Time `json:"created_at"`
}

// FeedbackID builds the deterministic feedback identifier from the event
// components. NewFeedback and FeedbackRevoked both carry these three
// fields, so replays and revocations resolve to the same row.
func FeedbackID(subject, author string, index uint64) string {
	return fmt.Sprintf("%s-%s-%d", subject, author, index)
}
