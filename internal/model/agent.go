// Package model defines the domain types persisted by the indexer and
// consumed by the scoring and oracle pipelines.
package model

import "time"

// Agent is an on-chain registered identity. The id is the registry's
// uint256 agent id rendered as a decimal string; it never changes after
// the first Registered event.
type Agent struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	MetadataURI string    `json:"metadata_uri,omitempty"`
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
