package models

import (
	"time"

	"github.com/google/uuid"
)

// Commitment statuses
const (
	CommitmentStatusPending   = "pending"   // prepared, commit tx not seen yet
	CommitmentStatusCommitted = "committed" // Committed event indexed, age window running
	CommitmentStatusRevealed  = "revealed"
	CommitmentStatusExpired   = "expired"
)

// Valid state transitions: from -> []to
var ValidCommitmentTransitions = map[string][]string{
	CommitmentStatusPending:   {CommitmentStatusCommitted, CommitmentStatusExpired},
	CommitmentStatusCommitted: {CommitmentStatusRevealed, CommitmentStatusExpired},
	CommitmentStatusRevealed:  {},
	// a pending record expired by the sweep may still see its commit tx land
	CommitmentStatusExpired: {CommitmentStatusCommitted},
}

func IsValidCommitmentTransition(from, to string) bool {
	allowed, ok := ValidCommitmentTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Commitment is a prepared registration kept until it is revealed or expires.
// Hex fields are 0x-prefixed lowercase. Data and the name stay out of JSON:
// the hash is public on chain and must not lead back to the name before the
// reveal.
type Commitment struct {
	ID         uuid.UUID `json:"id"`
	Hash       string    `json:"hash"`
	Data       string    `json:"-"` // years ++ id ++ secret, needed for the reveal
	Caller     string    `json:"caller"`
	Recipient  string    `json:"recipient"`
	RegisterTo bool      `json:"register_to"`
	NameID     string    `json:"-"`
	Proquint   string    `json:"-"`
	Years      int       `json:"years"`
	ValueWei   string    `json:"value_wei"`
	Status     string    `json:"status"`
	// CreatedAt is the block time of the commit tx; nil until it is indexed.
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	CommitTxHash *string    `json:"commit_tx_hash,omitempty"`
	RevealedAt   *time.Time `json:"revealed_at,omitempty"`
	PreparedAt   time.Time  `json:"prepared_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CanConfirm reports whether a commit tx may still be attached: it has not
// been seen yet and the record was not revealed.
func (c *Commitment) CanConfirm() bool {
	return c.CreatedAt == nil && IsValidCommitmentTransition(c.Status, CommitmentStatusCommitted)
}

// CanReveal reports whether the record may move to revealed.
func (c *Commitment) CanReveal() bool {
	return c.CreatedAt != nil && c.Status == CommitmentStatusCommitted
}
