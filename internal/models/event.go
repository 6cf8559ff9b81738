package models

import (
	"sort"
	"time"
)

// Contract event types
const (
	EventTransfer       = "Transfer"
	EventPrimaryUpdated = "PrimaryUpdated"
	EventInboxUpdated   = "InboxUpdated"
	EventRenewed        = "Renewed"
	EventCommitted      = "Committed"
)

// ChainEvent is one decoded registry log. (TxHash, LogIndex) identifies it.
type ChainEvent struct {
	Type        string         `json:"type"`
	BlockNumber uint64         `json:"block_number"`
	BlockTime   *time.Time     `json:"block_time,omitempty"`
	TxHash      string         `json:"tx_hash"`
	LogIndex    uint           `json:"log_index"`
	User        string         `json:"user,omitempty"` // affected account, lowercase hex
	NameID      string         `json:"name_id,omitempty"`
	Args        map[string]any `json:"args"`
}

type eventKey struct {
	tx  string
	idx uint
}

// DedupeEvents drops repeated (TxHash, LogIndex) pairs, keeping the first,
// and returns the rest ordered by (BlockNumber, LogIndex).
func DedupeEvents(events []ChainEvent) []ChainEvent {
	seen := make(map[eventKey]struct{}, len(events))
	out := make([]ChainEvent, 0, len(events))
	for _, e := range events {
		k := eventKey{e.TxHash, e.LogIndex}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	SortEvents(out)
	return out
}

func SortEvents(events []ChainEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
}
