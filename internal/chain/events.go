package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/proquint-registry/backend/internal/models"
	"github.com/proquint-registry/backend/internal/proquint"
	"go.uber.org/zap"
)

var ErrUnknownEvent = errors.New("unknown event")

var indexedEvents = []string{
	models.EventTransfer,
	models.EventPrimaryUpdated,
	models.EventInboxUpdated,
	models.EventRenewed,
	models.EventCommitted,
}

// EventTopics lists topic0 of every indexed event type.
func EventTopics() []common.Hash {
	topics := make([]common.Hash, 0, len(indexedEvents))
	for _, name := range indexedEvents {
		topics = append(topics, registryABI.Events[name].ID)
	}
	return topics
}

// FilterEvents fetches and decodes registry logs in [from, to]. Logs that do
// not decode are skipped. The result is deduplicated and block ordered.
func (c *Client) FilterEvents(ctx context.Context, from, to uint64) ([]models.ChainEvent, error) {
	logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{EventTopics()},
	})
	if err != nil {
		return nil, fmt.Errorf("filter logs %d..%d: %w", from, to, err)
	}

	blockTimes := make(map[uint64]time.Time)
	out := make([]models.ChainEvent, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ev, err := DecodeLog(lg)
		if err != nil {
			c.log.Warn("skipping log",
				zap.String("tx_hash", lg.TxHash.Hex()),
				zap.Uint("log_index", lg.Index),
				zap.Error(err),
			)
			continue
		}

		bt, ok := blockTimes[lg.BlockNumber]
		if !ok {
			bt, err = c.BlockTime(ctx, new(big.Int).SetUint64(lg.BlockNumber))
			if err != nil {
				return nil, fmt.Errorf("block %d: %w", lg.BlockNumber, err)
			}
			blockTimes[lg.BlockNumber] = bt
		}
		ev.BlockTime = &bt
		out = append(out, ev)
	}

	return models.DedupeEvents(out), nil
}

// DecodeLog turns a raw registry log into a ChainEvent. Addresses and ids in
// Args are lowercase hex strings so the map survives a JSON round trip.
func DecodeLog(lg types.Log) (models.ChainEvent, error) {
	if len(lg.Topics) == 0 {
		return models.ChainEvent{}, ErrUnknownEvent
	}
	ev, err := registryABI.EventByID(lg.Topics[0])
	if err != nil {
		return models.ChainEvent{}, fmt.Errorf("%w: %s", ErrUnknownEvent, lg.Topics[0].Hex())
	}

	raw := make(map[string]any)
	// Committed is matched by topic0 only; accept the hash either indexed or in data.
	if ev.Name == models.EventCommitted && len(lg.Topics) == 2 {
		raw["commitment"] = [32]byte(lg.Topics[1])
	} else {
		var indexed abi.Arguments
		for _, arg := range ev.Inputs {
			if arg.Indexed {
				indexed = append(indexed, arg)
			}
		}
		if len(lg.Topics)-1 != len(indexed) {
			return models.ChainEvent{}, fmt.Errorf("%s: want %d topics, got %d", ev.Name, len(indexed)+1, len(lg.Topics))
		}
		if err := abi.ParseTopicsIntoMap(raw, indexed, lg.Topics[1:]); err != nil {
			return models.ChainEvent{}, fmt.Errorf("%s topics: %w", ev.Name, err)
		}
		if err := registryABI.UnpackIntoMap(raw, ev.Name, lg.Data); err != nil {
			return models.ChainEvent{}, fmt.Errorf("%s data: %w", ev.Name, err)
		}
	}

	out := models.ChainEvent{
		Type:        ev.Name,
		BlockNumber: lg.BlockNumber,
		TxHash:      strings.ToLower(lg.TxHash.Hex()),
		LogIndex:    lg.Index,
		Args:        make(map[string]any),
	}

	switch ev.Name {
	case models.EventTransfer:
		from, _ := raw["from"].(common.Address)
		to, _ := raw["to"].(common.Address)
		tokenID, _ := raw["tokenId"].(*big.Int)
		id, err := proquint.FromTokenID(tokenID)
		if err != nil {
			return models.ChainEvent{}, fmt.Errorf("Transfer token id: %w", err)
		}
		out.User = addrHex(to)
		out.NameID = id.Hex()
		out.Args["from"] = addrHex(from)
		out.Args["to"] = addrHex(to)
		out.Args["tokenId"] = tokenID.String()

	case models.EventPrimaryUpdated:
		user, _ := raw["user"].(common.Address)
		id, _ := raw["id"].([4]byte)
		out.User = addrHex(user)
		out.NameID = proquint.ID(id).Hex()
		out.Args["user"] = out.User
		out.Args["id"] = out.NameID

	case models.EventInboxUpdated:
		user, _ := raw["user"].(common.Address)
		id, _ := raw["id"].([4]byte)
		exp, _ := raw["inboxExpiry"].(uint64)
		out.User = addrHex(user)
		out.NameID = proquint.ID(id).Hex()
		out.Args["user"] = out.User
		out.Args["id"] = out.NameID
		out.Args["inboxExpiry"] = exp

	case models.EventRenewed:
		id, _ := raw["id"].([4]byte)
		exp, _ := raw["newExpiry"].(uint64)
		out.NameID = proquint.ID(id).Hex()
		out.Args["id"] = out.NameID
		out.Args["newExpiry"] = exp

	case models.EventCommitted:
		h, _ := raw["commitment"].([32]byte)
		out.Args["commitment"] = strings.ToLower(common.Hash(h).Hex())

	default:
		return models.ChainEvent{}, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Name)
	}

	return out, nil
}

func addrHex(a common.Address) string {
	return strings.ToLower(a.Hex())
}
