package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/proquint-registry/backend/internal/cache"
	"github.com/proquint-registry/backend/internal/chain"
	"github.com/proquint-registry/backend/internal/events"
	"github.com/proquint-registry/backend/internal/models"
	"go.uber.org/zap"
)

// CursorKey holds the next block the indexer will scan.
const CursorKey = "indexer:cursor:block"

type IndexerService struct {
	registry    chain.Registry
	events      EventStore
	commitments *CommitmentService
	store       cache.Store
	publisher   events.Publisher
	startBlock  uint64
	batch       uint64
	log         *zap.Logger
}

func NewIndexerService(
	registry chain.Registry,
	eventStore EventStore,
	commitments *CommitmentService,
	store cache.Store,
	publisher events.Publisher,
	startBlock, batch uint64,
	log *zap.Logger,
) *IndexerService {
	if batch == 0 {
		batch = 1
	}
	return &IndexerService{
		registry:    registry,
		events:      eventStore,
		commitments: commitments,
		store:       store,
		publisher:   publisher,
		startBlock:  startBlock,
		batch:       batch,
		log:         log,
	}
}

// Cursor returns the next block to scan, startBlock on first run.
func (s *IndexerService) Cursor(ctx context.Context) (uint64, error) {
	v, err := s.store.Get(ctx, CursorKey)
	if errors.Is(err, cache.ErrMiss) {
		return s.startBlock, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad cursor %q: %w", v, err)
	}
	return n, nil
}

func (s *IndexerService) saveCursor(ctx context.Context, next uint64) error {
	return s.store.Set(ctx, CursorKey, strconv.FormatUint(next, 10), 0)
}

// PollOnce scans from the cursor to the latest block in batches. The cursor
// moves only after a batch is stored and dispatched, so a failed batch is
// retried on the next poll.
func (s *IndexerService) PollOnce(ctx context.Context) (int, error) {
	next, err := s.Cursor(ctx)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	latest, err := s.registry.LatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest block: %w", err)
	}

	total := 0
	for next <= latest {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		to := next + s.batch - 1
		if to > latest {
			to = latest
		}

		evs, err := s.registry.FilterEvents(ctx, next, to)
		if err != nil {
			return total, fmt.Errorf("filter %d-%d: %w", next, to, err)
		}
		inserted, err := s.events.Upsert(ctx, evs)
		if err != nil {
			return total, fmt.Errorf("store %d-%d: %w", next, to, err)
		}
		for i := range evs {
			s.dispatch(ctx, &evs[i])
		}
		if err := s.saveCursor(ctx, to+1); err != nil {
			return total, fmt.Errorf("save cursor: %w", err)
		}

		if len(evs) > 0 {
			s.log.Info("indexed blocks",
				zap.Uint64("from", next),
				zap.Uint64("to", to),
				zap.Int("events", len(evs)),
				zap.Int("new", inserted),
			)
		}
		total += len(evs)
		next = to + 1
	}
	return total, nil
}

func (s *IndexerService) dispatch(ctx context.Context, ev *models.ChainEvent) {
	if ev.NameID != "" {
		if err := s.store.Clear(ctx, nameCacheKey(ev.NameID)); err != nil {
			s.log.Warn("name cache clear failed", zap.String("id", ev.NameID), zap.Error(err))
		}
	}

	switch ev.Type {
	case models.EventCommitted:
		hash, _ := ev.Args["commitment"].(string)
		if hash == "" || ev.BlockTime == nil {
			return
		}
		_, err := s.commitments.Confirm(ctx, hash, ev.TxHash, *ev.BlockTime)
		if errors.Is(err, ErrNotFound) {
			// committed by a client that did not prepare through this service
			return
		}
		if err != nil {
			s.log.Error("failed to confirm commitment", zap.String("hash", hash), zap.Error(err))
		}

	case models.EventInboxUpdated:
		s.publish(ctx, events.EventInboxUpdated, ev)
	case models.EventPrimaryUpdated:
		s.publish(ctx, events.EventPrimaryUpdated, ev)
	case models.EventRenewed:
		s.publish(ctx, events.EventNameRenewed, ev)
	}
}

func (s *IndexerService) publish(ctx context.Context, eventType string, ev *models.ChainEvent) {
	payload := map[string]any{
		"user":         ev.User,
		"id":           ev.NameID,
		"tx_hash":      ev.TxHash,
		"block_number": ev.BlockNumber,
	}
	for k, v := range ev.Args {
		if _, taken := payload[k]; !taken {
			payload[k] = v
		}
	}
	if err := s.publisher.Publish(ctx, events.StreamRegistry, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Error("failed to publish registry event", zap.String("type", eventType), zap.Error(err))
	}
}

// Events returns the indexed history of an account.
func (s *IndexerService) Events(ctx context.Context, addr string, limit int) ([]models.ChainEvent, error) {
	a, err := ParseAddress(addr)
	if err != nil {
		return nil, err
	}
	evs, err := s.events.ListByUser(ctx, addrKey(a), limit)
	if err != nil {
		return nil, err
	}
	models.SortEvents(evs)
	return evs, nil
}

// NameEvents returns the indexed history of a name.
func (s *IndexerService) NameEvents(ctx context.Context, input string, limit int) ([]models.ChainEvent, error) {
	id, err := ParseName(input)
	if err != nil {
		return nil, err
	}
	evs, err := s.events.ListByName(ctx, id.Hex(), limit)
	if err != nil {
		return nil, err
	}
	models.SortEvents(evs)
	return evs, nil
}
