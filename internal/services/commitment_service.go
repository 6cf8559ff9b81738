package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/proquint-registry/backend/internal/cache"
	"github.com/proquint-registry/backend/internal/chain"
	"github.com/proquint-registry/backend/internal/commitment"
	"github.com/proquint-registry/backend/internal/events"
	"github.com/proquint-registry/backend/internal/lifecycle"
	"github.com/proquint-registry/backend/internal/models"
	"github.com/proquint-registry/backend/internal/pricing"
	"go.uber.org/zap"
)

const sweepBatch = 500

type CommitmentService struct {
	store      CommitmentStore
	registry   chain.Registry
	tx         chain.TxBuilder
	publisher  events.Publisher
	marks      cache.Store
	random     io.Reader
	clock      chainClock
	wall       func() time.Time
	pendingTTL time.Duration
	log        *zap.Logger
}

type CommitmentServiceOption func(*CommitmentService)

// WithRandom replaces the secret source (crypto/rand by default).
func WithRandom(r io.Reader) CommitmentServiceOption {
	return func(s *CommitmentService) { s.random = r }
}

// WithWallClock replaces time.Now for fallbacks and pending expiry.
func WithWallClock(now func() time.Time) CommitmentServiceOption {
	return func(s *CommitmentService) {
		s.wall = now
		s.clock.wall = now
	}
}

func NewCommitmentService(
	store CommitmentStore,
	registry chain.Registry,
	tx chain.TxBuilder,
	publisher events.Publisher,
	marks cache.Store,
	pendingTTL time.Duration,
	log *zap.Logger,
	opts ...CommitmentServiceOption,
) *CommitmentService {
	s := &CommitmentService{
		store:      store,
		registry:   registry,
		tx:         tx,
		publisher:  publisher,
		marks:      marks,
		random:     rand.Reader,
		wall:       time.Now,
		clock:      chainClock{registry: registry, wall: time.Now, log: log},
		pendingTTL: pendingTTL,
		log:        log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type PrepareRequest struct {
	Name     string
	Years    int
	Caller   common.Address
	Receiver common.Address // zero means the caller
}

// PrepareResult goes only to the caller who prepared it. It is the one
// response that carries the name and the packed secret before the reveal.
type PrepareResult struct {
	Commitment *models.Commitment `json:"commitment"`
	Name       string             `json:"name"`
	NameID     string             `json:"name_id"`
	Data       string             `json:"data"`
	CommitTx   chain.TxRequest    `json:"commit_tx"`
	AmountETH  string             `json:"amount_eth"`
}

// Prepare draws a secret, binds a commitment to the chosen recipient and
// stores it until the commit tx is seen on chain.
func (s *CommitmentService) Prepare(ctx context.Context, req PrepareRequest) (*PrepareResult, error) {
	if req.Caller == (common.Address{}) {
		return nil, fmt.Errorf("%w: caller is required", ErrInvalidInput)
	}
	id, err := ParseName(req.Name)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.NewQuote(req.Years, id)
	if err != nil {
		return nil, err
	}

	expiry, err := s.registry.GetExpiry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read expiry: %w", err)
	}
	avail := lifecycle.Availability(lifecycle.FromChain(expiry), s.clock.Now(ctx))
	if avail.Status == lifecycle.StatusTaken || avail.Status == lifecycle.StatusGrace {
		return nil, fmt.Errorf("%w: %s is %s", ErrNameUnavailable, id, avail.Status)
	}

	primary, err := s.registry.PrimaryName(ctx, req.Caller)
	if err != nil {
		return nil, fmt.Errorf("read primary name: %w", err)
	}
	recipient, registerTo := commitment.ChooseRecipient(req.Caller, req.Receiver, !primary.IsZero())

	secret, err := commitment.NewSecret(s.random)
	if err != nil {
		return nil, err
	}
	c, err := commitment.New(req.Years, id, secret, recipient)
	if err != nil {
		return nil, err
	}
	commitTx, err := s.tx.Commit(c.Hash)
	if err != nil {
		return nil, err
	}

	rec := &models.Commitment{
		Hash:       strings.ToLower(c.Hash.Hex()),
		Data:       c.DataHex(),
		Caller:     addrKey(req.Caller),
		Recipient:  addrKey(recipient),
		RegisterTo: registerTo,
		NameID:     id.Hex(),
		Proquint:   id.String(),
		Years:      req.Years,
		ValueWei:   quote.AmountWei.String(),
		Status:     models.CommitmentStatusPending,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("store commitment: %w", err)
	}

	s.publish(ctx, events.EventCommitmentPrepared, rec, nil)
	s.log.Info("commitment prepared",
		zap.String("hash", rec.Hash),
		zap.String("name", rec.Proquint),
		zap.String("caller", rec.Caller),
		zap.Bool("register_to", registerTo),
	)

	return &PrepareResult{
		Commitment: rec,
		Name:       rec.Proquint,
		NameID:     rec.NameID,
		Data:       rec.Data,
		CommitTx:   commitTx,
		AmountETH:  quote.ETH(),
	}, nil
}

// Confirm records the block time of the commit tx. Repeated confirmations
// keep the first timestamp.
func (s *CommitmentService) Confirm(ctx context.Context, hash, txHash string, confirmedAt time.Time) (*models.Commitment, error) {
	hash = strings.ToLower(hash)
	updated, err := s.store.MarkCommitted(ctx, hash, strings.ToLower(txHash), confirmedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("mark committed: %w", err)
	}
	rec, err := s.store.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if updated {
		s.publish(ctx, events.EventCommitmentConfirmed, rec, map[string]any{"tx_hash": txHash})
		s.log.Info("commitment confirmed", zap.String("hash", hash), zap.Time("created_at", confirmedAt))
	}
	return rec, nil
}

type CommitmentStatusView struct {
	Commitment *models.Commitment `json:"commitment"`
	// Name is set once the commitment is revealed.
	Name        string    `json:"name,omitempty"`
	State       string    `json:"state"`
	SecondsLeft int64     `json:"seconds_left"`
	Now         time.Time `json:"now"`
}

// Status reports where a commitment stands in the reveal window.
func (s *CommitmentService) Status(ctx context.Context, hash string) (*CommitmentStatusView, error) {
	rec, err := s.store.GetByHash(ctx, strings.ToLower(hash))
	if err != nil {
		return nil, err
	}
	now := s.clock.Now(ctx)
	view := &CommitmentStatusView{Commitment: rec, Now: now}
	if rec.Status == models.CommitmentStatusRevealed {
		view.Name = rec.Proquint
	}

	switch {
	case rec.Status == models.CommitmentStatusRevealed || rec.Status == models.CommitmentStatusExpired:
		view.State = rec.Status
	case rec.CreatedAt == nil:
		view.State = models.CommitmentStatusPending
	default:
		st := commitment.StatusAt(*rec.CreatedAt, now)
		view.State = string(st.State)
		view.SecondsLeft = st.SecondsLeft()
	}
	return view, nil
}

type RevealResult struct {
	Commitment *models.Commitment `json:"commitment"`
	Name       string             `json:"name"`
	NameID     string             `json:"name_id"`
	RevealTx   chain.TxRequest    `json:"reveal_tx"`
}

// Reveal returns register/registerTo calldata once the commitment is old
// enough, and marks it revealed. Calling it again inside the window returns
// the same calldata.
func (s *CommitmentService) Reveal(ctx context.Context, hash string) (*RevealResult, error) {
	hash = strings.ToLower(hash)
	rec, err := s.store.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if rec.CreatedAt == nil {
		return nil, ErrNotCommitted
	}
	if rec.Status == models.CommitmentStatusExpired {
		return nil, commitment.ErrExpired
	}

	now := s.clock.Now(ctx)
	if err := commitment.CheckReveal(*rec.CreatedAt, now); err != nil {
		if errors.Is(err, commitment.ErrExpired) {
			s.expire(ctx, rec)
		}
		return nil, err
	}

	tx, err := s.revealTx(rec)
	if err != nil {
		return nil, err
	}

	if rec.CanReveal() {
		updated, err := s.store.MarkRevealed(ctx, hash, now)
		if err != nil {
			return nil, fmt.Errorf("mark revealed: %w", err)
		}
		if updated {
			rec.Status = models.CommitmentStatusRevealed
			rec.RevealedAt = &now
			s.publish(ctx, events.EventCommitmentRevealed, rec, nil)
		} else {
			// lost a race with the sweep or another reveal
			if rec, err = s.store.GetByHash(ctx, hash); err != nil {
				return nil, err
			}
			if rec.Status != models.CommitmentStatusRevealed {
				return nil, commitment.ErrExpired
			}
		}
	}
	return &RevealResult{Commitment: rec, Name: rec.Proquint, NameID: rec.NameID, RevealTx: tx}, nil
}

func (s *CommitmentService) revealTx(rec *models.Commitment) (chain.TxRequest, error) {
	raw, err := hexutil.Decode(rec.Data)
	if err != nil || len(raw) != commitment.InputLength {
		return chain.TxRequest{}, fmt.Errorf("stored commitment %s has bad data", rec.Hash)
	}
	var input [commitment.InputLength]byte
	copy(input[:], raw)

	value, ok := new(big.Int).SetString(rec.ValueWei, 10)
	if !ok {
		return chain.TxRequest{}, fmt.Errorf("stored commitment %s has bad value %q", rec.Hash, rec.ValueWei)
	}
	if rec.RegisterTo {
		return s.tx.RegisterTo(input, common.HexToAddress(rec.Recipient), value)
	}
	return s.tx.Register(input, value)
}

func (s *CommitmentService) ListByCaller(ctx context.Context, caller common.Address, limit int) ([]models.Commitment, error) {
	return s.store.ListByCaller(ctx, addrKey(caller), limit)
}

type SweepResult struct {
	Ready          int
	Expired        int
	PendingExpired int
}

// SweepExpired moves stale commitments to expired and announces ones that
// entered the reveal window since the previous sweep.
func (s *CommitmentService) SweepExpired(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	hashes, err := s.store.ExpirePendingBefore(ctx, s.wall().Add(-s.pendingTTL))
	if err != nil {
		return res, fmt.Errorf("expire pending: %w", err)
	}
	res.PendingExpired = len(hashes)

	committed, err := s.store.ListByStatus(ctx, models.CommitmentStatusCommitted, sweepBatch)
	if err != nil {
		return res, fmt.Errorf("list committed: %w", err)
	}
	if len(committed) == 0 {
		return res, nil
	}

	now := s.clock.Now(ctx)
	for i := range committed {
		rec := &committed[i]
		if rec.CreatedAt == nil {
			continue
		}
		switch commitment.StatusAt(*rec.CreatedAt, now).State {
		case commitment.StateExpired:
			if s.expire(ctx, rec) {
				res.Expired++
			}
		case commitment.StateReady:
			if s.markReady(ctx, rec) {
				res.Ready++
			}
		}
	}
	return res, nil
}

func (s *CommitmentService) expire(ctx context.Context, rec *models.Commitment) bool {
	if !models.IsValidCommitmentTransition(rec.Status, models.CommitmentStatusExpired) {
		return false
	}
	updated, err := s.store.UpdateStatus(ctx, rec.Hash, rec.Status, models.CommitmentStatusExpired)
	if err != nil {
		s.log.Error("failed to expire commitment", zap.String("hash", rec.Hash), zap.Error(err))
		return false
	}
	if !updated {
		return false
	}
	rec.Status = models.CommitmentStatusExpired
	s.publish(ctx, events.EventCommitmentExpired, rec, nil)
	return true
}

// markReady publishes commitment_ready once per commitment.
func (s *CommitmentService) markReady(ctx context.Context, rec *models.Commitment) bool {
	key := "commitment:ready:" + rec.Hash
	if _, err := s.marks.Get(ctx, key); err == nil {
		return false
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("ready mark read failed", zap.String("hash", rec.Hash), zap.Error(err))
		return false
	}
	if err := s.marks.Set(ctx, key, "1", commitment.MaxAge); err != nil {
		s.log.Warn("ready mark write failed", zap.String("hash", rec.Hash), zap.Error(err))
	}
	s.publish(ctx, events.EventCommitmentReady, rec, nil)
	return true
}

func (s *CommitmentService) publish(ctx context.Context, eventType string, rec *models.Commitment, extra map[string]any) {
	payload := map[string]any{
		"caller":    rec.Caller,
		"recipient": rec.Recipient,
		"hash":      rec.Hash,
		"status":    rec.Status,
	}
	if rec.Status == models.CommitmentStatusRevealed {
		payload["name"] = rec.Proquint
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.publisher.Publish(ctx, events.StreamCommitments, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Error("failed to publish commitment event", zap.String("type", eventType), zap.Error(err))
	}
}
