package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/proquint-registry/backend/internal/chain"
	"github.com/proquint-registry/backend/internal/lifecycle"
	"github.com/proquint-registry/backend/internal/pricing"
	"github.com/proquint-registry/backend/internal/proquint"
	"go.uber.org/zap"
)

var ErrActionNotAllowed = errors.New("action not allowed")

// ActionService builds unsigned transactions for name management after
// checking the lifecycle rules the contract will enforce.
type ActionService struct {
	registry chain.Registry
	tx       chain.TxBuilder
	clock    chainClock
	log      *zap.Logger
}

func NewActionService(registry chain.Registry, tx chain.TxBuilder, log *zap.Logger) *ActionService {
	return &ActionService{
		registry: registry,
		tx:       tx,
		clock:    chainClock{registry: registry, wall: time.Now, log: log},
		log:      log,
	}
}

type ActionResult struct {
	Proquint string          `json:"proquint"`
	Action   string          `json:"action"`
	Tx       chain.TxRequest `json:"tx"`
	// NewExpiry is the expiry after the action, when it changes.
	NewExpiry *time.Time `json:"new_expiry,omitempty"`
}

func notAllowed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrActionNotAllowed, fmt.Sprintf(format, args...))
}

type inboxItem struct {
	id       proquint.ID
	receiver common.Address
	expiry   time.Time
	state    lifecycle.InboxState
}

func (s *ActionService) inbox(ctx context.Context, input string) (*inboxItem, error) {
	id, err := ParseName(input)
	if err != nil {
		return nil, err
	}
	raw, err := s.registry.InboxExpiry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read inbox expiry: %w", err)
	}
	if raw == 0 {
		return nil, notAllowed("%s is not in an inbox", id)
	}
	receiver, err := s.registry.Owner(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read owner: %w", err)
	}
	exp := lifecycle.FromChain(raw)
	return &inboxItem{
		id:       id,
		receiver: receiver,
		expiry:   exp,
		state:    lifecycle.Inbox(exp, s.clock.Now(ctx)),
	}, nil
}

// Renew prices and encodes an extension. Renewal is open while the name is
// active or in grace.
func (s *ActionService) Renew(ctx context.Context, input string, years int) (*ActionResult, error) {
	id, err := ParseName(input)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.NewQuote(years, id)
	if err != nil {
		return nil, err
	}
	raw, err := s.registry.GetExpiry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read expiry: %w", err)
	}
	expiry := lifecycle.FromChain(raw)
	if expiry.IsZero() {
		return nil, notAllowed("%s is not registered", id)
	}
	state := lifecycle.Registration(expiry, s.clock.Now(ctx))
	if state != lifecycle.Active && state != lifecycle.Grace {
		return nil, notAllowed("%s is %s", id, state)
	}

	tx, err := s.tx.Renew(uint8(years), id, quote.AmountWei)
	if err != nil {
		return nil, err
	}
	next := expiry.Add(time.Duration(years) * 365 * lifecycle.Day)
	return &ActionResult{Proquint: id.String(), Action: "renew", Tx: tx, NewExpiry: &next}, nil
}

// AcceptInbox encodes acceptInbox for caller.
func (s *ActionService) AcceptInbox(ctx context.Context, input string, caller common.Address) (*ActionResult, error) {
	item, err := s.inbox(ctx, input)
	if err != nil {
		return nil, err
	}
	primary, err := s.registry.PrimaryName(ctx, item.receiver)
	if err != nil {
		return nil, fmt.Errorf("read primary name: %w", err)
	}
	if !lifecycle.CanAccept(caller == item.receiver, !primary.IsZero(), item.state) {
		return nil, notAllowed("cannot accept %s while %s", item.id, item.state)
	}
	tx, err := s.tx.AcceptInbox(item.id)
	if err != nil {
		return nil, err
	}
	return &ActionResult{Proquint: item.id.String(), Action: "accept", Tx: tx}, nil
}

// RejectInbox encodes a receiver's refund of an unwanted gift.
func (s *ActionService) RejectInbox(ctx context.Context, input string, caller common.Address) (*ActionResult, error) {
	item, err := s.inbox(ctx, input)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanReject(caller == item.receiver) {
		return nil, notAllowed("only the receiver can reject %s", item.id)
	}
	tx, err := s.tx.RejectInbox(item.id)
	if err != nil {
		return nil, err
	}
	return &ActionResult{Proquint: item.id.String(), Action: "reject", Tx: tx}, nil
}

// CleanInbox encodes a burn of an unclaimed item past its burn date.
func (s *ActionService) CleanInbox(ctx context.Context, input string) (*ActionResult, error) {
	item, err := s.inbox(ctx, input)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanBurn(item.state) {
		return nil, notAllowed("%s cannot be burned before %s", item.id, lifecycle.InboxDeadlines(item.expiry).BurnDate.Format(time.RFC3339))
	}
	tx, err := s.tx.CleanInbox(item.id)
	if err != nil {
		return nil, err
	}
	return &ActionResult{Proquint: item.id.String(), Action: "clean", Tx: tx}, nil
}

// Shelve moves the caller's primary name back into their inbox. Like a
// transfer it costs the transfer penalty.
func (s *ActionService) Shelve(ctx context.Context, input string, caller common.Address) (*ActionResult, error) {
	id, err := ParseName(input)
	if err != nil {
		return nil, err
	}
	primary, err := s.registry.PrimaryName(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("read primary name: %w", err)
	}
	if primary != id {
		return nil, notAllowed("%s is not the primary name of %s", id, addrKey(caller))
	}
	raw, err := s.registry.GetExpiry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read expiry: %w", err)
	}
	tx, err := s.tx.Shelve(id)
	if err != nil {
		return nil, err
	}
	next := lifecycle.ApplyTransferPenalty(lifecycle.FromChain(raw))
	return &ActionResult{Proquint: id.String(), Action: "shelve", Tx: tx, NewExpiry: &next}, nil
}

// Transfer encodes safeTransferFrom. The registry shortens the expiry by the
// transfer penalty.
func (s *ActionService) Transfer(ctx context.Context, input string, from, to common.Address) (*ActionResult, error) {
	if to == (common.Address{}) {
		return nil, fmt.Errorf("%w: receiver is required", ErrInvalidInput)
	}
	id, err := ParseName(input)
	if err != nil {
		return nil, err
	}
	owner, err := s.registry.Owner(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read owner: %w", err)
	}
	if owner != from {
		return nil, notAllowed("%s is not owned by %s", id, addrKey(from))
	}
	raw, err := s.registry.GetExpiry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read expiry: %w", err)
	}
	tx, err := s.tx.SafeTransferFrom(from, to, id)
	if err != nil {
		return nil, err
	}
	next := lifecycle.ApplyTransferPenalty(lifecycle.FromChain(raw))
	return &ActionResult{Proquint: id.String(), Action: "transfer", Tx: tx, NewExpiry: &next}, nil
}
