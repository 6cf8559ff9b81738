package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/proquint-registry/backend/internal/cache"
	"github.com/proquint-registry/backend/internal/chain"
	"github.com/proquint-registry/backend/internal/lifecycle"
	"github.com/proquint-registry/backend/internal/pricing"
	"github.com/proquint-registry/backend/internal/proquint"
	"go.uber.org/zap"
)

type NameService struct {
	registry chain.Registry
	cache    cache.Store
	cacheTTL time.Duration
	clock    chainClock
	log      *zap.Logger
}

func NewNameService(registry chain.Registry, store cache.Store, cacheTTL time.Duration, log *zap.Logger) *NameService {
	return &NameService{
		registry: registry,
		cache:    store,
		cacheTTL: cacheTTL,
		clock:    chainClock{registry: registry, wall: time.Now, log: log},
		log:      log,
	}
}

// nameState is the cached contract view of one id.
type nameState struct {
	Expiry      uint64 `json:"expiry"`
	InboxExpiry uint64 `json:"inbox_expiry"`
	Owner       string `json:"owner"`
}

type InboxView struct {
	Receiver      string               `json:"receiver"`
	InboxExpiry   time.Time            `json:"inbox_expiry"`
	State         lifecycle.InboxState `json:"state"`
	OwnerDeadline time.Time            `json:"owner_deadline"`
	BurnDate      time.Time            `json:"burn_date"`
}

type NameView struct {
	Proquint     string                       `json:"proquint"`
	Display      string                       `json:"display"`
	ID           string                       `json:"id"`
	TokenID      string                       `json:"token_id"`
	Palindrome   bool                         `json:"palindrome"`
	Availability lifecycle.AvailabilityResult `json:"availability"`
	State        lifecycle.RegistrationState  `json:"state,omitempty"`
	Expiry       *time.Time                   `json:"expiry,omitempty"`
	GraceEnd     *time.Time                   `json:"grace_end,omitempty"`
	PremiumEnd   *time.Time                   `json:"premium_end,omitempty"`
	Owner        string                       `json:"owner,omitempty"`
	Inbox        *InboxView                   `json:"inbox,omitempty"`
	Now          time.Time                    `json:"now"`
}

func (s *NameService) state(ctx context.Context, id proquint.ID) (nameState, error) {
	key := nameCacheKey(id.Hex())
	var st nameState
	err := cache.GetJSON(ctx, s.cache, key, &st)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("name cache read failed", zap.String("key", key), zap.Error(err))
	}

	if st.Expiry, err = s.registry.GetExpiry(ctx, id); err != nil {
		return nameState{}, err
	}
	if st.InboxExpiry, err = s.registry.InboxExpiry(ctx, id); err != nil {
		return nameState{}, err
	}
	if st.Expiry != 0 {
		owner, err := s.registry.Owner(ctx, id)
		if err != nil {
			return nameState{}, err
		}
		if owner != (common.Address{}) {
			st.Owner = addrKey(owner)
		}
	}

	if s.cacheTTL > 0 {
		if err := cache.SetJSON(ctx, s.cache, key, st, s.cacheTTL); err != nil {
			s.log.Warn("name cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return st, nil
}

// Lookup returns the lifecycle view of a name at the current block time.
func (s *NameService) Lookup(ctx context.Context, input string) (*NameView, error) {
	id, err := ParseName(input)
	if err != nil {
		return nil, err
	}
	st, err := s.state(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read name %s: %w", id, err)
	}
	now := s.clock.Now(ctx)

	view := &NameView{
		Proquint:   id.String(),
		Display:    id.Display(),
		ID:         id.Hex(),
		TokenID:    id.TokenID().String(),
		Palindrome: id.IsPalindrome(),
		Owner:      st.Owner,
		Now:        now,
	}

	expiry := lifecycle.FromChain(st.Expiry)
	view.Availability = lifecycle.Availability(expiry, now)
	if !expiry.IsZero() {
		graceEnd := lifecycle.GraceEnd(expiry)
		premiumEnd := lifecycle.PremiumEnd(expiry)
		view.State = lifecycle.Registration(expiry, now)
		view.Expiry = &expiry
		view.GraceEnd = &graceEnd
		view.PremiumEnd = &premiumEnd
	}

	if st.InboxExpiry != 0 {
		inboxExpiry := lifecycle.FromChain(st.InboxExpiry)
		d := lifecycle.InboxDeadlines(inboxExpiry)
		view.Inbox = &InboxView{
			Receiver:      st.Owner,
			InboxExpiry:   inboxExpiry,
			State:         lifecycle.Inbox(inboxExpiry, now),
			OwnerDeadline: d.OwnerDeadline,
			BurnDate:      d.BurnDate,
		}
	}

	return view, nil
}

type QuoteView struct {
	Proquint   string `json:"proquint"`
	Years      int    `json:"years"`
	Palindrome bool   `json:"palindrome"`
	AmountWei  string `json:"amount_wei"`
	AmountETH  string `json:"amount_eth"`
}

// Quote prices a registration or renewal. It needs no chain access.
func (s *NameService) Quote(input string, years int) (*QuoteView, error) {
	id, err := ParseName(input)
	if err != nil {
		return nil, err
	}
	q, err := pricing.NewQuote(years, id)
	if err != nil {
		return nil, err
	}
	return &QuoteView{
		Proquint:   id.String(),
		Years:      q.Years,
		Palindrome: q.IsPalindrome,
		AmountWei:  q.AmountWei.String(),
		AmountETH:  q.ETH(),
	}, nil
}

type InboxPrediction struct {
	Receiver      string    `json:"receiver"`
	InboxCount    uint64    `json:"inbox_count"`
	PendingPeriod int64     `json:"pending_period_seconds"`
	Days          int       `json:"days"`
	Hours         int       `json:"hours"`
	InboxExpiry   time.Time `json:"inbox_expiry"`
	BurnDate      time.Time `json:"burn_date"`
}

// PredictInbox returns the claim deadline a gift to receiver would get now.
func (s *NameService) PredictInbox(ctx context.Context, receiver common.Address) (*InboxPrediction, error) {
	count, err := s.registry.InboxCount(ctx, receiver)
	if err != nil {
		return nil, fmt.Errorf("inbox count: %w", err)
	}
	now := s.clock.Now(ctx)

	k := int(count)
	if count > lifecycle.MaxInbox {
		k = lifecycle.MaxInbox
	}
	exp, err := lifecycle.InboxExpiry(now, k)
	if err != nil {
		return nil, err
	}
	period := lifecycle.PendingPeriod(k)
	days, hours := lifecycle.SplitDaysHours(period)
	return &InboxPrediction{
		Receiver:      addrKey(receiver),
		InboxCount:    count,
		PendingPeriod: int64(period / time.Second),
		Days:          days,
		Hours:         hours,
		InboxExpiry:   exp,
		BurnDate:      lifecycle.InboxDeadlines(exp).BurnDate,
	}, nil
}

type RefundRole string

const (
	RoleReceiver RefundRole = "receiver"
	RoleBurner   RefundRole = "burner"
)

type RefundView struct {
	Proquint         string               `json:"proquint"`
	Role             RefundRole           `json:"role"`
	RemainingSeconds int64                `json:"remaining_seconds"`
	RemainingMonths  int64                `json:"remaining_months"`
	AmountWei        string               `json:"amount_wei"`
	AmountETH        string               `json:"amount_eth"`
	Split            bool                 `json:"split"`
	InboxState       lifecycle.InboxState `json:"inbox_state,omitempty"`
	Allowed          bool                 `json:"allowed"`
}

// RefundQuote prices rejecting (receiver) or cleaning (burner) an inbox item.
func (s *NameService) RefundQuote(ctx context.Context, input string, role RefundRole) (*RefundView, error) {
	if role != RoleReceiver && role != RoleBurner {
		return nil, fmt.Errorf("%w: role must be receiver or burner", ErrInvalidInput)
	}
	id, err := ParseName(input)
	if err != nil {
		return nil, err
	}
	st, err := s.state(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read name %s: %w", id, err)
	}
	now := s.clock.Now(ctx)

	var remaining int64
	if expiry := lifecycle.FromChain(st.Expiry); expiry.After(now) {
		remaining = int64(expiry.Sub(now) / time.Second)
	}
	total := pricing.RefundAmount(remaining)
	hasReceiver := st.Owner != ""

	view := &RefundView{
		Proquint:         id.String(),
		Role:             role,
		RemainingSeconds: remaining,
		RemainingMonths:  remaining / pricing.SecondsPerMonth,
	}

	inboxState := lifecycle.InboxState("")
	if st.InboxExpiry != 0 {
		inboxState = lifecycle.Inbox(lifecycle.FromChain(st.InboxExpiry), now)
		view.InboxState = inboxState
	}

	var amount *big.Int
	if role == RoleReceiver {
		amount = pricing.OwnerRefund(remaining)
		view.Allowed = st.InboxExpiry != 0 && lifecycle.CanReject(true)
	} else {
		amount = pricing.BurnReward(remaining, hasReceiver)
		view.Split = amount.Cmp(total) != 0
		view.Allowed = st.InboxExpiry != 0 && lifecycle.CanBurn(inboxState)
	}
	view.AmountWei = amount.String()
	view.AmountETH = pricing.FormatETH(amount)
	return view, nil
}

type RegistryStats struct {
	TotalSupply string `json:"total_supply"`
	TotalInbox  string `json:"total_inbox"`
	Active      string `json:"active"`
}

func (s *NameService) Stats(ctx context.Context) (*RegistryStats, error) {
	supply, err := s.registry.TotalSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("total supply: %w", err)
	}
	inbox, err := s.registry.TotalInbox(ctx)
	if err != nil {
		return nil, fmt.Errorf("total inbox: %w", err)
	}
	active := new(big.Int).Sub(supply, inbox)
	return &RegistryStats{
		TotalSupply: supply.String(),
		TotalInbox:  inbox.String(),
		Active:      active.String(),
	}, nil
}

// InvalidateName drops the cached chain view of an id.
func (s *NameService) InvalidateName(ctx context.Context, idHex string) {
	if err := s.cache.Clear(ctx, nameCacheKey(strings.ToLower(idHex))); err != nil {
		s.log.Warn("name cache clear failed", zap.String("id", idHex), zap.Error(err))
	}
}
