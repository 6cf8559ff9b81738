package services

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/proquint-registry/backend/internal/cache"
	"github.com/proquint-registry/backend/internal/lifecycle"
	"github.com/proquint-registry/backend/internal/pricing"
	"github.com/proquint-registry/backend/internal/proquint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNameService(reg *fakeRegistry) *NameService {
	return NewNameService(reg, cache.NewMemoryStore(), time.Minute, zap.NewNop())
}

func TestLookup_NeverRegistered(t *testing.T) {
	svc := newNameService(newFakeRegistry())

	view, err := svc.Lookup(context.Background(), "dabab-fabab")
	require.NoError(t, err)

	assert.Equal(t, "dabab-fabab", view.Proquint)
	assert.Equal(t, "0x00010002", view.ID)
	assert.Equal(t, "65538", view.TokenID)
	assert.Equal(t, lifecycle.StatusAvailable, view.Availability.Status)
	assert.True(t, view.Availability.New)
	assert.Nil(t, view.Expiry)
	assert.Nil(t, view.Inbox)
	assert.Empty(t, view.Owner)
	assert.Equal(t, t0, view.Now)
}

func TestLookup_ActiveWithInbox(t *testing.T) {
	reg := newFakeRegistry()
	reg.expiry[nameA] = unix(t0.Add(30 * lifecycle.Day))
	reg.inboxExpiry[nameA] = unix(t0.Add(10 * lifecycle.Day))
	reg.owners[nameA] = bob
	svc := newNameService(reg)

	view, err := svc.Lookup(context.Background(), "0x00010002")
	require.NoError(t, err)

	assert.Equal(t, lifecycle.Active, view.State)
	assert.Equal(t, lifecycle.StatusTaken, view.Availability.Status)
	assert.Equal(t, addrKey(bob), view.Owner)
	require.NotNil(t, view.GraceEnd)
	assert.Equal(t, t0.Add(330*lifecycle.Day), *view.GraceEnd)

	require.NotNil(t, view.Inbox)
	assert.Equal(t, lifecycle.OwnerClaimable, view.Inbox.State)
	assert.Equal(t, t0.Add(17*lifecycle.Day), view.Inbox.BurnDate)
}

func TestLookup_CachesChainReads(t *testing.T) {
	reg := newFakeRegistry()
	reg.expiry[nameA] = unix(t0.Add(lifecycle.Day))
	svc := newNameService(reg)
	ctx := context.Background()

	_, err := svc.Lookup(ctx, "dabab-fabab")
	require.NoError(t, err)
	_, err = svc.Lookup(ctx, "fabab-dabab")
	require.NoError(t, err)
	assert.Equal(t, 1, reg.reads)

	svc.InvalidateName(ctx, nameA.Hex())
	_, err = svc.Lookup(ctx, "dabab-fabab")
	require.NoError(t, err)
	assert.Equal(t, 2, reg.reads)
}

func TestLookup_WallClockFallback(t *testing.T) {
	reg := newFakeRegistry()
	reg.nowErr = errRPC
	svc := newNameService(reg)

	view, err := svc.Lookup(context.Background(), "dabab-fabab")
	require.NoError(t, err)
	assert.False(t, view.Now.IsZero())
	assert.NotEqual(t, t0, view.Now)
}

func TestLookup_BadName(t *testing.T) {
	svc := newNameService(newFakeRegistry())
	_, err := svc.Lookup(context.Background(), "dabab")
	assert.ErrorIs(t, err, proquint.ErrInvalidLength)
	_, err = svc.Lookup(context.Background(), "0x123")
	assert.ErrorIs(t, err, proquint.ErrInvalidHex)
}

func TestQuote(t *testing.T) {
	svc := newNameService(newFakeRegistry())

	q, err := svc.Quote("dabab-fabab", 1)
	require.NoError(t, err)
	assert.False(t, q.Palindrome)
	assert.Equal(t, "240000000000000", q.AmountWei)
	assert.Equal(t, "0.000240", q.AmountETH)

	q, err = svc.Quote("0x12341234", 2)
	require.NoError(t, err)
	assert.True(t, q.Palindrome)
	assert.Equal(t, pricing.RegistrationPrice(2, true).String(), q.AmountWei)

	_, err = svc.Quote("dabab-fabab", 0)
	assert.ErrorIs(t, err, pricing.ErrYearsOutOfRange)
}

func TestPredictInbox(t *testing.T) {
	tests := []struct {
		name      string
		count     uint64
		wantDays  int
		wantHours int
		wantErr   error
	}{
		{"empty inbox", 0, 42, 0, nil},
		{"one item", 1, 41, 20, nil},
		{"last slot", 254, 7, 3, nil},
		{"full", 255, 0, 0, lifecycle.ErrInboxFull},
		{"over full", 300, 0, 0, lifecycle.ErrInboxFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newFakeRegistry()
			reg.inboxCount[bob] = tt.count
			svc := newNameService(reg)

			p, err := svc.PredictInbox(context.Background(), bob)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDays, p.Days)
			assert.Equal(t, tt.wantHours, p.Hours)
			assert.Equal(t, t0.Add(lifecycle.PendingPeriod(int(tt.count))), p.InboxExpiry)
			assert.Equal(t, p.InboxExpiry.Add(lifecycle.AnyonePeriod), p.BurnDate)
		})
	}
}

func TestRefundQuote(t *testing.T) {
	reg := newFakeRegistry()
	remaining := int64(10*pricing.SecondsPerMonth + 3600)
	reg.expiry[nameA] = unix(t0.Add(time.Duration(remaining) * time.Second))
	reg.inboxExpiry[nameA] = unix(t0.Add(-8 * lifecycle.Day))
	reg.owners[nameA] = bob
	svc := newNameService(reg)
	ctx := context.Background()

	r, err := svc.RefundQuote(ctx, "dabab-fabab", RoleReceiver)
	require.NoError(t, err)
	assert.Equal(t, int64(10), r.RemainingMonths)
	assert.Equal(t, pricing.OwnerRefund(remaining).String(), r.AmountWei)
	assert.False(t, r.Split)
	assert.True(t, r.Allowed)

	b, err := svc.RefundQuote(ctx, "dabab-fabab", RoleBurner)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Burnable, b.InboxState)
	assert.True(t, b.Allowed)
	assert.True(t, b.Split)
	assert.Equal(t, "100000000000000", b.AmountWei)

	_, err = svc.RefundQuote(ctx, "dabab-fabab", "owner")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRefundQuote_NotInInbox(t *testing.T) {
	reg := newFakeRegistry()
	reg.expiry[nameA] = unix(t0.Add(-lifecycle.Day))
	svc := newNameService(reg)

	r, err := svc.RefundQuote(context.Background(), "dabab-fabab", RoleBurner)
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.RemainingSeconds)
	assert.Equal(t, "0", r.AmountWei)
	assert.False(t, r.Allowed)
}

func TestStats(t *testing.T) {
	reg := newFakeRegistry()
	reg.supply = big.NewInt(10)
	reg.inboxTotal = big.NewInt(3)
	svc := newNameService(reg)

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &RegistryStats{TotalSupply: "10", TotalInbox: "3", Active: "7"}, st)
}
