package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/proquint-registry/backend/internal/chain"
	"github.com/proquint-registry/backend/internal/models"
	"github.com/proquint-registry/backend/internal/proquint"
	"github.com/proquint-registry/backend/internal/repositories"
	"go.uber.org/zap"
)

var (
	ErrNotFound        = repositories.ErrNotFound
	ErrInvalidInput    = errors.New("invalid input")
	ErrNameUnavailable = errors.New("name not available")
	ErrNotCommitted    = errors.New("commitment not yet on chain")
)

// CommitmentStore persists prepared commitments.
type CommitmentStore interface {
	Create(ctx context.Context, c *models.Commitment) error
	GetByHash(ctx context.Context, hash string) (*models.Commitment, error)
	MarkCommitted(ctx context.Context, hash, txHash string, createdAt time.Time) (bool, error)
	MarkRevealed(ctx context.Context, hash string, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, hash, from, to string) (bool, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]models.Commitment, error)
	ListByCaller(ctx context.Context, caller string, limit int) ([]models.Commitment, error)
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// EventStore persists indexed contract events.
type EventStore interface {
	Upsert(ctx context.Context, events []models.ChainEvent) (int, error)
	ListByUser(ctx context.Context, addr string, limit int) ([]models.ChainEvent, error)
	ListByName(ctx context.Context, nameID string, limit int) ([]models.ChainEvent, error)
}

// ParseName accepts a proquint ("babab-dabab", any case or separators) or a
// 0x-prefixed bytes4.
func ParseName(input string) (proquint.ID, error) {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return proquint.ParseHex(s)
	}
	return proquint.Decode(s)
}

// ParseAddress validates a 0x hex account address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: bad address %q", ErrInvalidInput, s)
	}
	return common.HexToAddress(s), nil
}

func addrKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func nameCacheKey(idHex string) string {
	return "name:" + idHex
}

// chainClock reads "now" from the latest block, falling back to the wall
// clock when the node is unreachable.
type chainClock struct {
	registry chain.Registry
	wall     func() time.Time
	log      *zap.Logger
}

func (c chainClock) Now(ctx context.Context) time.Time {
	t, err := c.registry.BlockTime(ctx, nil)
	if err != nil {
		c.log.Warn("block time unavailable, using wall clock", zap.Error(err))
		return c.wall().UTC()
	}
	return t
}
