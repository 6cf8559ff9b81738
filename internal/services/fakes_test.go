package services

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/proquint-registry/backend/internal/models"
	"github.com/proquint-registry/backend/internal/proquint"
)

var (
	t0       = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	alice    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bob      = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	contract = common.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3")
	nameA    = proquint.FromUint32(0x00010002) // dabab-fabab
)

var errRPC = errors.New("rpc down")

type fakeRegistry struct {
	now    time.Time
	nowErr error
	latest uint64

	expiry      map[proquint.ID]uint64
	inboxExpiry map[proquint.ID]uint64
	owners      map[proquint.ID]common.Address
	primary     map[common.Address]proquint.ID
	inboxCount  map[common.Address]uint64
	supply      *big.Int
	inboxTotal  *big.Int

	events    []models.ChainEvent
	filterErr error
	filtered  [][2]uint64
	reads     int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		now:         t0,
		expiry:      map[proquint.ID]uint64{},
		inboxExpiry: map[proquint.ID]uint64{},
		owners:      map[proquint.ID]common.Address{},
		primary:     map[common.Address]proquint.ID{},
		inboxCount:  map[common.Address]uint64{},
		supply:      big.NewInt(0),
		inboxTotal:  big.NewInt(0),
	}
}

func unix(t time.Time) uint64 { return uint64(t.Unix()) }

func (f *fakeRegistry) LatestBlock(context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeRegistry) BlockTime(_ context.Context, _ *big.Int) (time.Time, error) {
	if f.nowErr != nil {
		return time.Time{}, f.nowErr
	}
	return f.now, nil
}

func (f *fakeRegistry) GetExpiry(_ context.Context, id proquint.ID) (uint64, error) {
	f.reads++
	return f.expiry[id], nil
}

func (f *fakeRegistry) InboxExpiry(_ context.Context, id proquint.ID) (uint64, error) {
	return f.inboxExpiry[id], nil
}

func (f *fakeRegistry) InboxCount(_ context.Context, user common.Address) (uint64, error) {
	return f.inboxCount[user], nil
}

func (f *fakeRegistry) PrimaryName(_ context.Context, user common.Address) (proquint.ID, error) {
	return f.primary[user], nil
}

func (f *fakeRegistry) Owner(_ context.Context, id proquint.ID) (common.Address, error) {
	return f.owners[id], nil
}

func (f *fakeRegistry) TotalSupply(context.Context) (*big.Int, error) { return f.supply, nil }
func (f *fakeRegistry) TotalInbox(context.Context) (*big.Int, error)  { return f.inboxTotal, nil }

func (f *fakeRegistry) FilterEvents(_ context.Context, from, to uint64) ([]models.ChainEvent, error) {
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	f.filtered = append(f.filtered, [2]uint64{from, to})
	var out []models.ChainEvent
	for _, e := range f.events {
		if e.BlockNumber >= from && e.BlockNumber <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeCommitmentStore struct {
	items map[string]*models.Commitment
	now   time.Time
	// beforeReveal runs inside MarkRevealed ahead of the status check.
	beforeReveal func(hash string)
}

func newFakeCommitmentStore() *fakeCommitmentStore {
	return &fakeCommitmentStore{items: map[string]*models.Commitment{}, now: t0}
}

func (s *fakeCommitmentStore) Create(_ context.Context, c *models.Commitment) error {
	if _, ok := s.items[c.Hash]; ok {
		return errors.New("duplicate hash")
	}
	c.ID = uuid.New()
	c.PreparedAt = s.now
	c.UpdatedAt = s.now
	cp := *c
	s.items[c.Hash] = &cp
	return nil
}

func (s *fakeCommitmentStore) GetByHash(_ context.Context, hash string) (*models.Commitment, error) {
	c, ok := s.items[hash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeCommitmentStore) MarkCommitted(_ context.Context, hash, txHash string, createdAt time.Time) (bool, error) {
	c, ok := s.items[hash]
	if !ok || !c.CanConfirm() {
		return false, nil
	}
	c.Status = models.CommitmentStatusCommitted
	c.CreatedAt = &createdAt
	c.CommitTxHash = &txHash
	return true, nil
}

func (s *fakeCommitmentStore) MarkRevealed(_ context.Context, hash string, at time.Time) (bool, error) {
	if s.beforeReveal != nil {
		s.beforeReveal(hash)
	}
	c, ok := s.items[hash]
	if !ok || !c.CanReveal() {
		return false, nil
	}
	c.Status = models.CommitmentStatusRevealed
	c.RevealedAt = &at
	return true, nil
}

func (s *fakeCommitmentStore) UpdateStatus(_ context.Context, hash, from, to string) (bool, error) {
	c, ok := s.items[hash]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (s *fakeCommitmentStore) ListByStatus(_ context.Context, status string, limit int) ([]models.Commitment, error) {
	var out []models.Commitment
	for _, c := range s.items {
		if c.Status == status && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeCommitmentStore) ListByCaller(_ context.Context, caller string, limit int) ([]models.Commitment, error) {
	var out []models.Commitment
	for _, c := range s.items {
		if c.Caller == caller && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *fakeCommitmentStore) ExpirePendingBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	var hashes []string
	for h, c := range s.items {
		if c.Status == models.CommitmentStatusPending && c.PreparedAt.Before(cutoff) {
			c.Status = models.CommitmentStatusExpired
			hashes = append(hashes, h)
		}
	}
	sort.Strings(hashes)
	return hashes, nil
}

type eventKey struct {
	tx  string
	idx uint
}

type fakeEventStore struct {
	rows map[eventKey]models.ChainEvent
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{rows: map[eventKey]models.ChainEvent{}}
}

func (s *fakeEventStore) Upsert(_ context.Context, evs []models.ChainEvent) (int, error) {
	n := 0
	for _, e := range evs {
		k := eventKey{e.TxHash, e.LogIndex}
		if _, ok := s.rows[k]; ok {
			continue
		}
		s.rows[k] = e
		n++
	}
	return n, nil
}

func (s *fakeEventStore) ListByUser(_ context.Context, addr string, limit int) ([]models.ChainEvent, error) {
	var out []models.ChainEvent
	for _, e := range s.rows {
		from, _ := e.Args["from"].(string)
		if e.User == addr || (e.Type == models.EventTransfer && from == addr) {
			out = append(out, e)
		}
	}
	return newestFirst(out, limit), nil
}

func (s *fakeEventStore) ListByName(_ context.Context, nameID string, limit int) ([]models.ChainEvent, error) {
	var out []models.ChainEvent
	for _, e := range s.rows {
		if e.NameID == nameID {
			out = append(out, e)
		}
	}
	return newestFirst(out, limit), nil
}

// newestFirst mirrors the repository: latest limit rows, newest first.
func newestFirst(evs []models.ChainEvent, limit int) []models.ChainEvent {
	sort.Slice(evs, func(i, j int) bool {
		if evs[i].BlockNumber != evs[j].BlockNumber {
			return evs[i].BlockNumber > evs[j].BlockNumber
		}
		return evs[i].LogIndex > evs[j].LogIndex
	})
	if len(evs) > limit {
		evs = evs[:limit]
	}
	return evs
}
