// Package commitment builds the commit-reveal payload for name registration.
//
// Layout of the 32-byte input the contract receives on reveal:
//
//	byte 0      years (uint8)
//	bytes 1..4  normalized name id (bytes4)
//	bytes 5..31 secret (bytes27)
//
// The commitment hash is keccak256(input[1:32] ++ recipient), 51 bytes with no
// padding, exactly as ProquintNFT.makeCommitment packs it.
package commitment

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/proquint-registry/backend/internal/pricing"
	"github.com/proquint-registry/backend/internal/proquint"
)

const (
	InputLength  = 32
	SecretLength = 27

	MinAge = 5 * time.Second
	MaxAge = 15 * time.Minute
)

var (
	ErrExpired     = errors.New("commitment expired")
	ErrNotYetReady = errors.New("commitment not yet ready")
)

// NotReadyError carries how long the caller still has to wait.
type NotReadyError struct {
	Remaining time.Duration
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: %ds remaining", ErrNotYetReady, secondsCeil(e.Remaining))
}

func (e *NotReadyError) Unwrap() error {
	return ErrNotYetReady
}

type Secret [SecretLength]byte

// NewSecret draws a fresh secret from r (crypto/rand.Reader in production).
func NewSecret(r io.Reader) (Secret, error) {
	var s Secret
	if _, err := io.ReadFull(r, s[:]); err != nil {
		return Secret{}, fmt.Errorf("read secret: %w", err)
	}
	return s, nil
}

func (s Secret) Hex() string {
	return hexutil.Encode(s[:])
}

// Pack lays out years ++ id ++ secret. The id is used as given; callers pass
// an already normalized proquint.ID.
func Pack(years uint8, id proquint.ID, secret Secret) [InputLength]byte {
	var data [InputLength]byte
	data[0] = years
	copy(data[1:5], id[:])
	copy(data[5:], secret[:])
	return data
}

// Unpack splits an input back into its parts. The id is re-normalized, as
// the contract does on reveal.
func Unpack(data [InputLength]byte) (uint8, proquint.ID, Secret) {
	var raw [4]byte
	copy(raw[:], data[1:5])
	var secret Secret
	copy(secret[:], data[5:])
	return data[0], proquint.Normalize(raw), secret
}

// Hash computes keccak256(bytes31(data[1:]) ++ recipient).
func Hash(data [InputLength]byte, recipient common.Address) common.Hash {
	return crypto.Keccak256Hash(data[1:], recipient.Bytes())
}

// Commitment is the client-side half of a registration in flight.
type Commitment struct {
	Data       [InputLength]byte
	Hash       common.Hash
	Recipient  common.Address
	RegisterTo bool
}

// DataHex is the 0x-prefixed input passed to register/registerTo.
func (c *Commitment) DataHex() string {
	return hexutil.Encode(c.Data[:])
}

// New builds a commitment for the given registration. years is checked
// against the contract's range before anything is packed.
func New(years int, id proquint.ID, secret Secret, recipient common.Address) (*Commitment, error) {
	if err := pricing.ValidateYears(years); err != nil {
		return nil, err
	}
	data := Pack(uint8(years), id, secret)
	return &Commitment{
		Data:      data,
		Hash:      Hash(data, recipient),
		Recipient: recipient,
	}, nil
}

// ChooseRecipient decides which address the commitment is bound to and which
// reveal entry point applies. register() mints to the caller as primary and
// needs the caller to hold no primary; everything else goes through
// registerTo() into the receiver's inbox. A zero receiver means "self".
func ChooseRecipient(caller, receiver common.Address, callerHasPrimary bool) (common.Address, bool) {
	if receiver == (common.Address{}) {
		receiver = caller
	}
	registerTo := callerHasPrimary || receiver != caller
	if registerTo {
		return receiver, true
	}
	return caller, false
}

// State of a commitment relative to the reveal window.
type State string

const (
	StateWaiting State = "waiting"
	StateReady   State = "ready"
	StateExpired State = "expired"
)

type Status struct {
	State     State
	Remaining time.Duration
}

// SecondsLeft rounds Remaining up to whole seconds.
func (s Status) SecondsLeft() int64 {
	return secondsCeil(s.Remaining)
}

// StatusAt classifies a commitment confirmed at createdAt: waiting while
// younger than MinAge, ready up to and including MaxAge, expired after.
func StatusAt(createdAt, now time.Time) Status {
	elapsed := now.Sub(createdAt)
	switch {
	case elapsed < MinAge:
		return Status{State: StateWaiting, Remaining: MinAge - elapsed}
	case elapsed > MaxAge:
		return Status{State: StateExpired}
	default:
		return Status{State: StateReady}
	}
}

// CheckReveal returns nil when a reveal at now would pass the age checks,
// a *NotReadyError while waiting, or ErrExpired.
func CheckReveal(createdAt, now time.Time) error {
	st := StatusAt(createdAt, now)
	switch st.State {
	case StateWaiting:
		return &NotReadyError{Remaining: st.Remaining}
	case StateExpired:
		return ErrExpired
	}
	return nil
}

func secondsCeil(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
