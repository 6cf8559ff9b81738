// Package proquint encodes 4-byte name ids as pronounceable CVCVC-CVCVC strings.
//
// The bit layout and the decode table match the LibProquint contract library,
// so ids produced here are the same token ids the registry contract mints.
package proquint

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strings"
)

const (
	consonants = "bdfghjklmnprstvz"
	vowels     = "aiou"

	// Length is the length of an encoded id including the hyphen.
	Length = 11
)

var (
	ErrInvalidLength = errors.New("invalid proquint length")
	ErrInvalidHex    = errors.New("invalid bytes4 hex")
)

// decodeTable maps 'a'..'z' to its value. Letters outside the alphabet
// (c, e, q, w, x, y) decode to 0, same as the contract.
var decodeTable = [26]uint16{
	'a' - 'a': 0, 'b' - 'a': 0, 'c' - 'a': 0, 'd' - 'a': 1, 'e' - 'a': 0,
	'f' - 'a': 2, 'g' - 'a': 3, 'h' - 'a': 4, 'i' - 'a': 1, 'j' - 'a': 5,
	'k' - 'a': 6, 'l' - 'a': 7, 'm' - 'a': 8, 'n' - 'a': 9, 'o' - 'a': 2,
	'p' - 'a': 10, 'q' - 'a': 0, 'r' - 'a': 11, 's' - 'a': 12, 't' - 'a': 13,
	'u' - 'a': 3, 'v' - 'a': 14, 'w' - 'a': 0, 'x' - 'a': 0, 'y' - 'a': 0,
	'z' - 'a': 15,
}

var cvcvcPattern = regexp.MustCompile(`(?i)^[bdfghjklmnprstvz][aiou][bdfghjklmnprstvz][aiou][bdfghjklmnprstvz]-[bdfghjklmnprstvz][aiou][bdfghjklmnprstvz][aiou][bdfghjklmnprstvz]$`)

// ID is a normalized 4-byte name id: the smaller 16-bit half is always first.
// The zero value is the empty id (the contract uses it for "no primary name").
type ID [4]byte

// FromUint32 builds a normalized id from its big-endian integer form.
func FromUint32(v uint32) ID {
	var raw [4]byte
	binary.BigEndian.PutUint32(raw[:], v)
	return Normalize(raw)
}

// FromBytes builds a normalized id from raw bytes.
func FromBytes(b [4]byte) ID {
	return Normalize(b)
}

// ParseHex parses "0x" + 8 hex chars (prefix optional) into a normalized id.
func ParseHex(s string) (ID, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 8 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	var raw [4]byte
	if _, err := hex.Decode(raw[:], []byte(s)); err != nil {
		return ID{}, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return Normalize(raw), nil
}

// FromTokenID converts an ERC-721 token id (uint256(uint32(id))) back to an id.
func FromTokenID(tokenID *big.Int) (ID, error) {
	if tokenID == nil || tokenID.Sign() < 0 || tokenID.BitLen() > 32 {
		return ID{}, fmt.Errorf("token id out of bytes4 range: %v", tokenID)
	}
	return FromUint32(uint32(tokenID.Uint64())), nil
}

// Normalize swaps the halves so the numerically smaller one is first.
func Normalize(b [4]byte) ID {
	first := binary.BigEndian.Uint16(b[0:2])
	second := binary.BigEndian.Uint16(b[2:4])
	return join(first, second)
}

func join(first, second uint16) ID {
	if first > second {
		first, second = second, first
	}
	var id ID
	binary.BigEndian.PutUint16(id[0:2], first)
	binary.BigEndian.PutUint16(id[2:4], second)
	return id
}

// Halves returns the high and low 16-bit halves.
func (id ID) Halves() (uint16, uint16) {
	return binary.BigEndian.Uint16(id[0:2]), binary.BigEndian.Uint16(id[2:4])
}

func (id ID) Uint32() uint32 {
	return binary.BigEndian.Uint32(id[:])
}

// IsZero reports whether id is the empty id 0x00000000.
func (id ID) IsZero() bool {
	return id == ID{}
}

// IsPalindrome reports whether both halves are equal.
func (id ID) IsPalindrome() bool {
	return IsPalindrome(id)
}

// TokenID is the ERC-721 token id of the name.
func (id ID) TokenID() *big.Int {
	return new(big.Int).SetUint64(uint64(id.Uint32()))
}

// Hex returns the 0x-prefixed bytes4 form used in contract calls.
func (id ID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

// String returns the proquint form, e.g. "babad-babaf".
func (id ID) String() string {
	return Encode(id)
}

// Display is the uppercase form shown to users.
func (id ID) Display() string {
	return strings.ToUpper(Encode(id))
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(Encode(id)), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	v, err := Decode(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// IsPalindrome reports whether the two halves of b are equal. Equality does
// not depend on half order, so b need not be normalized.
func IsPalindrome(b [4]byte) bool {
	return binary.BigEndian.Uint16(b[0:2]) == binary.BigEndian.Uint16(b[2:4])
}

// Encode normalizes b and renders it as CVCVC-CVCVC.
func Encode(b [4]byte) string {
	first, second := Normalize(b).Halves()
	var sb strings.Builder
	sb.Grow(Length)
	encodeHalf(&sb, first)
	sb.WriteByte('-')
	encodeHalf(&sb, second)
	return sb.String()
}

// bit groups are read low to high: C[0:4) V[4:6) C[6:10) V[10:12) C[12:16)
func encodeHalf(sb *strings.Builder, n uint16) {
	sb.WriteByte(consonants[n&0x0f])
	sb.WriteByte(vowels[(n>>4)&0x03])
	sb.WriteByte(consonants[(n>>6)&0x0f])
	sb.WriteByte(vowels[(n>>10)&0x03])
	sb.WriteByte(consonants[(n>>12)&0x0f])
}

// DecodeHalf decodes five letters into a 16-bit value. It never fails on
// unknown letters; they count as 0.
func DecodeHalf(chars string) uint16 {
	return decodeChar(chars[4])<<12 |
		decodeChar(chars[3])<<10 |
		decodeChar(chars[2])<<6 |
		decodeChar(chars[1])<<4 |
		decodeChar(chars[0])
}

func decodeChar(c byte) uint16 {
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	if c < 'a' || c > 'z' {
		return 0
	}
	return decodeTable[c-'a']
}

// Decode parses a proquint into a normalized id. Everything but ASCII
// letters is dropped first; exactly ten letters must remain.
func Decode(s string) (ID, error) {
	letters := clean(s)
	if len(letters) != 10 {
		return ID{}, fmt.Errorf("%w: got %d letters, want 10", ErrInvalidLength, len(letters))
	}
	return join(DecodeHalf(letters[:5]), DecodeHalf(letters[5:])), nil
}

func clean(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			sb.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			sb.WriteByte(c + 'a' - 'A')
		}
	}
	return sb.String()
}

// Validate reports whether s can be decoded (ten letters after cleaning).
// Letters outside the alphabet are accepted.
func Validate(s string) bool {
	return len(clean(s)) == 10
}

// IsValidCVCVC is the strict front-end check: exactly CVCVC-CVCVC over the
// proquint alphabet, any case.
func IsValidCVCVC(s string) bool {
	return cvcvcPattern.MatchString(s)
}

// NormalizeString returns the canonical form of user input, or the trimmed
// lowercase input if it cannot be decoded.
func NormalizeString(s string) string {
	id, err := Decode(s)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return Encode(id)
}

// Random draws a random normalized id from r.
func Random(r io.Reader) (ID, error) {
	var raw [4]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return ID{}, fmt.Errorf("read random bytes: %w", err)
	}
	return Normalize(raw), nil
}
