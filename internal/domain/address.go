package domain

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AddressLength is the size of an account key in bytes.
const AddressLength = 32

// Address identifies an account: a 32-byte key rendered in base58.
// The all-zero key is the null address and never a valid recipient.
type Address [AddressLength]byte

// ZeroAddress is the null address ("11111111111111111111111111111111").
var ZeroAddress Address

var errAddressLength = errors.New("address must decode to 32 bytes")

// ParseAddress decodes a base58 account key.
func ParseAddress(s string) (Address, error) {
	var a Address
	decoded, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("decode address %q: %w", s, err)
	}
	if len(decoded) != AddressLength {
		return a, fmt.Errorf("decode address %q: %w", s, errAddressLength)
	}
	copy(a[:], decoded)
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes copies a 32-byte key.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLength {
		return a, errAddressLength
	}
	copy(a[:], b)
	return a, nil
}

// String returns the base58 form.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns a copy of the raw key.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

// IsZero reports whether a is the null address.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// IsOnCurve reports whether the key is a valid ed25519 point, i.e. an address
// someone can hold a private key for. Program-derived addresses are off-curve.
func (a Address) IsOnCurve() bool {
	return isOnCurve(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON keeps addresses readable in API payloads and event attributes.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return a.UnmarshalText([]byte(s))
}

// DeriveProgramAddress derives an off-curve address owned by programID.
// Seeds are concatenated with a bump byte, the program id and the
// "ProgramDerivedAddress" marker, then hashed; the first bump (from 255 down)
// that lands off the curve wins.
func DeriveProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0, 64)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID[:]...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			return Address(hash), bump, nil
		}
	}
	return ZeroAddress, 0, fmt.Errorf("no off-curve address for program %s", programID)
}

func isOnCurve(point []byte) bool {
	if len(point) != AddressLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
