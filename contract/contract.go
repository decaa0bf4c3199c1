// Package contract holds the contract reference passed to scheduler backends.
//
// The scheduler service only ever learns a contract's identifier. Every other
// field stays at its zero value unless a backend fills it from its own
// registry.
package contract

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// IDSize is the canonical contract identifier length (256 bits).
const IDSize = 32

var ErrMalformedID = errors.New("contract: malformed id")

// Contract describes a contract as seen by the scheduler.
type Contract struct {
	// ID is the raw identifier. It is canonical when len(ID) == IDSize.
	ID []byte

	StoreID  []byte
	CodeHash []byte

	// Group sizes requested by the contract. Zero means "backend default".
	ReplicaGroupSize       int
	ReplicaGroupBackupSize int
	StorageGroupSize       int

	MinimumBond          uint64
	ModeNondeterministic bool
	FeaturesSGX          bool
}

// New returns a Contract whose ID is a verbatim copy of id.
//
// No length or format check happens here: malformed identifiers are for the
// backend to reject.
func New(id []byte) *Contract {
	return &Contract{ID: append([]byte(nil), id...)}
}

// CheckID reports ErrMalformedID unless c carries a canonical identifier.
func (c *Contract) CheckID() error {
	if c == nil {
		return fmt.Errorf("%w: nil contract", ErrMalformedID)
	}
	if len(c.ID) != IDSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedID, len(c.ID), IDSize)
	}
	return nil
}

// String returns the base58 form of the identifier.
func (c *Contract) String() string {
	if c == nil {
		return "<nil>"
	}
	return FormatID(c.ID)
}

// FormatID renders an identifier as base58.
func FormatID(id []byte) string { return base58.Encode(id) }

// ParseID accepts a 64-char hex identifier or a base58 one.
func ParseID(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedID)
	}
	if len(s) == hex.EncodedLen(IDSize) {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedID, err)
	}
	if len(b) != IDSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedID, len(b), IDSize)
	}
	return b, nil
}
