package contract

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestNewCopiesIDVerbatim(t *testing.T) {
	raw := []byte{1, 2, 3}
	c := New(raw)
	raw[0] = 9
	if !bytes.Equal(c.ID, []byte{1, 2, 3}) {
		t.Fatalf("expected verbatim copy, got %x", c.ID)
	}
	if c.ReplicaGroupSize != 0 || c.StorageGroupSize != 0 || c.StoreID != nil || c.MinimumBond != 0 {
		t.Fatalf("expected zero metadata, got %+v", c)
	}
}

func TestCheckID(t *testing.T) {
	if err := New(make([]byte, IDSize)).CheckID(); err != nil {
		t.Fatalf("CheckID canonical: %v", err)
	}
	if err := New([]byte("short")).CheckID(); !errors.Is(err, ErrMalformedID) {
		t.Fatalf("CheckID short: got %v want ErrMalformedID", err)
	}
	var nilContract *Contract
	if err := nilContract.CheckID(); !errors.Is(err, ErrMalformedID) {
		t.Fatalf("CheckID nil: got %v want ErrMalformedID", err)
	}
}

func TestParseIDHexAndBase58(t *testing.T) {
	id := bytes.Repeat([]byte{0xab}, IDSize)

	got, err := ParseID(hex.EncodeToString(id))
	if err != nil {
		t.Fatalf("ParseID hex: %v", err)
	}
	if !bytes.Equal(got, id) {
		t.Fatalf("hex mismatch")
	}

	got, err = ParseID(FormatID(id))
	if err != nil {
		t.Fatalf("ParseID base58: %v", err)
	}
	if !bytes.Equal(got, id) {
		t.Fatalf("base58 mismatch")
	}

	for _, bad := range []string{"", "0OIl", FormatID([]byte("short"))} {
		if _, err := ParseID(bad); !errors.Is(err, ErrMalformedID) {
			t.Fatalf("ParseID(%q): got %v want ErrMalformedID", bad, err)
		}
	}
}
