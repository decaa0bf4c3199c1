package nodekeys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

// SeedSize is the size of root and node seeds.
const SeedSize = 32

// DeriveNodeSeed deterministically derives the seed of node index from a root seed.
func DeriveNodeSeed(rootSeed []byte, index int) ([]byte, error) {
	if len(rootSeed) != SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", SeedSize)
	}
	if index < 0 {
		return nil, fmt.Errorf("node index must be non-negative, got %d", index)
	}

	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(index))

	out := make([]byte, SeedSize)
	r := hkdf.New(sha256.New, rootSeed, []byte(nodeSeedSalt), idx[:])
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

const nodeSeedSalt = "xdao-committee-node-v1"

// SeedFromMnemonic turns a BIP-39 mnemonic into a root seed. The mnemonic
// checksum is verified; no passphrase is used.
func SeedFromMnemonic(mnemonic string) ([]byte, error) {
	m := strings.Join(strings.Fields(mnemonic), " ")
	seed, err := bip39.NewSeedWithErrorChecking(m, "")
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	return seed[:SeedSize], nil
}

// NewMnemonic returns a fresh 24-word mnemonic for a root seed.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// PublicKeyFromSeed returns the node public key for seed under alg.
func PublicKeyFromSeed(alg string, seed []byte) (PublicKey, error) {
	if len(seed) != SeedSize {
		return PublicKey{}, fmt.Errorf("seed must be %d bytes", SeedSize)
	}
	switch alg {
	case AlgEd25519:
		priv := ed25519.NewKeyFromSeed(seed)
		pub := priv.Public().(ed25519.PublicKey)
		return PublicKey{Alg: AlgEd25519, Key: []byte(pub)}, nil
	case AlgDilithium3:
		var s [mode3.SeedSize]byte
		copy(s[:], seed)
		pk, _ := mode3.NewKeyFromSeed(&s)
		return PublicKey{Alg: AlgDilithium3, Key: pk.Bytes()}, nil
	default:
		return PublicKey{}, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidKey, alg)
	}
}

// GenerateNodeSet derives n node public keys from rootSeed.
func GenerateNodeSet(alg string, rootSeed []byte, n int) ([]PublicKey, error) {
	if n < 0 {
		return nil, fmt.Errorf("nodekeys: negative node count %d", n)
	}
	out := make([]PublicKey, 0, n)
	for i := 0; i < n; i++ {
		seed, err := DeriveNodeSeed(rootSeed, i)
		if err != nil {
			return nil, err
		}
		pk, err := PublicKeyFromSeed(alg, seed)
		if err != nil {
			return nil, err
		}
		out = append(out, pk)
	}
	return out, nil
}
