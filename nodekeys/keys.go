package nodekeys

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/mr-tron/base58"
)

const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

var ErrInvalidKey = errors.New("nodekeys: invalid public key")

// PublicKey is a node identity public key tagged with its algorithm.
type PublicKey struct {
	Alg string
	Key []byte
}

// String returns "<alg>:<base58(key)>".
func (k PublicKey) String() string {
	return k.Alg + ":" + base58.Encode(k.Key)
}

func (k PublicKey) Equal(o PublicKey) bool {
	return k.Alg == o.Alg && bytes.Equal(k.Key, o.Key)
}

// Validate checks that Key has the size and encoding required by Alg.
func (k PublicKey) Validate() error {
	switch k.Alg {
	case AlgEd25519:
		if len(k.Key) != ed25519.PublicKeySize {
			return fmt.Errorf("%w: ed25519 key is %d bytes", ErrInvalidKey, len(k.Key))
		}
		return nil
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(k.Key); err != nil {
			return fmt.Errorf("%w: dilithium3: %v", ErrInvalidKey, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidKey, k.Alg)
	}
}

// ParsePublicKey parses the form produced by PublicKey.String.
func ParsePublicKey(s string) (PublicKey, error) {
	alg, enc, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return PublicKey{}, fmt.Errorf("%w: missing algorithm prefix", ErrInvalidKey)
	}
	raw, err := base58.Decode(enc)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	k := PublicKey{Alg: alg, Key: raw}
	if err := k.Validate(); err != nil {
		return PublicKey{}, err
	}
	return k, nil
}
