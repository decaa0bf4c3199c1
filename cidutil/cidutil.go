// Package cidutil derives content identifiers for scheduler values.
package cidutil

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var detEnc cbor.EncMode

func init() {
	var err error
	detEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// CanonicalCBOR encodes v with the core deterministic CBOR rules (sorted map
// keys, shortest integer forms), so equal values always encode identically.
func CanonicalCBOR(v interface{}) ([]byte, error) {
	return detEnc.Marshal(v)
}

// DagCBORCID returns a CIDv1 (dag-cbor + sha2-256) of v's canonical CBOR encoding.
func DagCBORCID(v interface{}) (cid.Cid, error) {
	b, err := CanonicalCBOR(v)
	if err != nil {
		return cid.Undef, err
	}
	sum, err := multihash.Sum(b, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagCBOR, sum), nil
}
