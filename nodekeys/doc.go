// Package nodekeys provides node identity key helpers used by scheduler backends.
//
// Stable:
//   - The textual public key form "<alg>:<base58>" used on the wire.
//   - Deterministic node-seed derivation from a root seed.
//
// Experimental:
//   - dilithium3 node identities. Committee consumers that only understand
//     ed25519 keys should reject them.
package nodekeys
