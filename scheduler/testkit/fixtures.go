package testkit

import (
	"bytes"
	"testing"

	"xdao.co/committee/contract"
	"xdao.co/committee/nodekeys"
	"xdao.co/committee/scheduler"
)

// ContractID returns a canonical contract id filled with b.
func ContractID(b byte) []byte {
	return bytes.Repeat([]byte{b}, contract.IDSize)
}

// NodeKeys returns n deterministic ed25519 node keys.
func NodeKeys(t testing.TB, n int) []nodekeys.PublicKey {
	t.Helper()
	keys, err := nodekeys.GenerateNodeSet(nodekeys.AlgEd25519, make([]byte, nodekeys.SeedSize), n)
	if err != nil {
		t.Fatalf("GenerateNodeSet: %v", err)
	}
	return keys
}

// Committee builds a committee of kind for the given epoch whose first member
// leads and the rest work.
func Committee(t testing.TB, kind scheduler.CommitteeKind, epoch uint64, contractID []byte, members int) *scheduler.Committee {
	t.Helper()
	c := &scheduler.Committee{
		Kind:     kind,
		ValidFor: epoch,
		Contract: contract.New(contractID),
	}
	for i, k := range NodeKeys(t, members) {
		role := scheduler.RoleWorker
		if i == 0 && kind == scheduler.KindCompute {
			role = scheduler.RoleLeader
		}
		c.Members = append(c.Members, &scheduler.CommitteeNode{Role: role, PublicKey: k})
	}
	return c
}
