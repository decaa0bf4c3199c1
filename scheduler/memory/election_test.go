package memory

import (
	"testing"

	"xdao.co/committee/contract"
	"xdao.co/committee/scheduler"
	"xdao.co/committee/scheduler/testkit"
)

func TestElectionDeterministic(t *testing.T) {
	nodes := testkit.NodeKeys(t, 10)
	c := contract.New(testkit.ContractID(3))
	sizes := groupSizes{compute: 3, computeBackup: 2, storage: 4}

	a, err := elect(nodes, c, 9, sizes)
	if err != nil {
		t.Fatalf("elect: %v", err)
	}
	b, err := elect(nodes, c, 9, sizes)
	if err != nil {
		t.Fatalf("elect: %v", err)
	}
	for i := range a {
		if len(a[i].Members) != len(b[i].Members) {
			t.Fatalf("member count differs")
		}
		for j := range a[i].Members {
			if !a[i].Members[j].PublicKey.Equal(b[i].Members[j].PublicKey) || a[i].Members[j].Role != b[i].Members[j].Role {
				t.Fatalf("election not deterministic at committee %d member %d", i, j)
			}
		}
	}
}

func TestElectionMembersDistinct(t *testing.T) {
	nodes := testkit.NodeKeys(t, 6)
	committee, err := electKind(nodes, contract.New(testkit.ContractID(4)), 1, scheduler.KindCompute, 4, 2)
	if err != nil {
		t.Fatalf("electKind: %v", err)
	}
	seen := map[string]bool{}
	for _, m := range committee.Members {
		k := m.PublicKey.String()
		if seen[k] {
			t.Fatalf("node %s elected twice", k)
		}
		seen[k] = true
	}
	if len(seen) != 6 {
		t.Fatalf("expected every node elected, got %d", len(seen))
	}
}

func TestPermutationIsPermutation(t *testing.T) {
	perm := permutation(50, electionSeed(testkit.ContractID(5), 2, scheduler.KindStorage))
	seen := make([]bool, 50)
	for _, p := range perm {
		if p < 0 || p >= 50 || seen[p] {
			t.Fatalf("invalid permutation %v", perm)
		}
		seen[p] = true
	}
}

func TestElectionRejectsEmptyCommittee(t *testing.T) {
	if _, err := electKind(testkit.NodeKeys(t, 3), contract.New(testkit.ContractID(1)), 0, scheduler.KindCompute, 0, 0); err == nil {
		t.Fatalf("expected error for zero-size committee")
	}
}
