package memory

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"

	"xdao.co/committee/contract"
	"xdao.co/committee/nodekeys"
	"xdao.co/committee/scheduler"
)

const electionDomain = "xdao-committee-election-v1"

// groupSizes are the committee sizes used for one contract.
type groupSizes struct {
	compute, computeBackup, storage int
}

func (b *Backend) sizesFor(c *contract.Contract) groupSizes {
	s := groupSizes{
		compute:       b.cfg.ComputeGroupSize,
		computeBackup: b.cfg.ComputeBackupSize,
		storage:       b.cfg.StorageGroupSize,
	}
	if c.ReplicaGroupSize > 0 {
		s.compute = c.ReplicaGroupSize
	}
	if c.ReplicaGroupBackupSize > 0 {
		s.computeBackup = c.ReplicaGroupBackupSize
	}
	if c.StorageGroupSize > 0 {
		s.storage = c.StorageGroupSize
	}
	return s
}

// elect returns the committees of c for epoch, compute first then storage.
// A storage committee is only formed when its size is non-zero.
func elect(nodes []nodekeys.PublicKey, c *contract.Contract, epoch uint64, sizes groupSizes) ([]*scheduler.Committee, error) {
	compute, err := electKind(nodes, c, epoch, scheduler.KindCompute, sizes.compute, sizes.computeBackup)
	if err != nil {
		return nil, err
	}
	out := []*scheduler.Committee{compute}
	if sizes.storage > 0 {
		storage, err := electKind(nodes, c, epoch, scheduler.KindStorage, sizes.storage, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, storage)
	}
	return out, nil
}

// electKind shuffles nodes with a permutation seeded by (contract, epoch,
// kind) and takes the first size+backup of them. For compute committees the
// first pick leads.
func electKind(nodes []nodekeys.PublicKey, c *contract.Contract, epoch uint64, kind scheduler.CommitteeKind, size, backup int) (*scheduler.Committee, error) {
	if size < 1 {
		return nil, fmt.Errorf("memory: %s committee size must be at least 1", kind)
	}
	if size+backup > len(nodes) {
		return nil, fmt.Errorf("%w: %s committee needs %d, have %d", scheduler.ErrNotEnoughNodes, kind, size+backup, len(nodes))
	}

	perm := permutation(len(nodes), electionSeed(c.ID, epoch, kind))
	committee := &scheduler.Committee{
		Kind:     kind,
		ValidFor: epoch,
		Contract: c,
		Members:  make([]*scheduler.CommitteeNode, 0, size+backup),
	}
	for i := 0; i < size+backup; i++ {
		role := scheduler.RoleWorker
		switch {
		case i >= size:
			role = scheduler.RoleBackupWorker
		case i == 0 && kind == scheduler.KindCompute:
			role = scheduler.RoleLeader
		}
		committee.Members = append(committee.Members, &scheduler.CommitteeNode{
			Role:      role,
			PublicKey: nodes[perm[i]],
		})
	}
	return committee, nil
}

func electionSeed(contractID []byte, epoch uint64, kind scheduler.CommitteeKind) sha3.ShakeHash {
	var e [8]byte
	binary.BigEndian.PutUint64(e[:], epoch)

	h := sha3.NewShake256()
	_, _ = h.Write([]byte(electionDomain))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(contractID)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(e[:])
	_, _ = h.Write([]byte{byte(kind)})
	return h
}

// permutation is a Fisher-Yates shuffle of [0, n) driven by the XOF stream.
func permutation(n int, xof sha3.ShakeHash) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	var buf [8]byte
	for i := n - 1; i > 0; i-- {
		j := int(uniform(xof, &buf, uint64(i+1)))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// uniform draws from [0, bound) by rejection sampling to avoid modulo bias.
func uniform(xof sha3.ShakeHash, buf *[8]byte, bound uint64) uint64 {
	limit := ^uint64(0) - (^uint64(0) % bound)
	for {
		_, _ = xof.Read(buf[:])
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return v % bound
		}
	}
}
