package scheduler

import (
	"fmt"

	"xdao.co/committee/contract"
	"xdao.co/committee/nodekeys"
)

// CommitteeKind identifies what a committee does for a contract.
type CommitteeKind uint8

const (
	KindCompute CommitteeKind = iota
	KindStorage
)

func (k CommitteeKind) String() string {
	switch k {
	case KindCompute:
		return "compute"
	case KindStorage:
		return "storage"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func ParseCommitteeKind(s string) (CommitteeKind, error) {
	switch s {
	case "compute":
		return KindCompute, nil
	case "storage":
		return KindStorage, nil
	default:
		return 0, fmt.Errorf("scheduler: unknown committee kind %q", s)
	}
}

// Role is a node's role within a committee.
type Role uint8

const (
	RoleWorker Role = iota
	RoleBackupWorker
	RoleLeader
)

func (r Role) String() string {
	switch r {
	case RoleWorker:
		return "worker"
	case RoleBackupWorker:
		return "backup_worker"
	case RoleLeader:
		return "leader"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "worker":
		return RoleWorker, nil
	case "backup_worker":
		return RoleBackupWorker, nil
	case "leader":
		return RoleLeader, nil
	default:
		return 0, fmt.Errorf("scheduler: unknown role %q", s)
	}
}

// CommitteeNode is a committee member.
type CommitteeNode struct {
	Role      Role
	PublicKey nodekeys.PublicKey
}

// Committee is a committee assignment at a point in time.
type Committee struct {
	Kind    CommitteeKind
	Members []*CommitteeNode
	// ValidFor is the epoch this assignment belongs to.
	ValidFor uint64
	Contract *contract.Contract
}

func (c *Committee) String() string {
	if c == nil {
		return "<nil committee>"
	}
	return fmt.Sprintf("%s committee of %s (epoch %d, %d members)", c.Kind, c.Contract, c.ValidFor, len(c.Members))
}
