package grpcsched

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"
	"google.golang.org/protobuf/types/known/structpb"

	"xdao.co/committee/contract"
	"xdao.co/committee/nodekeys"
	"xdao.co/committee/scheduler"
)

// Wire field names. They mirror scheduler.proto.
const (
	fieldCommittees = "committees"
	fieldCommittee  = "committee"
	fieldKind       = "kind"
	fieldValidFor   = "valid_for"
	fieldContractID = "contract_id"
	fieldMembers    = "members"
	fieldRole       = "role"
	fieldPublicKey  = "public_key"
)

var errMalformedMessage = errors.New("grpcsched: malformed message")

// committeeToWire is the one-way mapping from a backend committee to its
// wire form. It reads c and never mutates it.
func committeeToWire(c *scheduler.Committee) (*structpb.Struct, error) {
	if c == nil {
		return nil, errors.New("grpcsched: nil committee")
	}
	members := make([]*structpb.Value, 0, len(c.Members))
	for i, m := range c.Members {
		if m == nil {
			return nil, fmt.Errorf("grpcsched: nil member %d in %s", i, c)
		}
		members = append(members, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			fieldRole:      structpb.NewStringValue(m.Role.String()),
			fieldPublicKey: structpb.NewStringValue(m.PublicKey.String()),
		}}))
	}
	var contractID string
	if c.Contract != nil {
		contractID = contract.FormatID(c.Contract.ID)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldKind: structpb.NewStringValue(c.Kind.String()),
		// Decimal string keeps uint64 epochs exact (Struct numbers are doubles).
		fieldValidFor:   structpb.NewStringValue(strconv.FormatUint(c.ValidFor, 10)),
		fieldContractID: structpb.NewStringValue(contractID),
		fieldMembers:    structpb.NewListValue(&structpb.ListValue{Values: members}),
	}}, nil
}

// snapshotToWire packages committees into a GetCommittees response,
// preserving order and count.
func snapshotToWire(cs []*scheduler.Committee) (*structpb.Struct, error) {
	values := make([]*structpb.Value, 0, len(cs))
	for _, c := range cs {
		w, err := committeeToWire(c)
		if err != nil {
			return nil, err
		}
		values = append(values, structpb.NewStructValue(w))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldCommittees: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}, nil
}

// updateToWire wraps exactly one committee as a WatchCommittees stream item.
func updateToWire(c *scheduler.Committee) (*structpb.Struct, error) {
	w, err := committeeToWire(c)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldCommittee: structpb.NewStructValue(w),
	}}, nil
}

func committeeFromWire(s *structpb.Struct) (*scheduler.Committee, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: missing committee", errMalformedMessage)
	}
	f := s.GetFields()

	kind, err := scheduler.ParseCommitteeKind(f[fieldKind].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedMessage, err)
	}
	validFor, err := strconv.ParseUint(f[fieldValidFor].GetStringValue(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: valid_for: %v", errMalformedMessage, err)
	}
	var id []byte
	if enc := f[fieldContractID].GetStringValue(); enc != "" {
		id, err = base58.Decode(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: contract_id: %v", errMalformedMessage, err)
		}
	}

	c := &scheduler.Committee{Kind: kind, ValidFor: validFor, Contract: contract.New(id)}
	for i, v := range f[fieldMembers].GetListValue().GetValues() {
		mf := v.GetStructValue().GetFields()
		role, err := scheduler.ParseRole(mf[fieldRole].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("%w: member %d: %v", errMalformedMessage, i, err)
		}
		pk, err := nodekeys.ParsePublicKey(mf[fieldPublicKey].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("%w: member %d: %v", errMalformedMessage, i, err)
		}
		c.Members = append(c.Members, &scheduler.CommitteeNode{Role: role, PublicKey: pk})
	}
	return c, nil
}

func snapshotFromWire(s *structpb.Struct) ([]*scheduler.Committee, error) {
	values := s.GetFields()[fieldCommittees].GetListValue().GetValues()
	out := make([]*scheduler.Committee, 0, len(values))
	for _, v := range values {
		c, err := committeeFromWire(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func updateFromWire(s *structpb.Struct) (*scheduler.Committee, error) {
	return committeeFromWire(s.GetFields()[fieldCommittee].GetStructValue())
}
