package grpcsched

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/committee/contract"
	"xdao.co/committee/scheduler"
)

var (
	errMissingBackend = errors.New("grpcsched: missing scheduler backend")
	errMissingRequest = errors.New("grpcsched: missing request")
)

// ContractBuilder turns the raw contract identifier of a GetCommittees
// request into the contract handed to the backend.
type ContractBuilder func(ctx context.Context, id []byte) (*contract.Contract, error)

// IDOnlyContract copies id verbatim and leaves every other contract field
// zero. It is the default ContractBuilder.
//
// TODO: fill the remaining fields from a contract registry once the service
// accepts full contracts instead of identifiers.
func IDOnlyContract(_ context.Context, id []byte) (*contract.Contract, error) {
	return contract.New(id), nil
}

type ServerOption func(*Server)

func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithContractBuilder(b ContractBuilder) ServerOption {
	return func(s *Server) {
		if b != nil {
			s.buildContract = b
		}
	}
}

// WithStreamErrors makes WatchCommittees end with INTERNAL when the feed or
// forwarding fails. By default such failures close the stream cleanly and are
// only reported in the x-scheduler-watch-error trailer.
func WithStreamErrors(surface bool) ServerOption {
	return func(s *Server) { s.surfaceStreamErrors = surface }
}

// Server exposes a scheduler.Backend over the Scheduler gRPC service.
//
// It keeps no per-call state: every call translates one request, invokes the
// shared backend and translates the result. The backend does its own locking.
type Server struct {
	UnimplementedSchedulerServer

	backend             scheduler.Backend
	buildContract       ContractBuilder
	surfaceStreamErrors bool
	logger              *zap.Logger
}

// NewServer binds backend for the lifetime of the server. backend is not
// validated here; problems surface on the first call.
func NewServer(backend scheduler.Backend, opts ...ServerOption) *Server {
	s := &Server{
		backend:       backend,
		buildContract: IDOnlyContract,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) GetCommittees(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	c, err := s.newContract(ctx, in)
	if err != nil {
		return nil, invalidArgument(err)
	}
	committees, err := s.backend.GetCommittees(ctx, c)
	if err != nil {
		s.logger.Debug("get committees failed", zap.Stringer("contract", c), zap.Error(err))
		return nil, internal(err)
	}
	resp, err := snapshotToWire(committees)
	if err != nil {
		return nil, internal(err)
	}
	return resp, nil
}

// newContract is the single place a request becomes a backend invocation.
func (s *Server) newContract(ctx context.Context, in *wrapperspb.BytesValue) (*contract.Contract, error) {
	if s.backend == nil {
		return nil, errMissingBackend
	}
	if in == nil {
		return nil, errMissingRequest
	}
	c, err := s.buildContract(ctx, in.GetValue())
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.New("grpcsched: contract builder returned nil")
	}
	return c, nil
}

// WatchCommittees forwards the backend feed until it ends, the caller goes
// away or a send fails. The stream always completes; see WithStreamErrors.
func (s *Server) WatchCommittees(_ *emptypb.Empty, stream Scheduler_WatchCommitteesServer) error {
	if s.backend == nil {
		return s.endWatch(stream, errMissingBackend)
	}
	ctx := stream.Context()
	sub, err := s.backend.WatchCommittees(ctx)
	if err != nil {
		return s.endWatch(stream, err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-sub.Committees():
			if !ok {
				return s.endWatch(stream, sub.Err())
			}
			msg, err := updateToWire(c)
			if err != nil {
				return s.endWatch(stream, err)
			}
			if err := stream.Send(msg); err != nil {
				return s.endWatch(stream, err)
			}
		}
	}
}

func (s *Server) endWatch(stream grpc.ServerStream, err error) error {
	if err == nil {
		return nil
	}
	if stream.Context().Err() != nil {
		s.logger.Debug("committee watch ended by caller", zap.Error(err))
		return nil
	}
	s.logger.Warn("committee watch ended with error", zap.Error(err))
	stream.SetTrailer(metadata.Pairs(watchErrorTrailer, trailerSafe(err.Error())))
	if s.surfaceStreamErrors {
		return internal(err)
	}
	return nil
}

// trailerSafe keeps only printable ASCII, which is what plain metadata values allow.
func trailerSafe(v string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '?'
		}
		return r
	}, v)
}
