package grpcsched

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/committee/scheduler"
)

// watchErrorTrailer carries the text of a stream error the server absorbed.
const watchErrorTrailer = "x-scheduler-watch-error"

// Failure kinds surfaced by GetCommittees. Backend detail is flattened to
// its description; no structured backend codes cross the wire.
func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, describe(err))
}

func internal(err error) error {
	return status.Error(codes.Internal, describe(err))
}

func describe(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// mapRPC converts a status returned by the service back into scheduler errors.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", scheduler.ErrInvalidRequest, st.Message())
	case codes.Internal:
		return fmt.Errorf("%w: %s", scheduler.ErrBackend, st.Message())
	default:
		return err
	}
}

// watchTrailerError returns the absorbed stream error carried in trailer
// values, if any.
func watchTrailerError(values []string) error {
	if len(values) == 0 || values[0] == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", scheduler.ErrBackend, values[0])
}
