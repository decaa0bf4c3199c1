package grpcsched

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/committee/contract"
	"xdao.co/committee/scheduler"
)

const defaultWatchBuffer = 16

// Client implements scheduler.Backend over a Scheduler gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client SchedulerClient

	// Timeout applies per GetCommittees call when non-zero. Watches are
	// bounded only by their context.
	Timeout time.Duration

	// WatchBuffer is the number of undelivered updates a watch may hold.
	WatchBuffer int
}

var _ scheduler.Backend = (*Client)(nil)

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewSchedulerClient(cc)}, nil
}

// NewClient wraps an existing connection. Close does not close cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{client: NewSchedulerClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) GetCommittees(ctx context.Context, ct *contract.Contract) ([]*scheduler.Committee, error) {
	if c == nil || c.client == nil {
		return nil, scheduler.ErrClosed
	}
	if ct == nil {
		return nil, fmt.Errorf("%w: nil contract", scheduler.ErrInvalidRequest)
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	reply, err := c.client.GetCommittees(ctx, wrapperspb.Bytes(ct.ID))
	if err != nil {
		return nil, mapRPC(err)
	}
	return snapshotFromWire(reply)
}

// WatchCommittees opens a WatchCommittees stream. The feed ends cleanly when
// the server closes the stream, when ctx ends or when the subscription is
// closed; an error the server absorbed is reported by Err.
func (c *Client) WatchCommittees(ctx context.Context) (scheduler.Subscription, error) {
	if c == nil || c.client == nil {
		return nil, scheduler.ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.client.WatchCommittees(ctx, &emptypb.Empty{})
	if err != nil {
		cancel()
		return nil, mapRPC(err)
	}

	buffer := c.WatchBuffer
	if buffer <= 0 {
		buffer = defaultWatchBuffer
	}
	feed := scheduler.NewFeed(buffer)

	go func() {
		select {
		case <-feed.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	go func() {
		defer cancel()
		for {
			msg, err := stream.Recv()
			if err != nil {
				switch {
				case errors.Is(err, io.EOF):
					feed.End(watchTrailerError(stream.Trailer().Get(watchErrorTrailer)))
				case ctx.Err() != nil:
					feed.End(nil)
				default:
					feed.End(mapRPC(err))
				}
				return
			}
			committee, err := updateFromWire(msg)
			if err != nil {
				feed.End(err)
				return
			}
			if !feed.Send(ctx, committee) {
				feed.End(nil)
				return
			}
		}
	}()
	return feed, nil
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}
