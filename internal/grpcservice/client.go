package grpcservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/pastabox/internal/history"
	"go.klb.dev/pastabox/internal/ipc"
)

// ErrNotFound is returned by Client.Get for an unknown handle.
var ErrNotFound = errors.New("no such snippet")

// Client talks to a running daemon.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to the daemon listening on the IPC endpoint at path.
// The connection is established lazily on the first call.
func Dial(path string) (*Client, error) {
	conn, err := grpc.NewClient("passthrough:///pastabox",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return ipc.Dial(path)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection. Close is a no-op for clients made
// this way.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close releases the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, fullMethod(method), in, out)
}

// Add appends text to the history and returns its handle.
func (c *Client) Add(ctx context.Context, text string) (history.Handle, error) {
	out := &wrapperspb.UInt64Value{}
	if err := c.invoke(ctx, "Add", wrapperspb.String(text), out); err != nil {
		return 0, err
	}
	return history.Handle(out.GetValue()), nil
}

// Remove deletes the snippet with handle h. It reports whether one existed.
func (c *Client) Remove(ctx context.Context, h history.Handle) (bool, error) {
	out := &wrapperspb.BoolValue{}
	if err := c.invoke(ctx, "Remove", wrapperspb.UInt64(uint64(h)), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// Clear empties the history.
func (c *Client) Clear(ctx context.Context) error {
	return c.invoke(ctx, "Clear", &emptypb.Empty{}, &emptypb.Empty{})
}

// Toggle flips auto-capture and returns the new value.
func (c *Client) Toggle(ctx context.Context) (bool, error) {
	out := &wrapperspb.BoolValue{}
	if err := c.invoke(ctx, "Toggle", &emptypb.Empty{}, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// SetAutoCapture sets auto-capture and returns the resulting value.
func (c *Client) SetAutoCapture(ctx context.Context, enabled bool) (bool, error) {
	out := &wrapperspb.BoolValue{}
	if err := c.invoke(ctx, "SetAutoCapture", wrapperspb.Bool(enabled), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// CopyOut writes the snippet with handle h to the daemon's clipboard.
func (c *Client) CopyOut(ctx context.Context, h history.Handle) (bool, error) {
	out := &wrapperspb.BoolValue{}
	if err := c.invoke(ctx, "CopyOut", wrapperspb.UInt64(uint64(h)), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// Get returns the text of the snippet with handle h.
func (c *Client) Get(ctx context.Context, h history.Handle) (string, error) {
	out := &httpbody.HttpBody{}
	if err := c.invoke(ctx, "Get", wrapperspb.UInt64(uint64(h)), out); err != nil {
		if status.Code(err) == codes.NotFound {
			return "", fmt.Errorf("%w: %s", ErrNotFound, h)
		}
		return "", err
	}
	return string(out.GetData()), nil
}

// List returns the history, oldest first.
func (c *Client) List(ctx context.Context) ([]history.Entry, error) {
	out := &structpb.ListValue{}
	if err := c.invoke(ctx, "List", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return listToEntries(out)
}

// Draft returns the current draft text.
func (c *Client) Draft(ctx context.Context) (string, error) {
	out := &wrapperspb.StringValue{}
	if err := c.invoke(ctx, "GetDraft", &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// SetDraft replaces the draft text.
func (c *Client) SetDraft(ctx context.Context, text string) error {
	return c.invoke(ctx, "SetDraft", wrapperspb.String(text), &emptypb.Empty{})
}

// CommitDraft appends the draft to the history and returns its handle.
func (c *Client) CommitDraft(ctx context.Context) (history.Handle, error) {
	out := &wrapperspb.UInt64Value{}
	if err := c.invoke(ctx, "CommitDraft", &emptypb.Empty{}, out); err != nil {
		return 0, err
	}
	return history.Handle(out.GetValue()), nil
}

// Status returns the daemon's status as a flat map.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	out := &structpb.Struct{}
	if err := c.invoke(ctx, "Status", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Watch calls fn for every change event until ctx is cancelled, the daemon
// goes away, or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(Event) error) error {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], fullMethod("Watch"))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := &structpb.Struct{}
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := fn(structToEvent(msg)); err != nil {
			return err
		}
	}
}
