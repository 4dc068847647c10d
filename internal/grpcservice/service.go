// Package grpcservice serves the pastabox command interface over gRPC and
// HTTP/JSON on a single listener.
//
// The service is described by hand rather than generated: requests and
// responses are protobuf well-known types (wrappers, Struct, Empty, HttpBody),
// so the default proto codec carries them and no .proto compilation step is
// needed.
package grpcservice

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/pastabox/internal/app"
	"go.klb.dev/pastabox/internal/history"
	"go.klb.dev/pastabox/internal/hub"
)

// Commands is the command interface the service exposes. *app.App
// satisfies it.
type Commands interface {
	AddManual(text string) history.Handle
	RemoveAt(h history.Handle) bool
	Clear()
	ToggleAutoCapture() bool
	SetAutoCapture(enabled bool)
	AutoCapture() bool
	CopyOut(h history.Handle) bool
	Get(h history.Handle) (string, bool)
	Snapshot() []history.Entry
	Draft() string
	SetDraft(text string)
	CommitDraft() history.Handle
	Status() app.Status
	Watch(p hub.Peer) (cancel func())
}

// HistoryServer is the server side of pastabox.v1.History.
type HistoryServer interface {
	Add(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	Remove(context.Context, *wrapperspb.UInt64Value) (*wrapperspb.BoolValue, error)
	Clear(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Toggle(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	SetAutoCapture(context.Context, *wrapperspb.BoolValue) (*wrapperspb.BoolValue, error)
	CopyOut(context.Context, *wrapperspb.UInt64Value) (*wrapperspb.BoolValue, error)
	Get(context.Context, *wrapperspb.UInt64Value) (*httpbody.HttpBody, error)
	List(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	GetDraft(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	SetDraft(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	CommitDraft(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

// Service implements HistoryServer on top of Commands.
type Service struct {
	cmds    Commands
	version string
}

var _ HistoryServer = (*Service)(nil)

// New returns a Service backed by cmds. version is reported by Status.
func New(cmds Commands, version string) *Service {
	return &Service{cmds: cmds, version: version}
}

// Add implements History.Add.
func (s *Service) Add(_ context.Context, in *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	h := s.cmds.AddManual(in.GetValue())
	return wrapperspb.UInt64(uint64(h)), nil
}

// Remove implements History.Remove. Unknown handles are not an error.
func (s *Service) Remove(_ context.Context, in *wrapperspb.UInt64Value) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.cmds.RemoveAt(history.Handle(in.GetValue()))), nil
}

// Clear implements History.Clear.
func (s *Service) Clear(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	s.cmds.Clear()
	return &emptypb.Empty{}, nil
}

// Toggle implements History.Toggle and returns the new flag value.
func (s *Service) Toggle(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.cmds.ToggleAutoCapture()), nil
}

// SetAutoCapture implements History.SetAutoCapture.
func (s *Service) SetAutoCapture(_ context.Context, in *wrapperspb.BoolValue) (*wrapperspb.BoolValue, error) {
	s.cmds.SetAutoCapture(in.GetValue())
	return wrapperspb.Bool(s.cmds.AutoCapture()), nil
}

// CopyOut implements History.CopyOut. The result reports whether the text
// reached the clipboard; a failed write is not an RPC error.
func (s *Service) CopyOut(_ context.Context, in *wrapperspb.UInt64Value) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.cmds.CopyOut(history.Handle(in.GetValue()))), nil
}

// Get implements History.Get.
func (s *Service) Get(_ context.Context, in *wrapperspb.UInt64Value) (*httpbody.HttpBody, error) {
	h := history.Handle(in.GetValue())
	text, ok := s.cmds.Get(h)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no snippet with handle %s", h)
	}
	return &httpbody.HttpBody{
		ContentType: "text/plain; charset=utf-8",
		Data:        []byte(text),
	}, nil
}

// List implements History.List.
func (s *Service) List(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	return entriesToList(s.cmds.Snapshot())
}

// GetDraft implements History.GetDraft.
func (s *Service) GetDraft(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.cmds.Draft()), nil
}

// SetDraft implements History.SetDraft.
func (s *Service) SetDraft(_ context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	s.cmds.SetDraft(in.GetValue())
	return &emptypb.Empty{}, nil
}

// CommitDraft implements History.CommitDraft.
func (s *Service) CommitDraft(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	return wrapperspb.UInt64(uint64(s.cmds.CommitDraft())), nil
}

// Status implements History.Status.
func (s *Service) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	st := s.cmds.Status()
	return structpb.NewStruct(map[string]any{
		"version":       s.version,
		"backend":       st.Backend,
		"auto_capture":  st.AutoCapture,
		"snippets":      st.Snippets,
		"interval":      st.Interval.String(),
		"has_last_seen": st.HasLastSeen,
		"watchers":      st.Watchers,
		"started_at":    st.StartedAt.UTC().Format(time.RFC3339),
	})
}

// Watch implements History.Watch: it streams change events until the client
// goes away.
func (s *Service) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ctx := stream.Context()
	p := hub.NewChanPeer(watcherID(ctx), 64)
	cancel := s.cmds.Watch(p)
	defer cancel()

	slog.Debug("watch started", "peer", p.ID())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-p.C():
			msg, err := eventToStruct(ev)
			if err != nil {
				return status.Errorf(codes.Internal, "encode event: %v", err)
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}
