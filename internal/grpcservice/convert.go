package grpcservice

import (
	"context"
	"fmt"
	"sync/atomic"

	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/types/known/structpb"

	"go.klb.dev/pastabox/internal/history"
	"go.klb.dev/pastabox/internal/hub"
)

// Handles travel as decimal strings inside Struct values: Struct numbers are
// doubles and would lose precision past 2^53.

func entriesToList(entries []history.Entry) (*structpb.ListValue, error) {
	lv := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(entries))}
	for _, e := range entries {
		st, err := structpb.NewStruct(map[string]any{
			"handle": e.Handle.String(),
			"text":   e.Text,
		})
		if err != nil {
			return nil, err
		}
		lv.Values = append(lv.Values, structpb.NewStructValue(st))
	}
	return lv, nil
}

func listToEntries(lv *structpb.ListValue) ([]history.Entry, error) {
	out := make([]history.Entry, 0, len(lv.GetValues()))
	for i, v := range lv.GetValues() {
		fields := v.GetStructValue().GetFields()
		h, err := history.ParseHandle(fields["handle"].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("entry %d: bad handle: %w", i, err)
		}
		out = append(out, history.Entry{Handle: h, Text: fields["text"].GetStringValue()})
	}
	return out, nil
}

// Event is a change notification as seen by a Watch client.
type Event struct {
	Kind        hub.Kind
	Handle      history.Handle
	Text        string
	Origin      string
	AutoCapture bool
}

func eventToStruct(ev hub.Event) (*structpb.Struct, error) {
	m := map[string]any{"kind": string(ev.Kind)}
	switch ev.Kind {
	case hub.KindAdded:
		m["handle"] = ev.Handle.String()
		m["text"] = ev.Text
		m["origin"] = ev.Origin
	case hub.KindRemoved:
		m["handle"] = ev.Handle.String()
	case hub.KindAutoCapture:
		m["auto_capture"] = ev.AutoCapture
	case hub.KindDraft:
		m["text"] = ev.Text
	}
	return structpb.NewStruct(m)
}

func structToEvent(st *structpb.Struct) Event {
	f := st.GetFields()
	ev := Event{
		Kind:        hub.Kind(f["kind"].GetStringValue()),
		Text:        f["text"].GetStringValue(),
		Origin:      f["origin"].GetStringValue(),
		AutoCapture: f["auto_capture"].GetBoolValue(),
	}
	if s := f["handle"].GetStringValue(); s != "" {
		if h, err := history.ParseHandle(s); err == nil {
			ev.Handle = h
		}
	}
	return ev
}

var watchSeq atomic.Uint64

// watcherID names a Watch stream for the hub and for logs.
func watcherID(ctx context.Context) string {
	n := watchSeq.Add(1)
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil && p.Addr.String() != "" {
		return fmt.Sprintf("watch/%d@%s", n, p.Addr)
	}
	return fmt.Sprintf("watch/%d", n)
}
