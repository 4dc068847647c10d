package grpcservice

import (
	"io"
	"net/http"
	"strings"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"go.klb.dev/pastabox/internal/history"
)

// maxBodySize caps HTTP request bodies; snippets are plain text.
const maxBodySize = 4 << 20

type gateway struct {
	svc *Service
	mux *gwruntime.ServeMux
}

// NewGateway returns an HTTP/JSON mux over svc:
//
//	GET    /v1/snippets                  list (JSON array of {handle, text})
//	POST   /v1/snippets                  add (body: JSON string, or text/plain)
//	DELETE /v1/snippets                  clear
//	GET    /v1/snippets/{handle}         snippet text as text/plain
//	DELETE /v1/snippets/{handle}         remove
//	POST   /v1/snippets/{handle}/copy    copy to clipboard
//	GET    /v1/draft                     draft text
//	PUT    /v1/draft                     set draft
//	POST   /v1/draft/commit              add draft to history
//	GET    /v1/status                    status
//	POST   /v1/autocapture/toggle        toggle auto-capture
func NewGateway(svc *Service) (*gwruntime.ServeMux, error) {
	g := &gateway{svc: svc, mux: gwruntime.NewServeMux()}
	routes := []struct {
		method, pattern string
		h               gwruntime.HandlerFunc
	}{
		{http.MethodGet, "/v1/snippets", g.list},
		{http.MethodPost, "/v1/snippets", g.add},
		{http.MethodDelete, "/v1/snippets", g.clear},
		{http.MethodGet, "/v1/snippets/{handle}", g.get},
		{http.MethodDelete, "/v1/snippets/{handle}", g.remove},
		{http.MethodPost, "/v1/snippets/{handle}/copy", g.copyOut},
		{http.MethodGet, "/v1/draft", g.getDraft},
		{http.MethodPut, "/v1/draft", g.setDraft},
		{http.MethodPost, "/v1/draft/commit", g.commitDraft},
		{http.MethodGet, "/v1/status", g.status},
		{http.MethodPost, "/v1/autocapture/toggle", g.toggle},
	}
	for _, r := range routes {
		if err := g.mux.HandlePath(r.method, r.pattern, r.h); err != nil {
			return nil, err
		}
	}
	return g.mux, nil
}

// respond writes resp, or err mapped from its gRPC status to an HTTP status.
func (g *gateway) respond(w http.ResponseWriter, r *http.Request, resp proto.Message, err error) {
	ctx := gwruntime.NewServerMetadataContext(r.Context(), gwruntime.ServerMetadata{})
	_, outbound := gwruntime.MarshalerForRequest(g.mux, r)
	if err != nil {
		gwruntime.HTTPError(ctx, g.mux, outbound, w, r, err)
		return
	}
	gwruntime.ForwardResponseMessage(ctx, g.mux, outbound, w, r, resp)
}

func handleParam(params map[string]string) (*wrapperspb.UInt64Value, error) {
	h, err := history.ParseHandle(params["handle"])
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad handle %q", params["handle"])
	}
	return wrapperspb.UInt64(uint64(h)), nil
}

// readText accepts either a raw text/plain body or a JSON string.
func (g *gateway) readText(w http.ResponseWriter, r *http.Request) (*wrapperspb.StringValue, error) {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
		b, err := io.ReadAll(body)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "read body: %v", err)
		}
		return wrapperspb.String(string(b)), nil
	}
	inbound, _ := gwruntime.MarshalerForRequest(g.mux, r)
	in := &wrapperspb.StringValue{}
	if err := inbound.NewDecoder(body).Decode(in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode body: %v", err)
	}
	return in, nil
}

func (g *gateway) list(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.svc.List(r.Context(), &emptypb.Empty{})
	g.respond(w, r, resp, err)
}

func (g *gateway) add(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	in, err := g.readText(w, r)
	if err != nil {
		g.respond(w, r, nil, err)
		return
	}
	resp, err := g.svc.Add(r.Context(), in)
	g.respond(w, r, resp, err)
}

func (g *gateway) clear(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.svc.Clear(r.Context(), &emptypb.Empty{})
	g.respond(w, r, resp, err)
}

func (g *gateway) get(w http.ResponseWriter, r *http.Request, params map[string]string) {
	in, err := handleParam(params)
	if err != nil {
		g.respond(w, r, nil, err)
		return
	}
	resp, err := g.svc.Get(r.Context(), in)
	g.respond(w, r, resp, err)
}

func (g *gateway) remove(w http.ResponseWriter, r *http.Request, params map[string]string) {
	in, err := handleParam(params)
	if err != nil {
		g.respond(w, r, nil, err)
		return
	}
	resp, err := g.svc.Remove(r.Context(), in)
	g.respond(w, r, resp, err)
}

func (g *gateway) copyOut(w http.ResponseWriter, r *http.Request, params map[string]string) {
	in, err := handleParam(params)
	if err != nil {
		g.respond(w, r, nil, err)
		return
	}
	resp, err := g.svc.CopyOut(r.Context(), in)
	g.respond(w, r, resp, err)
}

func (g *gateway) getDraft(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.svc.GetDraft(r.Context(), &emptypb.Empty{})
	g.respond(w, r, resp, err)
}

func (g *gateway) setDraft(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	in, err := g.readText(w, r)
	if err != nil {
		g.respond(w, r, nil, err)
		return
	}
	resp, err := g.svc.SetDraft(r.Context(), in)
	g.respond(w, r, resp, err)
}

func (g *gateway) commitDraft(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.svc.CommitDraft(r.Context(), &emptypb.Empty{})
	g.respond(w, r, resp, err)
}

func (g *gateway) status(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.svc.Status(r.Context(), &emptypb.Empty{})
	g.respond(w, r, resp, err)
}

func (g *gateway) toggle(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := g.svc.Toggle(r.Context(), &emptypb.Empty{})
	g.respond(w, r, resp, err)
}
