package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const maxBodyBytes = 8 << 20

type route struct {
	method, path string
	h            gwruntime.HandlerFunc
}

// NewGateway returns an HTTP/JSON mux over svc. metrics, when non-nil, is
// mounted at GET /metrics without authentication.
func NewGateway(svc HistoryServer, metrics http.Handler) (*gwruntime.ServeMux, error) {
	mux := gwruntime.NewServeMux()
	routes := []route{
		{http.MethodGet, "/v1/entries", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			q := r.URL.Query()
			resp, err := svc.List(gatewayContext(r), &ListRequest{Day: q.Get("day"), Limit: atoi(q.Get("limit"))})
			respond(w, resp, err)
		}},
		{http.MethodPost, "/v1/clipboard", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			req := new(CopyRequest)
			if !decode(w, r, req) {
				return
			}
			resp, err := svc.Copy(gatewayContext(r), req)
			respond(w, resp, err)
		}},
		{http.MethodPost, "/v1/entries/{id}/copy", func(w http.ResponseWriter, r *http.Request, p map[string]string) {
			req := new(RecopyRequest)
			if r.ContentLength != 0 && !decode(w, r, req) {
				return
			}
			req.ID = p["id"]
			resp, err := svc.Recopy(gatewayContext(r), req)
			respond(w, resp, err)
		}},
		{http.MethodGet, "/v1/search", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			q := r.URL.Query()
			resp, err := svc.Search(gatewayContext(r), &SearchRequest{Query: q.Get("q"), Limit: atoi(q.Get("limit"))})
			respond(w, resp, err)
		}},
		{http.MethodGet, "/v1/days", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			resp, err := svc.Days(gatewayContext(r), &DaysRequest{})
			respond(w, resp, err)
		}},
		{http.MethodGet, "/v1/status", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			resp, err := svc.Status(gatewayContext(r), &StatusRequest{})
			respond(w, resp, err)
		}},
		{http.MethodPost, "/v1/activate", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			req := new(ActivateRequest)
			if r.ContentLength != 0 && !decode(w, r, req) {
				return
			}
			resp, err := svc.Activate(gatewayContext(r), req)
			respond(w, resp, err)
		}},
		{http.MethodPost, "/v1/prune", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			resp, err := svc.Prune(gatewayContext(r), &PruneRequest{})
			respond(w, resp, err)
		}},
	}
	if metrics != nil {
		routes = append(routes, route{http.MethodGet, "/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			metrics.ServeHTTP(w, r)
		}})
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, rt.h); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

// gatewayContext carries the HTTP auth and source headers into gRPC metadata
// so the service authenticates gateway calls like native ones.
func gatewayContext(r *http.Request) context.Context {
	md := metadata.MD{}
	if v := r.Header.Get("Authorization"); v != "" {
		md.Set("authorization", v)
	}
	if v := r.Header.Get("X-Clipstash-Source"); v != "" {
		md.Set(sourceHeader, v)
	} else {
		md.Set(sourceHeader, "http:"+r.RemoteAddr)
	}
	return metadata.NewIncomingContext(r.Context(), md)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err == nil {
		err = sonic.Unmarshal(body, v)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func respond(w http.ResponseWriter, resp any, err error) {
	if err != nil {
		st := status.Convert(err)
		writeJSON(w, gwruntime.HTTPStatusFromCode(st.Code()), map[string]string{
			"error": st.Message(),
			"code":  strings.ToLower(st.Code().String()),
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(b, '\n'))
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
