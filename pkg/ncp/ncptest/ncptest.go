// Package ncptest provides a stand-in for the Naver Maps API gateway for
// use in tests.
package ncptest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/NERVsystems/navermapmcp/pkg/ncp"
)

// Server is an httptest server answering Maps API paths. Each path maps
// to a handler; requests are recorded per path. Unknown paths get 404.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	calls    map[string][]*http.Request
}

// NewServer starts a stub gateway that is closed with the test.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		handlers: make(map[string]http.HandlerFunc),
		calls:    make(map[string][]*http.Request),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle installs a handler for path.
func (s *Server) Handle(path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
}

// JSON answers path with a fixed JSON body.
func (s *Server) JSON(path, body string) {
	s.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

// Status answers path with an empty response of the given status.
func (s *Server) Status(path string, code int) {
	s.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

// Calls returns the requests received on path.
func (s *Server) Calls(path string) []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.calls[path]...)
}

// NCPClient returns a provider client talking to the stub with a fixed
// test key pair.
func (s *Server) NCPClient(opts ...ncp.Option) *ncp.Client {
	opts = append([]ncp.Option{
		ncp.WithBaseURL(s.URL),
		ncp.WithHTTPClient(s.Client()),
	}, opts...)
	return ncp.NewClient(ncp.Credentials{KeyID: "test-id", Key: "test-secret"}, opts...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls[r.URL.Path] = append(s.calls[r.URL.Path], r.Clone(r.Context()))
	h, ok := s.handlers[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "no stub for "+r.URL.Path, http.StatusNotFound)
		return
	}
	h(w, r)
}
