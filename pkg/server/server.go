// Package server exposes the Naver Maps tools as an MCP server over
// stdio and Streamable HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/navermapmcp/pkg/tools"
	"github.com/NERVsystems/navermapmcp/pkg/version"
)

// ServerName is the name of the MCP server
const ServerName = "naver-maps-mcp"

// ErrAlreadyRunning is returned when RunWithContext is called more than once.
var ErrAlreadyRunning = errors.New("server has already been started")

// Server wraps the MCP server and its stdio transport.
type Server struct {
	srv    *mcpserver.MCPServer
	logger *slog.Logger

	stdin         io.Reader
	stdout        io.Writer
	parentCheck   time.Duration
	parentProcess func() int

	mu      sync.Mutex
	started bool
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithStdio replaces os.Stdin and os.Stdout.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.stdin = in
		s.stdout = out
	}
}

// WithParentMonitor stops the stdio server once the parent process
// exits, checking every interval. Zero disables the check.
func WithParentMonitor(interval time.Duration) Option {
	return func(s *Server) {
		s.parentCheck = interval
	}
}

// NewServer creates an MCP server with every tool in registry and the
// usage prompt registered.
func NewServer(registry *tools.Registry, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing Naver Maps MCP server",
		"name", ServerName,
		"version", version.BuildVersion)

	srv := mcpserver.NewMCPServer(
		ServerName,
		version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)

	registry.RegisterTools(srv)
	srv.AddPrompt(mcp.NewPrompt(UsagePromptName,
		mcp.WithPromptDescription("How to call the Naver Maps tools"),
	), handleUsagePrompt)

	s := &Server{
		srv:           srv,
		logger:        logger,
		stdin:         os.Stdin,
		stdout:        os.Stdout,
		parentProcess: os.Getppid,
		doneCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunWithContext serves MCP over stdio until ctx is canceled, Shutdown
// is called or the client closes stdin.
func (s *Server) RunWithContext(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.started = true
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel()
		s.mu.Unlock()
		close(s.doneCh)
	}()

	if s.parentCheck > 0 {
		go s.monitorParent(ctx, s.parentProcess())
	}

	stdio := mcpserver.NewStdioServer(s.srv)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	s.logger.Info("serving MCP over stdio")
	err := stdio.Listen(ctx, s.stdin, s.stdout)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		s.logger.Info("stdio transport stopped")
		return nil
	}
	return err
}

// Shutdown stops a running server. It does not block.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.cancel != nil {
		s.cancel()
	}
}

// WaitForShutdown blocks until RunWithContext has returned.
func (s *Server) WaitForShutdown() {
	<-s.doneCh
}

// GetMCPServer returns the underlying MCP server instance for HTTP transport
func (s *Server) GetMCPServer() *mcpserver.MCPServer {
	return s.srv
}

// monitorParent shuts the server down when the process that launched it
// goes away, so an orphaned stdio server does not linger.
func (s *Server) monitorParent(ctx context.Context, ppid int) {
	if ppid <= 1 {
		return
	}
	ticker := time.NewTicker(s.parentCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.parentProcess() != ppid || !isProcessRunning(ppid) {
				s.logger.Info("parent process exited, shutting down", "ppid", ppid)
				s.Shutdown()
				return
			}
		}
	}
}
