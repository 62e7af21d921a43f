package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/singleflight"

	"review-reply-automation/internal/config"
	"review-reply-automation/internal/filter"
)

// TransportFactory opens the transport for one registered server.
type TransportFactory func(ctx context.Context, info ServerInfo, timeout time.Duration) (mcp.Transport, error)

// ServerInfo describes one storefront automation server. Each store session
// registers its own server so every store gets its own browser session.
type ServerInfo struct {
	Endpoint   string
	Store      string
	Token      string
	AuthHeader string
}

// server is the connection state of one registered automation server.
type server struct {
	info      ServerInfo
	transport mcp.Transport
	session   *mcp.ClientSession
	stale     bool // reconnect on next use
	breaker   breaker
	filter    filter.ResponseFilter
}

// MCPClient manages connections to storefront automation MCP servers.
type MCPClient struct {
	cfg     config.StorefrontConfig
	mu      sync.RWMutex
	servers map[string]*server

	transportFactory TransportFactory
	connects         singleflight.Group // coalesces concurrent reconnects per server
	baseCtx          context.Context    // lifetime of every transport
	cancel           context.CancelFunc
}

// NewMCPClient creates a client with no servers registered.
func NewMCPClient(cfg config.StorefrontConfig) *MCPClient {
	if cfg.CircuitBreaker.FailureThreshold <= 0 {
		cfg.CircuitBreaker.FailureThreshold = 3
	}
	if cfg.CircuitBreaker.OpenDuration <= 0 {
		cfg.CircuitBreaker.OpenDuration = time.Minute
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MCPClient{
		cfg:              cfg,
		servers:          make(map[string]*server),
		transportFactory: NewMCPTransport,
		baseCtx:          ctx,
		cancel:           cancel,
	}
}

// SetTransportFactory replaces the transport factory. Used by tests.
func (c *MCPClient) SetTransportFactory(tf TransportFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transportFactory = tf
}

// SetResponseFilter installs the payload filter for a registered server.
func (c *MCPClient) SetResponseFilter(name string, f filter.ResponseFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.servers[name]; ok {
		s.filter = f
	}
}

// AddServer registers a server. The connection is opened lazily on first use.
func (c *MCPClient) AddServer(name string, info ServerInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.servers[name]; ok {
		old.close()
	}
	c.servers[name] = &server{info: info, stale: true}
}

// Connect opens the session of a registered server now instead of on first use.
func (c *MCPClient) Connect(name string) error {
	if _, err := c.session(name); err != nil {
		slog.Error("connect storefront failed", "server", name, "error", err)
		return err
	}
	return nil
}

// Close releases every session and transport.
func (c *MCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancel()
	var errs []error
	for name, s := range c.servers {
		if err := s.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *server) close() error {
	var err error
	if s.session != nil {
		err = s.session.Close()
	}
	if closer, ok := s.transport.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	s.session = nil
	s.transport = nil
	s.stale = true
	return err
}

// connect opens a fresh session for name, replacing any previous one.
func (c *MCPClient) connect(name string) (*mcp.ClientSession, error) {
	c.mu.Lock()
	s, ok := c.servers[name]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("storefront server not configured: %s", name)
	}
	s.close()
	info := s.info
	factory := c.transportFactory
	c.mu.Unlock()

	logger := slog.With("server", name)
	logger.Info("connecting storefront")

	transport, err := factory(c.baseCtx, info, c.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("create transport %s: %w", name, err)
	}

	session, err := mcp.NewClient(&mcp.Implementation{Name: "review-replier", Version: "1.0.0"}, nil).
		Connect(c.baseCtx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp connect %s: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.servers[name]; ok && cur == s {
		s.transport = transport
		s.session = session
		s.stale = false
		s.breaker.reset()
	}
	logger.Info("storefront connected")
	return session, nil
}
