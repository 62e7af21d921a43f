package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Environment handed to stdio automation servers.
const (
	envStoreToken = "STOREFRONT_TOKEN"
	envStoreCode  = "STOREFRONT_STORE"
)

// storeHeaders stamps the store credentials onto every automation request.
type storeHeaders struct {
	base       http.RoundTripper
	store      string
	token      string
	authHeader string
}

func (t *storeHeaders) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.token != "" {
		if t.authHeader != "" {
			req.Header.Set(t.authHeader, t.token)
		} else {
			req.Header.Set("Authorization", "Bearer "+t.token)
		}
	}
	if t.store != "" {
		req.Header.Set("X-Store-Code", t.store)
	}
	return t.base.RoundTrip(req)
}

// NewMCPTransport opens the transport for one store's automation server.
// stdio:// endpoints launch a local process; http(s):// endpoints use the
// SSE transport when the path ends in /sse and streamable HTTP otherwise.
func NewMCPTransport(ctx context.Context, info ServerInfo, timeout time.Duration) (mcp.Transport, error) {
	if cmdLine, ok := strings.CutPrefix(info.Endpoint, "stdio://"); ok {
		args := commandLine(cmdLine)
		if len(args) == 0 {
			return nil, fmt.Errorf("invalid stdio endpoint: %s", info.Endpoint)
		}
		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		cmd.Env = cmd.Environ()
		if info.Token != "" {
			cmd.Env = append(cmd.Env, envStoreToken+"="+info.Token)
		}
		if info.Store != "" {
			cmd.Env = append(cmd.Env, envStoreCode+"="+info.Store)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	}

	u, err := url.Parse(info.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %s: %w", info.Endpoint, err)
	}
	switch u.Scheme {
	case "http", "https":
		hc := storeHTTPClient(info, timeout)
		if strings.HasSuffix(strings.TrimRight(u.Path, "/"), "/sse") {
			return &mcp.SSEClientTransport{Endpoint: info.Endpoint, HTTPClient: hc}, nil
		}
		return &mcp.StreamableClientTransport{Endpoint: info.Endpoint, HTTPClient: hc}, nil
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme: %s", info.Endpoint)
	}
}

// storeHTTPClient bounds only the wait for response headers; event streams
// stay open for the life of the session.
func storeHTTPClient(info ServerInfo, timeout time.Duration) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		base.ResponseHeaderTimeout = timeout
	}
	return &http.Client{Transport: &storeHeaders{
		base:       base,
		store:      info.Store,
		token:      info.Token,
		authHeader: info.AuthHeader,
	}}
}

// commandLine splits a command the way a POSIX shell would for the simple
// cases endpoints need: whitespace separation, single and double quotes and
// backslash escapes outside single quotes.
func commandLine(s string) []string {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped, inArg = true, true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote, inArg = r, true
		case unicode.IsSpace(r):
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args
}
