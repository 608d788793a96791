package remote

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/time/rate"

	"tasksync/internal/config"
	"tasksync/pkg/logging"
)

const (
	// ReadyTimeout bounds the post-handshake listTools readiness poll.
	ReadyTimeout = 5 * time.Second
	// readyPollInterval is how often the readiness poll retries listTools.
	readyPollInterval = 250 * time.Millisecond
	// DefaultDockerImage is the containerized fallback transport.
	DefaultDockerImage = "ghcr.io/sooperset/mcp-atlassian:latest"
	// defaultBurst is the rate limiter burst size for tool calls.
	defaultBurst = 10
)

// Options configures the remote adapter.
type Options struct {
	// Command is the external MCP server command with arguments. Empty
	// means go straight to the containerized transport.
	Command []string
	// FallbackToDocker enables the containerized transport when the
	// external command fails to connect.
	FallbackToDocker bool
	// DockerImage overrides the fallback image.
	DockerImage string
	// Credentials is the validated credential tuple passed to the child
	// process environment.
	Credentials config.Credentials
	// RateLimitPerSecond throttles tool calls. Zero uses the default.
	RateLimitPerSecond float64
	// Silent suppresses informational logs and spawn-argument echoes, for
	// retry loops like the configuration wizard's connectivity test. The
	// final failure still surfaces.
	Silent bool
}

// Adapter maintains a single long-lived MCP server subprocess speaking the
// tool protocol over stdio. One adapter instance owns one subprocess. Tool
// calls are serialized internally because the transport is a single stdio
// channel; concurrent callers queue.
type Adapter struct {
	opts    Options
	limiter *rate.Limiter

	mu        sync.Mutex
	client    client.MCPClient
	connected bool
}

// New creates an adapter. Call Connect before invoking tools.
func New(opts Options) *Adapter {
	rps := opts.RateLimitPerSecond
	if rps <= 0 {
		rps = config.DefaultRateLimitPerSecond
	}
	return &Adapter{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(rps), defaultBurst),
	}
}

// Connect validates credentials, spawns the server subprocess, performs the
// protocol handshake, then polls listTools until it answers or the
// readiness timeout expires. Only then is the adapter ready.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		return nil
	}

	if err := a.opts.Credentials.Validate(); err != nil {
		return &Error{Kind: KindNotReady, Message: err.Error(), Err: err}
	}

	command := a.opts.Command
	if len(command) > 0 {
		if err := a.spawnAndHandshake(ctx, command[0], command[1:], a.opts.Credentials.Env()); err != nil {
			if !a.opts.FallbackToDocker {
				return err
			}
			if !a.opts.Silent {
				logging.Warn("RemoteAdapter", "External MCP server failed to connect, falling back to docker: %v", err)
			}
		} else {
			return a.awaitReady(ctx)
		}
	}

	image := a.opts.DockerImage
	if image == "" {
		image = DefaultDockerImage
	}
	args := []string{"run", "--rm", "-i"}
	env := a.opts.Credentials.Env()
	for k := range env {
		args = append(args, "-e", k)
	}
	args = append(args, image)
	if err := a.spawnAndHandshake(ctx, "docker", args, env); err != nil {
		return err
	}
	return a.awaitReady(ctx)
}

// spawnAndHandshake starts the subprocess and runs the MCP initialize
// exchange. Caller holds the lock.
func (a *Adapter) spawnAndHandshake(ctx context.Context, command string, args []string, env map[string]string) error {
	envStrings := make([]string, 0, len(env))
	for k, v := range env {
		envStrings = append(envStrings, fmt.Sprintf("%s=%s", k, v))
	}
	envStrings = append(envStrings, forwardedEnv()...)

	if !a.opts.Silent {
		logging.Debug("RemoteAdapter", "Spawning MCP server: %s %v", command, args)
	}

	mcpClient, err := client.NewStdioMCPClient(command, envStrings, args...)
	if err != nil {
		return &Error{Kind: KindTransport, Message: "failed to spawn MCP server", Err: err}
	}

	initCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, ReadyTimeout)
		defer cancel()
	}

	_, err = mcpClient.Initialize(initCtx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo: mcp.Implementation{
				Name:    "tasksync",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		if closeErr := mcpClient.Close(); closeErr != nil && !a.opts.Silent {
			logging.Debug("RemoteAdapter", "Error closing failed client: %v", closeErr)
		}
		return &Error{Kind: KindTransport, Message: "MCP protocol handshake failed", Err: err}
	}

	a.client = mcpClient
	return nil
}

// awaitReady polls listTools until the server answers. Caller holds the
// lock; a.client is set.
func (a *Adapter) awaitReady(ctx context.Context) error {
	deadline := time.Now().Add(ReadyTimeout)
	var lastErr error
	for time.Now().Before(deadline) {
		listCtx, cancel := context.WithTimeout(ctx, readyPollInterval*4)
		_, err := a.client.ListTools(listCtx, mcp.ListToolsRequest{})
		cancel()
		if err == nil {
			a.connected = true
			if !a.opts.Silent {
				logging.Debug("RemoteAdapter", "MCP server ready")
			}
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			a.teardownLocked()
			return &Error{Kind: KindNotReady, Message: "connect cancelled", Err: ctx.Err()}
		case <-time.After(readyPollInterval):
		}
	}
	a.teardownLocked()
	return &Error{Kind: KindNotReady, Message: "MCP server did not become ready within timeout", Err: lastErr}
}

// Close signals shutdown and terminates the child. Safe to call twice.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.teardownLocked()
}

func (a *Adapter) teardownLocked() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	a.connected = false
	return err
}

// CallTool invokes a named tool and returns the text payload of its first
// content entry. Responses whose body declares a tool failure are raised
// as classified adapter errors with the original text preserved.
func (a *Adapter) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", &Error{Kind: KindTransport, Tool: name, Message: "rate limiter wait aborted", Err: err}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected || a.client == nil {
		return "", &Error{Kind: KindNotReady, Tool: name, Message: "adapter not connected"}
	}

	result, err := a.client.CallTool(ctx, mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", &Error{Kind: KindTransport, Tool: name, Message: "tool call failed", Err: err}
	}

	text, err := extractText(result)
	if err != nil {
		return "", &Error{Kind: KindProtocol, Tool: name, Message: err.Error()}
	}
	if result.IsError || isToolErrorText(text) {
		return "", &Error{Kind: classifyToolError(text), Tool: name, Message: strings.TrimSpace(text)}
	}
	return text, nil
}

// extractText validates the response envelope: an object with a content
// array whose first entry is text.
func extractText(result *mcp.CallToolResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("nil tool result")
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("tool result has no content")
	}
	if text, ok := mcp.AsTextContent(result.Content[0]); ok {
		return text.Text, nil
	}
	return "", fmt.Errorf("tool result content is not text")
}

// forwardedEnv passes DNS and proxy configuration through to the child.
func forwardedEnv() []string {
	var out []string
	for _, key := range []string{
		"HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY",
		"http_proxy", "https_proxy", "no_proxy",
		"GODEBUG", "RES_OPTIONS",
	} {
		if v, ok := os.LookupEnv(key); ok {
			out = append(out, key+"="+v)
		}
	}
	return out
}
