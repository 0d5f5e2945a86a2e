// Package mcp serves the todo list to tool-using clients as a
// Model Context Protocol server over a reader/writer pair (normally stdin
// and stdout).
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Makepad-fr/tada/internal/todolist"
)

// Key is the store key the tools operate on.
const Key = todolist.Key

const instructions = "This server allows you to manage todos with persistent storage. " +
	"You can retrieve the current list of todos using `get_todos`, add a new todo with `add_todo`, " +
	"remove a specific todo by its ID using `remove_todo`, and update an existing todo with `update_todo`."

// Store is what the tools need from the backing store.
// *jsonstore.Store satisfies it.
type Store interface {
	Get(key string) (json.RawMessage, bool)
	Set(key string, value any) error
	Reload() error
	Save() error
}

// Options configure a Server.
type Options struct {
	Name    string
	Version string
	Clock   func() time.Time
	Logger  *log.Logger
}

// Server exposes the todo tools. Tool calls run one at a time.
type Server struct {
	name   string
	logger *log.Logger
	mcp    *server.MCPServer
	h      *handler

	mu sync.Mutex // serializes tool calls
}

// New returns a server operating on s.
func New(s Store, opts Options) *Server {
	srv := &Server{
		name:   opts.Name,
		logger: opts.Logger,
		h:      &handler{store: s, now: opts.Clock},
	}
	if srv.name == "" {
		srv.name = "todo"
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	if srv.h.now == nil {
		srv.h.now = time.Now
	}
	if srv.logger == nil {
		srv.logger = log.New(io.Discard)
	}
	srv.logger = srv.logger.WithPrefix("mcp")

	srv.mcp = server.NewMCPServer(srv.name, version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithInstructions(instructions),
		server.WithRecovery(),
	)
	for _, t := range tools {
		srv.mcp.AddTool(mcpgo.NewToolWithRawSchema(t.Name, t.Description, t.InputSchema), srv.toolHandler(t))
	}
	return srv
}

// Serve reads requests from r, one JSON-RPC message per line, and writes
// responses to w until r is exhausted or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(s.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel}))

	s.logger.Debug("serving", "name", s.name)
	err := stdio.Listen(ctx, r, w)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}
	return err
}

// toolHandler validates the arguments of a call to t and runs it. Bad
// arguments and store failures come back as error results.
func (s *Server) toolHandler(t Tool) server.ToolHandlerFunc {
	return func(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		args, err := rawArguments(req.Params.Arguments)
		if err != nil {
			return mcpgo.NewToolResultError(fmt.Sprintf("%s: %v", t.Name, err)), nil
		}
		if err := t.validate(args); err != nil {
			s.logger.Debug("invalid arguments", "tool", t.Name, "err", err)
			return mcpgo.NewToolResultError(fmt.Sprintf("%s: invalid arguments: %v", t.Name, err)), nil
		}

		s.mu.Lock()
		text, err := t.call(s.h, args)
		s.mu.Unlock()
		if err != nil {
			s.logger.Warn("tool failed", "tool", t.Name, "err", err)
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		s.logger.Debug("tool called", "tool", t.Name)
		return mcpgo.NewToolResultText(text), nil
	}
}

// rawArguments re-encodes the decoded call arguments. Missing arguments
// read as an empty object.
func rawArguments(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage(`{}`), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return json.RawMessage(`{}`), nil
	}
	return b, nil
}

func decodeNumbers(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
