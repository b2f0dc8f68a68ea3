// Package sidecar runs a persistent request loop: JSON requests arrive one
// per line on stdin, responses leave one per line on stdout. A parent
// process keeps the sidecar alive to amortize startup cost across calls.
package sidecar

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Request is one line of input.
type Request struct {
	ID      any             `json:"id"`
	Command string          `json:"command"`
	Project string          `json:"project"`
	Args    json.RawMessage `json:"args"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Response is one line of output. ID echoes the request id and is null
// for input that could not be parsed.
type Response struct {
	ID     any        `json:"id"`
	Result any        `json:"result,omitempty"`
	Error  *ErrorInfo `json:"error,omitempty"`
}

type ready struct {
	Status  string `json:"status"`
	Session string `json:"session"`
}

// Handler executes one command against a project.
type Handler func(ctx context.Context, project string, args json.RawMessage) (any, error)

// Server dispatches sidecar requests to registered handlers.
type Server struct {
	handlers map[string]Handler
	session  string
	logger   *slog.Logger
}

// NewServer creates a Server with a fresh session id.
func NewServer(logger *slog.Logger) *Server {
	return &Server{
		handlers: map[string]Handler{},
		session:  uuid.NewString(),
		logger:   logger,
	}
}

// Session returns the server's session id.
func (s *Server) Session() string { return s.session }

// Register binds a command name to a handler.
func (s *Server) Register(command string, h Handler) {
	s.handlers[command] = h
}

// Run announces readiness, then serves requests until EOF or context
// cancellation. Malformed input produces an error response and the loop
// continues; EOF is a clean exit.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	out := bufio.NewWriter(w)
	if err := writeLine(out, ready{Status: "ready", Session: s.session}); err != nil {
		return err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			resp := Response{ID: nil, Error: &ErrorInfo{Type: "InvalidJSON", Message: err.Error()}}
			if err := writeLine(out, resp); err != nil {
				return err
			}
			continue
		}

		if err := writeLine(out, s.dispatch(ctx, req)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	handler, ok := s.handlers[req.Command]
	if !ok {
		// Unknown commands are reported inside the result payload so a
		// parent can distinguish them from transport failures.
		return Response{ID: req.ID, Result: map[string]string{
			"error":   "UnknownCommand",
			"message": fmt.Sprintf("Unknown command: %s", req.Command),
		}}
	}

	result, err := handler(ctx, req.Project, req.Args)
	if err != nil {
		s.logger.Debug("sidecar.command_error",
			"command", req.Command,
			"project", req.Project,
			"error_message", err.Error())
		return Response{ID: req.ID, Error: &ErrorInfo{Type: errorType(err), Message: err.Error()}}
	}
	return Response{ID: req.ID, Result: result}
}

// Error carries an explicit error type for the response payload.
type Error struct {
	Type    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func errorType(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}
	return "CommandError"
}

func writeLine(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return err
	}
	return w.Flush()
}
