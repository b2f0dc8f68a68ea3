package sidecar

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"intermap/internal/slogutil"
)

func newTestServer() *Server {
	s := NewServer(slogutil.NewDiscardLogger())
	s.Register("echo", func(ctx context.Context, project string, args json.RawMessage) (any, error) {
		return map[string]string{"project": project}, nil
	})
	s.Register("fail", func(ctx context.Context, project string, args json.RawMessage) (any, error) {
		return nil, &Error{Type: "FileNotFoundError", Message: "no such file"}
	})
	s.Register("boom", func(ctx context.Context, project string, args json.RawMessage) (any, error) {
		return nil, errors.New("plain failure")
	})
	return s
}

func runServer(t *testing.T, s *Server, input string) []map[string]any {
	t.Helper()
	var out bytes.Buffer
	if err := s.Run(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var lines []map[string]any
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var decoded map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("bad output line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, decoded)
	}
	return lines
}

func TestRunEmitsReadySignal(t *testing.T) {
	lines := runServer(t, newTestServer(), "")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want just the ready signal", len(lines))
	}
	if lines[0]["status"] != "ready" {
		t.Errorf("missing ready status: %v", lines[0])
	}
	if session, ok := lines[0]["session"].(string); !ok || session == "" {
		t.Errorf("missing session id: %v", lines[0])
	}
}

func TestRunDispatchesRequests(t *testing.T) {
	input := `{"id":1,"command":"echo","project":"/proj"}
{"id":2,"command":"echo","project":"/other"}
`
	lines := runServer(t, newTestServer(), input)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want ready + 2 responses", len(lines))
	}

	first := lines[1]
	if first["id"] != float64(1) {
		t.Errorf("id = %v, want 1", first["id"])
	}
	result, ok := first["result"].(map[string]any)
	if !ok || result["project"] != "/proj" {
		t.Errorf("unexpected result: %v", first)
	}
	if lines[2]["id"] != float64(2) {
		t.Errorf("second id = %v, want 2", lines[2]["id"])
	}
}

func TestRunUnknownCommandIsAResult(t *testing.T) {
	lines := runServer(t, newTestServer(), `{"id":1,"command":"nonexistent","project":"/p"}`+"\n")
	resp := lines[1]
	if _, hasErr := resp["error"]; hasErr {
		t.Errorf("unknown command must be reported inside result: %v", resp)
	}
	result := resp["result"].(map[string]any)
	if result["error"] != "UnknownCommand" {
		t.Errorf("result = %v", result)
	}
}

func TestRunInvalidJSONKeepsServing(t *testing.T) {
	input := "not valid json\n" + `{"id":2,"command":"echo","project":"/p"}` + "\n"
	lines := runServer(t, newTestServer(), input)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want ready + error + response", len(lines))
	}

	bad := lines[1]
	if bad["id"] != nil {
		t.Errorf("parse failures carry a null id: %v", bad)
	}
	errInfo := bad["error"].(map[string]any)
	if errInfo["type"] != "InvalidJSON" {
		t.Errorf("error = %v", errInfo)
	}
	if lines[2]["id"] != float64(2) {
		t.Errorf("server stopped after bad input: %v", lines[2])
	}
}

func TestRunHandlerErrors(t *testing.T) {
	input := `{"id":1,"command":"fail","project":"/p"}
{"id":2,"command":"boom","project":"/p"}
`
	lines := runServer(t, newTestServer(), input)

	typedErr := lines[1]["error"].(map[string]any)
	if typedErr["type"] != "FileNotFoundError" || typedErr["message"] != "no such file" {
		t.Errorf("typed error = %v", typedErr)
	}
	plainErr := lines[2]["error"].(map[string]any)
	if plainErr["type"] != "CommandError" {
		t.Errorf("plain error = %v", plainErr)
	}
}

func TestRunSkipsBlankLines(t *testing.T) {
	input := "\n\n" + `{"id":1,"command":"echo","project":"/p"}` + "\n\n"
	lines := runServer(t, newTestServer(), input)
	if len(lines) != 2 {
		t.Errorf("blank lines must not produce responses: %d lines", len(lines))
	}
}

func TestRunCleanEOF(t *testing.T) {
	var out bytes.Buffer
	err := newTestServer().Run(context.Background(), iotestEmpty{}, &out)
	if err != nil {
		t.Errorf("EOF should be a clean exit, got %v", err)
	}
}

type iotestEmpty struct{}

func (iotestEmpty) Read([]byte) (int, error) { return 0, io.EOF }
