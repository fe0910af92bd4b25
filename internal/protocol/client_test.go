package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	errs "codesweep/internal/errors"
)

// fakeServer scripts the other end of the session: it answers the
// handshake and hands every other request to onRequest.
type fakeServer struct {
	t      *testing.T
	reader *bufio.Reader
	out    io.Writer
	mu     sync.Mutex

	capabilities map[string]interface{}
	onRequest    func(s *fakeServer, msg *message)
	onDidOpen    func(s *fakeServer, uri string)
}

// start wires a client to the fake server over in-memory pipes and
// completes the handshake.
func (s *fakeServer) start(t *testing.T) *Client {
	t.Helper()
	s.t = t

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	s.reader = bufio.NewReader(stdinR)
	s.out = stdoutW

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient("python", "python", "/repo", stdinW, stdoutR, nil, logger)
	client.Run()
	go s.loop()
	t.Cleanup(client.Close)

	if err := client.Initialize(context.Background(), time.Second); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return client
}

func (s *fakeServer) loop() {
	for {
		msg, err := readFrame(s.reader)
		if err != nil {
			return
		}
		switch {
		case msg.Method == "initialize":
			s.respond(*msg.ID, map[string]interface{}{"capabilities": s.capabilities})
		case msg.Method == "textDocument/didOpen":
			if s.onDidOpen != nil {
				var p struct {
					TextDocument struct {
						URI string `json:"uri"`
					} `json:"textDocument"`
				}
				_ = json.Unmarshal(msg.Params, &p)
				s.onDidOpen(s, p.TextDocument.URI)
			}
		case msg.Method == "shutdown" && msg.ID != nil:
			s.respond(*msg.ID, nil)
		case msg.ID != nil && msg.Method != "":
			if s.onRequest != nil {
				s.onRequest(s, msg)
			}
		}
	}
}

func (s *fakeServer) send(msg *message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = writeFrame(s.out, msg)
}

func (s *fakeServer) respond(id int, result interface{}) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.t.Errorf("marshal result: %v", err)
		return
	}
	s.send(&message{JSONRPC: "2.0", ID: &id, Result: raw})
}

func (s *fakeServer) respondError(id, code int, text string) {
	s.send(&message{JSONRPC: "2.0", ID: &id, Error: &ResponseError{Code: code, Message: text}})
}

func (s *fakeServer) publish(uri string, diags []Diagnostic) {
	raw, _ := json.Marshal(map[string]interface{}{
		"uri":         uri,
		"diagnostics": diags,
	})
	s.send(&message{JSONRPC: "2.0", Method: "textDocument/publishDiagnostics", Params: raw})
}

func wireDiagnostic(line int, msg string, sev DiagnosticSeverity) Diagnostic {
	return Diagnostic{
		Range: Range{
			Start: Position{Line: line, Character: 0},
			End:   Position{Line: line, Character: 5},
		},
		Severity: sev,
		Message:  msg,
	}
}

func TestPullDiagnostics(t *testing.T) {
	srv := &fakeServer{
		capabilities: map[string]interface{}{
			"diagnosticProvider": map[string]interface{}{},
		},
		onRequest: func(s *fakeServer, msg *message) {
			if msg.Method != "textDocument/diagnostic" {
				s.t.Errorf("unexpected request %q", msg.Method)
				return
			}
			s.respond(*msg.ID, map[string]interface{}{
				"kind":  "full",
				"items": []Diagnostic{wireDiagnostic(4, "undefined name 'x'", SeverityError)},
			})
		},
	}
	client := srv.start(t)

	if err := client.NotifyOpen("/repo/app.py", "x"); err != nil {
		t.Fatalf("NotifyOpen: %v", err)
	}
	diags, err := client.RequestDiagnostics(context.Background(), "/repo/app.py", time.Second)
	if err != nil {
		t.Fatalf("RequestDiagnostics: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if diags[0].Line != 5 || diags[0].Severity != SeverityError {
		t.Errorf("diagnostic = %+v, want line 5 Error", diags[0])
	}
}

func TestPushDiagnosticsWhenNoProvider(t *testing.T) {
	srv := &fakeServer{
		capabilities: map[string]interface{}{},
		onDidOpen: func(s *fakeServer, uri string) {
			s.publish(uri, []Diagnostic{wireDiagnostic(0, "unused import", SeverityWarning)})
		},
	}
	client := srv.start(t)

	if err := client.NotifyOpen("/repo/app.py", "import os"); err != nil {
		t.Fatalf("NotifyOpen: %v", err)
	}
	diags, err := client.RequestDiagnostics(context.Background(), "/repo/app.py", time.Second)
	if err != nil {
		t.Fatalf("RequestDiagnostics: %v", err)
	}
	if len(diags) != 1 || diags[0].Message != "unused import" {
		t.Fatalf("diagnostics = %+v, want the pushed warning", diags)
	}
}

func TestPullFallsBackToPushOnMethodNotFound(t *testing.T) {
	srv := &fakeServer{
		capabilities: map[string]interface{}{
			"diagnosticProvider": map[string]interface{}{},
		},
	}
	srv.onRequest = func(s *fakeServer, msg *message) {
		s.respondError(*msg.ID, codeMethodNotFound, "method not supported")
		s.publish("file:///repo/app.py", []Diagnostic{wireDiagnostic(2, "late push", SeverityError)})
	}
	client := srv.start(t)

	if err := client.NotifyOpen("/repo/app.py", "x"); err != nil {
		t.Fatalf("NotifyOpen: %v", err)
	}
	diags, err := client.RequestDiagnostics(context.Background(), "/repo/app.py", time.Second)
	if err != nil {
		t.Fatalf("RequestDiagnostics: %v", err)
	}
	if len(diags) != 1 || diags[0].Message != "late push" {
		t.Fatalf("diagnostics = %+v, want the pushed diagnostic", diags)
	}
}

func TestRequestDiagnosticsTimeout(t *testing.T) {
	srv := &fakeServer{
		capabilities: map[string]interface{}{
			"diagnosticProvider": map[string]interface{}{},
		},
		onRequest: func(s *fakeServer, msg *message) {
			// Never answer
		},
	}
	client := srv.start(t)

	if err := client.NotifyOpen("/repo/app.py", "x"); err != nil {
		t.Fatalf("NotifyOpen: %v", err)
	}
	_, err := client.RequestDiagnostics(context.Background(), "/repo/app.py", 50*time.Millisecond)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !errs.IsCode(err, errs.Timeout) {
		t.Errorf("error = %v, want code TIMEOUT", err)
	}
}

func TestRequestSymbolsHierarchical(t *testing.T) {
	srv := &fakeServer{
		capabilities: map[string]interface{}{},
		onRequest: func(s *fakeServer, msg *message) {
			s.respond(*msg.ID, []DocumentSymbol{
				{
					Name: "Widget",
					Kind: KindClass,
					Range: Range{
						Start: Position{Line: 0},
						End:   Position{Line: 20},
					},
					Children: []DocumentSymbol{
						{
							Name: "render",
							Kind: KindMethod,
							Range: Range{
								Start: Position{Line: 2},
								End:   Position{Line: 8},
							},
						},
					},
				},
			})
		},
	}
	client := srv.start(t)

	syms, err := client.RequestSymbols(context.Background(), "/repo/app.py", time.Second)
	if err != nil {
		t.Fatalf("RequestSymbols: %v", err)
	}
	if len(syms) != 1 || syms[0].Name != "Widget" {
		t.Fatalf("symbols = %+v, want Widget", syms)
	}
	if len(syms[0].Children) != 1 || syms[0].Children[0].Name != "render" {
		t.Errorf("children = %+v, want render", syms[0].Children)
	}
}

func TestRequestSymbolsFlatNormalized(t *testing.T) {
	srv := &fakeServer{
		capabilities: map[string]interface{}{},
		onRequest: func(s *fakeServer, msg *message) {
			s.respond(*msg.ID, []SymbolInformation{
				{
					Name: "handle",
					Kind: KindFunction,
					Location: Location{
						URI: "file:///repo/app.py",
						Range: Range{
							Start: Position{Line: 3},
							End:   Position{Line: 9},
						},
					},
				},
			})
		},
	}
	client := srv.start(t)

	syms, err := client.RequestSymbols(context.Background(), "/repo/app.py", time.Second)
	if err != nil {
		t.Fatalf("RequestSymbols: %v", err)
	}
	if len(syms) != 1 {
		t.Fatalf("got %d symbols, want 1", len(syms))
	}
	if syms[0].Name != "handle" || syms[0].Kind != KindFunction {
		t.Errorf("symbol = %+v", syms[0])
	}
	if syms[0].Range.Start.Line != 3 || syms[0].Range.End.Line != 9 {
		t.Errorf("range = %+v, want lines 3..9 from location", syms[0].Range)
	}
}

func TestCloseFailsPendingRequests(t *testing.T) {
	started := make(chan struct{})
	srv := &fakeServer{
		capabilities: map[string]interface{}{},
		onRequest: func(s *fakeServer, msg *message) {
			close(started)
		},
	}
	client := srv.start(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := client.RequestSymbols(context.Background(), "/repo/app.py", 5*time.Second)
		errCh <- err
	}()

	<-started
	client.Close()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("pending request should fail on Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("pending request did not unblock after Close")
	}
}
