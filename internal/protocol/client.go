// Package protocol implements the client side of one language-server
// session: request/response correlation, push-notification routing, and
// the normalization of push- and pull-delivered diagnostics behind a
// single blocking call.
package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"codesweep/internal/errors"
)

// pushQueueDepth bounds buffered publishDiagnostics batches per file.
const pushQueueDepth = 4

// Client is a JSON-RPC session with one running language server.
// A Client is owned by exactly one supervisor session and must not be
// shared across repositories.
type Client struct {
	language   string
	protocolID string
	root       string
	logger     *slog.Logger

	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	// writeMu serializes frames onto stdin
	writeMu sync.Mutex

	// mu protects nextID and pending
	mu      sync.Mutex
	nextID  int
	pending map[int]chan *message

	// pushMu protects push queues (key: absolute file path)
	pushMu sync.Mutex
	push   map[string]chan []Diagnostic

	capsMu       sync.RWMutex
	capabilities map[string]interface{}

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewClient creates a client over the given server pipes. Run must be
// called before any request is issued.
func NewClient(language, protocolID, root string, stdin io.WriteCloser, stdout, stderr io.ReadCloser, logger *slog.Logger) *Client {
	return &Client{
		language:   language,
		protocolID: protocolID,
		root:       root,
		logger:     logger,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		pending:    make(map[int]chan *message),
		push:       make(map[string]chan []Diagnostic),
		done:       make(chan struct{}),
	}
}

// Run starts the background read loops.
func (c *Client) Run() {
	c.wg.Add(2)
	go c.readLoop()
	go c.stderrLoop()
}

// Language returns the language id this client serves.
func (c *Client) Language() string {
	return c.language
}

// Initialize performs the initialization handshake and records the
// server's advertised capabilities.
func (c *Client) Initialize(ctx context.Context, timeout time.Duration) error {
	params := map[string]interface{}{
		"processId": nil,
		"rootUri":   fileURI(c.root),
		"capabilities": map[string]interface{}{
			"textDocument": map[string]interface{}{
				"diagnostic": map[string]interface{}{},
				"publishDiagnostics": map[string]interface{}{
					"relatedInformation": true,
				},
				"documentSymbol": map[string]interface{}{
					"hierarchicalDocumentSymbolSupport": true,
				},
			},
		},
	}

	result, err := c.request(ctx, "initialize", params, timeout)
	if err != nil {
		return fmt.Errorf("initialize request failed: %w", err)
	}

	var initResult struct {
		Capabilities map[string]interface{} `json:"capabilities"`
	}
	if err := json.Unmarshal(result, &initResult); err == nil && initResult.Capabilities != nil {
		c.capsMu.Lock()
		c.capabilities = initResult.Capabilities
		c.capsMu.Unlock()
	}

	if err := c.notify("initialized", map[string]interface{}{}); err != nil {
		return fmt.Errorf("initialized notification failed: %w", err)
	}

	return nil
}

// Capabilities returns the server capabilities from the handshake.
func (c *Client) Capabilities() map[string]interface{} {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.capabilities
}

// supportsPullDiagnostics reports whether the server advertised the
// diagnostic-request provider. Servers without it push diagnostics
// after didOpen instead.
func (c *Client) supportsPullDiagnostics() bool {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.capabilities["diagnosticProvider"] != nil
}

// NotifyOpen informs the server a file is being analyzed. It also
// registers the push queue for the file so push-delivered diagnostics
// emitted right after didOpen are not lost.
func (c *Client) NotifyOpen(path, text string) error {
	c.ensurePushQueue(path)

	params := map[string]interface{}{
		"textDocument": map[string]interface{}{
			"uri":        fileURI(path),
			"languageId": c.protocolID,
			"version":    1,
			"text":       text,
		},
	}
	return c.notify("textDocument/didOpen", params)
}

// NotifyClose releases server-side state for the file.
func (c *Client) NotifyClose(path string) error {
	err := c.notify("textDocument/didClose", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": fileURI(path)},
	})
	c.dropPushQueue(path)
	return err
}

// RequestDiagnostics returns the diagnostics for one open file. Pull
// delivery is used when the server supports it; otherwise the call
// waits on the push queue populated by publishDiagnostics
// notifications. Both paths share the same timeout.
func (c *Client) RequestDiagnostics(ctx context.Context, path string, timeout time.Duration) ([]RawDiagnostic, error) {
	deadline := time.Now().Add(timeout)

	if c.supportsPullDiagnostics() {
		raw, err := c.pullDiagnostics(ctx, path, timeout)
		var rpcErr *ResponseError
		if err == nil {
			return raw, nil
		}
		if !stderrors.As(err, &rpcErr) || rpcErr.Code != codeMethodNotFound {
			return nil, err
		}
		// Server advertised pull but rejected it; fall through to push.
	}

	return c.waitPushDiagnostics(ctx, path, time.Until(deadline))
}

// pullDiagnostics issues textDocument/diagnostic.
func (c *Client) pullDiagnostics(ctx context.Context, path string, timeout time.Duration) ([]RawDiagnostic, error) {
	result, err := c.request(ctx, "textDocument/diagnostic", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": fileURI(path)},
	}, timeout)
	if err != nil {
		return nil, err
	}

	var report struct {
		Kind  string       `json:"kind"`
		Items []Diagnostic `json:"items"`
	}
	if err := json.Unmarshal(result, &report); err != nil {
		c.logger.Debug("Malformed diagnostic report", "language", c.language, "error", err)
		return nil, nil
	}

	raw := make([]RawDiagnostic, 0, len(report.Items))
	for _, d := range report.Items {
		raw = append(raw, toRaw(path, d))
	}
	return raw, nil
}

// waitPushDiagnostics blocks until publishDiagnostics for the file
// arrives or the timeout elapses.
func (c *Client) waitPushDiagnostics(ctx context.Context, path string, timeout time.Duration) ([]RawDiagnostic, error) {
	queue := c.ensurePushQueue(path)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case diags := <-queue:
		raw := make([]RawDiagnostic, 0, len(diags))
		for _, d := range diags {
			raw = append(raw, toRaw(path, d))
		}
		return raw, nil
	case <-timer.C:
		return nil, errors.New(errors.Timeout,
			fmt.Sprintf("no diagnostics for %s within %s", filepath.Base(path), timeout), nil)
	case <-ctx.Done():
		return nil, errors.New(errors.Timeout, "diagnostic wait cancelled", ctx.Err())
	case <-c.done:
		return nil, errors.New(errors.ServerUnavailable, "session closed", nil)
	}
}

// RequestSymbols issues textDocument/documentSymbol and normalizes both
// the hierarchical and the flat response shapes.
func (c *Client) RequestSymbols(ctx context.Context, path string, timeout time.Duration) ([]DocumentSymbol, error) {
	result, err := c.request(ctx, "textDocument/documentSymbol", map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": fileURI(path)},
	}, timeout)
	if err != nil {
		return nil, err
	}

	var hierarchical []DocumentSymbol
	if err := json.Unmarshal(result, &hierarchical); err == nil && symbolsLookHierarchical(result) {
		return hierarchical, nil
	}

	var flat []SymbolInformation
	if err := json.Unmarshal(result, &flat); err != nil {
		c.logger.Debug("Malformed documentSymbol response", "language", c.language, "error", err)
		return nil, nil
	}

	out := make([]DocumentSymbol, 0, len(flat))
	for _, s := range flat {
		out = append(out, DocumentSymbol{
			Name:           s.Name,
			Kind:           s.Kind,
			Range:          s.Location.Range,
			SelectionRange: s.Location.Range,
		})
	}
	return out, nil
}

// symbolsLookHierarchical distinguishes DocumentSymbol[] from
// SymbolInformation[]: only the flat shape carries "location".
func symbolsLookHierarchical(result json.RawMessage) bool {
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(result, &probe); err != nil || len(probe) == 0 {
		return true
	}
	_, hasLocation := probe[0]["location"]
	return !hasLocation
}

// Shutdown sends the shutdown request and exit notification. Errors are
// ignored: the supervisor kills the process after the grace period.
func (c *Client) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, _ = c.request(ctx, "shutdown", nil, timeout)
	_ = c.notify("exit", nil)
}

// Close tears down the session and fails all pending requests.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.stdin != nil {
			_ = c.stdin.Close()
		}
		if c.stdout != nil {
			_ = c.stdout.Close()
		}
		if c.stderr != nil {
			_ = c.stderr.Close()
		}
	})
	c.wg.Wait()
}

// request sends a JSON-RPC request and waits for the response.
func (c *Client) request(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	respChan := make(chan *message, 1)
	c.pending[id] = respChan
	c.mu.Unlock()

	msg := &message{JSONRPC: "2.0", ID: &id, Method: method, Params: raw}
	if err := c.write(msg); err != nil {
		c.dropPending(id)
		return nil, errors.New(errors.ServerUnavailable, "failed to send request", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-respChan:
		if !ok {
			return nil, errors.New(errors.ServerUnavailable, "session closed", nil)
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-timer.C:
		c.dropPending(id)
		return nil, errors.New(errors.Timeout,
			fmt.Sprintf("%s request timed out after %s", method, timeout), nil)
	case <-ctx.Done():
		c.dropPending(id)
		return nil, errors.New(errors.Timeout, method+" request cancelled", ctx.Err())
	case <-c.done:
		return nil, errors.New(errors.ServerUnavailable, "session closed", nil)
	}
}

// notify sends a JSON-RPC notification (no response expected).
func (c *Client) notify(method string, params interface{}) error {
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	return c.write(&message{JSONRPC: "2.0", Method: method, Params: raw})
}

func (c *Client) write(msg *message) error {
	if c.stdin == nil {
		return fmt.Errorf("stdin not available")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeFrame(c.stdin, msg)
}

func (c *Client) dropPending(id int) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop continuously reads messages from the server.
func (c *Client) readLoop() {
	defer c.wg.Done()
	defer func() {
		// Fail everything still waiting
		c.mu.Lock()
		for _, ch := range c.pending {
			close(ch)
		}
		c.pending = make(map[int]chan *message)
		c.mu.Unlock()
	}()

	reader := bufio.NewReader(c.stdout)
	for {
		select {
		case <-c.done:
			return
		default:
		}

		msg, err := readFrame(reader)
		if err != nil {
			if stderrors.Is(err, errMalformed) {
				// Malformed message: never fatal
				c.logger.Debug("Dropping malformed server message", "language", c.language, "error", err)
				continue
			}
			// Transport gone (EOF, closed pipe, dead process)
			return
		}

		c.dispatch(msg)
	}
}

// dispatch routes one incoming message.
func (c *Client) dispatch(msg *message) {
	// Response to one of our requests
	if msg.ID != nil && msg.Method == "" {
		c.mu.Lock()
		respChan, ok := c.pending[*msg.ID]
		if ok {
			delete(c.pending, *msg.ID)
		}
		c.mu.Unlock()

		if ok {
			select {
			case respChan <- msg:
			default:
			}
		}
		return
	}

	if msg.Method != "" {
		c.handleServerMessage(msg)
	}
}

// handleServerMessage handles server-initiated notifications/requests.
func (c *Client) handleServerMessage(msg *message) {
	switch msg.Method {
	case "textDocument/publishDiagnostics":
		var params struct {
			URI         string       `json:"uri"`
			Diagnostics []Diagnostic `json:"diagnostics"`
		}
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			c.logger.Debug("Malformed publishDiagnostics", "language", c.language, "error", err)
			return
		}
		c.deliverPush(uriToPath(params.URI), params.Diagnostics)
	case "window/logMessage", "window/showMessage", "$/progress":
		// Observational server chatter
	default:
		c.logger.Debug("Ignoring server message", "language", c.language, "method", msg.Method)
	}

	// Server requests expect an answer; an empty result keeps it moving.
	if msg.ID != nil {
		_ = c.write(&message{JSONRPC: "2.0", ID: msg.ID, Result: json.RawMessage("null")})
	}
}

// deliverPush hands a publishDiagnostics batch to the file's queue.
// Unsolicited diagnostics for files nobody asked about are dropped.
func (c *Client) deliverPush(path string, diags []Diagnostic) {
	c.pushMu.Lock()
	queue, ok := c.push[path]
	c.pushMu.Unlock()
	if !ok {
		return
	}

	for {
		select {
		case queue <- diags:
			return
		default:
			// Queue full: discard the oldest batch, newest wins
			select {
			case <-queue:
			default:
			}
		}
	}
}

func (c *Client) ensurePushQueue(path string) chan []Diagnostic {
	c.pushMu.Lock()
	defer c.pushMu.Unlock()
	queue, ok := c.push[path]
	if !ok {
		queue = make(chan []Diagnostic, pushQueueDepth)
		c.push[path] = queue
	}
	return queue
}

func (c *Client) dropPushQueue(path string) {
	c.pushMu.Lock()
	delete(c.push, path)
	c.pushMu.Unlock()
}

// stderrLoop drains stderr so the server cannot block on it.
func (c *Client) stderrLoop() {
	defer c.wg.Done()
	if c.stderr == nil {
		return
	}

	scanner := bufio.NewScanner(c.stderr)
	for scanner.Scan() {
		select {
		case <-c.done:
			return
		default:
			c.logger.Debug("Server stderr", "language", c.language, "line", scanner.Text())
		}
	}
}

// fileURI converts an absolute path to a file:// URI.
func fileURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}

// uriToPath converts a file:// URI back to a local path.
func uriToPath(uri string) string {
	trimmed := strings.TrimPrefix(uri, "file://")
	if unescaped, err := url.PathUnescape(trimmed); err == nil {
		trimmed = unescaped
	}
	return filepath.FromSlash(trimmed)
}
