// Package supervisor owns the process lifecycle of one protocol server
// per active language: startup handshake, liveness probing, bounded
// restart, and guaranteed teardown.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"codesweep/internal/config"
	"codesweep/internal/errors"
	"codesweep/internal/protocol"
	"codesweep/internal/registry"
)

// Supervisor manages the language-server sessions of one analysis run.
type Supervisor struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	policy restartPolicy

	mu       sync.Mutex
	sessions map[string]*Session
	// disabled maps language id to the reason it was excluded
	disabled map[string]string
}

// New creates a supervisor rooted at the repository being analyzed.
func New(root string, cfg *config.Config, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		root:     root,
		cfg:      cfg,
		logger:   logger,
		policy:   restartPolicy{maxRestarts: cfg.Supervisor.MaxRestarts},
		sessions: make(map[string]*Session),
		disabled: make(map[string]string),
	}
}

// Start spawns and initializes the server for a language. Failure marks
// the language disabled for the run and returns ServerUnavailable; the
// caller degrades that language instead of aborting.
func (s *Supervisor) Start(ctx context.Context, language string) (*Session, error) {
	s.mu.Lock()
	if reason, off := s.disabled[language]; off {
		s.mu.Unlock()
		return nil, errors.New(errors.ServerUnavailable, reason, nil)
	}
	if sess, exists := s.sessions[language]; exists && sess.Ready() {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	sess, err := s.spawn(ctx, language, 0)
	if err != nil {
		s.disable(language, err.Error())
		return nil, err
	}

	s.mu.Lock()
	s.sessions[language] = sess
	s.mu.Unlock()
	return sess, nil
}

// spawn runs the configured command and performs the handshake.
func (s *Supervisor) spawn(ctx context.Context, language string, restarts int) (*Session, error) {
	serverCfg, ok := s.cfg.Servers[language]
	if !ok {
		return nil, errors.New(errors.ServerUnavailable,
			fmt.Sprintf("no server configured for language: %s", language), nil)
	}
	lang, ok := registry.Lookup(language)
	if !ok {
		return nil, errors.New(errors.ServerUnavailable,
			fmt.Sprintf("unknown language: %s", language), nil)
	}

	sess := newSession(language)
	sess.restarts = restarts
	started := time.Now()

	cmd := exec.Command(serverCfg.Command, serverCfg.Args...)
	cmd.Dir = s.root

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.New(errors.ServerUnavailable, "failed to create stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.New(errors.ServerUnavailable, "failed to create stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.New(errors.ServerUnavailable, "failed to create stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.New(errors.ServerUnavailable,
			fmt.Sprintf("failed to start %s", serverCfg.Command), err)
	}
	sess.cmd = cmd

	go func() {
		_ = cmd.Wait()
		sess.markProcessExited()
	}()

	client := protocol.NewClient(language, lang.ProtocolID, s.root, stdin, stdout, stderr, s.logger)
	client.Run()
	sess.Client = client

	startTimeout := time.Duration(s.cfg.Supervisor.StartTimeoutMs) * time.Millisecond
	if err := client.Initialize(ctx, startTimeout); err != nil {
		s.teardown(sess)
		sess.setState(StateTerminated)
		return nil, errors.New(errors.ServerUnavailable,
			fmt.Sprintf("%s handshake failed", language), err)
	}

	sess.setStartDuration(time.Since(started))
	sess.setState(StateReady)

	s.logger.Info("Started language server",
		"language", language,
		"command", serverCfg.Command,
		"startMs", time.Since(started).Milliseconds(),
	)
	return sess, nil
}

// EnsureHealthy probes the session before a batch. A dead process earns
// one restart; a second consecutive death disables the language.
func (s *Supervisor) EnsureHealthy(ctx context.Context, sess *Session) (*Session, error) {
	switch s.policy.decide(sess.ProcessAlive(), sess.Restarts()) {
	case probeKeep:
		return sess, nil

	case probeRestart:
		s.logger.Warn("Language server died, restarting",
			"language", sess.Language,
			"restarts", sess.Restarts(),
		)
		sess.setState(StateDegraded)
		s.teardown(sess)
		sess.setState(StateTerminated)

		backoff := time.Duration(s.cfg.Supervisor.RestartBackoffMs) * time.Millisecond
		select {
		case <-ctx.Done():
			s.disable(sess.Language, "run cancelled during restart")
			return nil, errors.New(errors.DeadlineExceeded,
				fmt.Sprintf("restart of %s server cancelled", sess.Language), ctx.Err())
		case <-time.After(backoff):
		}

		replacement, err := s.spawn(ctx, sess.Language, sess.Restarts()+1)
		if err != nil {
			s.disable(sess.Language, "server crashed and restart failed")
			return nil, err
		}

		s.mu.Lock()
		s.sessions[sess.Language] = replacement
		s.mu.Unlock()
		return replacement, nil

	default: // probeDisable
		sess.setState(StateTerminated)
		s.teardown(sess)
		s.disable(sess.Language, "server crashed repeatedly")
		return nil, errors.New(errors.ServerUnavailable,
			fmt.Sprintf("%s server disabled after repeated crashes", sess.Language), nil)
	}
}

// Stop gracefully shuts one session down, hard-killing the process
// after the grace period.
func (s *Supervisor) Stop(sess *Session) {
	if sess == nil {
		return
	}
	sess.setState(StateTerminated)
	s.teardown(sess)
}

// StopAll tears down every session. Always invoked on engine teardown,
// including on the error path.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		s.logger.Info("Stopping language server", "language", sess.Language)
		s.Stop(sess)
	}
}

// Disabled returns language id -> reason for every excluded language.
func (s *Supervisor) Disabled() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.disabled))
	for k, v := range s.disabled {
		out[k] = v
	}
	return out
}

// StartDurations returns per-language server start timings.
func (s *Supervisor) StartDurations() map[string]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Duration, len(s.sessions))
	for lang, sess := range s.sessions {
		out[lang] = sess.StartDuration()
	}
	return out
}

func (s *Supervisor) disable(language, reason string) {
	s.mu.Lock()
	if _, exists := s.disabled[language]; !exists {
		s.disabled[language] = reason
	}
	s.mu.Unlock()
}

// teardown closes the client and reaps the process.
func (s *Supervisor) teardown(sess *Session) {
	grace := time.Duration(s.cfg.Supervisor.ShutdownGraceMs) * time.Millisecond

	if sess.Client != nil && sess.ProcessAlive() {
		sess.Client.Shutdown(grace)
	}
	if sess.Client != nil {
		sess.Client.Close()
	}

	if sess.cmd == nil || sess.cmd.Process == nil {
		return
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !sess.ProcessAlive() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	_ = sess.cmd.Process.Kill()
}
