package supervisor

import (
	"os/exec"
	"sync"
	"time"

	"codesweep/internal/protocol"
)

// State represents the lifecycle state of a language session.
type State string

const (
	// StateStarting indicates the server process is being spawned
	StateStarting State = "starting"
	// StateReady indicates the session is healthy and serving requests
	StateReady State = "ready"
	// StateDegraded indicates the session failed a probe and is being restarted
	StateDegraded State = "degraded"
	// StateTerminated indicates the session is gone for the rest of the run
	StateTerminated State = "terminated"
)

// Session is one supervised language-server process. It is owned
// exclusively by the Supervisor that created it.
type Session struct {
	// Language is the language id this session serves
	Language string

	// Client is the protocol session over the process pipes
	Client *protocol.Client

	cmd *exec.Cmd

	mu            sync.RWMutex
	state         State
	restarts      int
	processExited bool
	startDuration time.Duration
}

func newSession(language string) *Session {
	return &Session{Language: language, state: StateStarting}
}

// GetState returns the current state (thread-safe)
func (s *Session) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// setState sets the current state. Terminated is absorbing.
func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	s.state = state
}

// Ready reports whether the session can serve requests.
func (s *Session) Ready() bool {
	return s.GetState() == StateReady
}

// Restarts returns how many times the session has been restarted.
func (s *Session) Restarts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restarts
}

// markProcessExited is called by the waiter goroutine when the
// underlying process terminates.
func (s *Session) markProcessExited() {
	s.mu.Lock()
	s.processExited = true
	s.mu.Unlock()
}

// ProcessAlive reports whether the underlying process is still running.
func (s *Session) ProcessAlive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cmd != nil && !s.processExited
}

// StartDuration is how long the start-and-handshake cycle took.
func (s *Session) StartDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startDuration
}

func (s *Session) setStartDuration(d time.Duration) {
	s.mu.Lock()
	s.startDuration = d
	s.mu.Unlock()
}
