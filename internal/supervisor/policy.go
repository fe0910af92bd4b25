package supervisor

// restartPolicy decides what a health probe failure means for a
// session. It is deliberately free of process handling so the decision
// table is testable without a subprocess.
type restartPolicy struct {
	// maxRestarts is how many restarts a session gets per run
	maxRestarts int
}

// probeAction is the outcome of a health probe.
type probeAction int

const (
	// probeKeep leaves the session alone
	probeKeep probeAction = iota
	// probeRestart tears the session down and starts a replacement
	probeRestart
	// probeDisable terminates the session for the rest of the run
	probeDisable
)

// decide maps (process alive, restarts so far) to an action.
// A dead process gets exactly maxRestarts chances; the failure after
// the last allowed restart permanently disables the language.
func (p restartPolicy) decide(alive bool, restarts int) probeAction {
	if alive {
		return probeKeep
	}
	if restarts < p.maxRestarts {
		return probeRestart
	}
	return probeDisable
}
