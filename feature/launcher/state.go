package launcher

// State is the launcher lifecycle state.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// WorkerState is the lifecycle state of a single worker.
type WorkerState int32

const (
	WorkerBooting WorkerState = iota
	WorkerIdle
	WorkerBusy
	WorkerKilled
	WorkerExited
)

func (s WorkerState) String() string {
	switch s {
	case WorkerBooting:
		return "booting"
	case WorkerIdle:
		return "idle"
	case WorkerBusy:
		return "busy"
	case WorkerKilled:
		return "killed"
	case WorkerExited:
		return "exited"
	}
	return "unknown"
}
