package syncer

// CycleState is the externally observable stage of the in-flight sync cycle.
// AwaitingResolution is the only unbounded state: the engine sits there until
// the conflict surface returns or the cycle context is cancelled.
type CycleState int32

const (
	StateIdle CycleState = iota
	StateSnapshotting
	StateClassifying
	StateAwaitingResolution
	StateExecuting
	StatePersisting
)

var cycleStateNames = []string{
	"Idle",
	"Snapshotting",
	"Classifying",
	"AwaitingResolution",
	"Executing",
	"Persisting",
}

func (s CycleState) String() string {
	if int(s) >= len(cycleStateNames) {
		return "Unknown"
	}
	return cycleStateNames[s]
}
