package journey

// Stage identifies one named step of an operation's processing. The ordinal
// values form the index space of every per-stage array in this package.
type Stage int

const (
	StageRunning Stage = iota // must stay zero
	StageWaitForReadConcern
	StageWaitForWriteConcern
	StageReadMirroring
	StageCheckAuthorization
	StageExtractReadConcern
	StageAcquireDbLock
	StageComputeAndGossipOpTime
	StageEgress
	StageReleased
	StageDestroyed // must stay last; sizes all per-stage storage
)

// stageNames is positional over the Stage constants. The static assertion
// below fails to compile when a stage is added without a name, or a name
// without a stage.
var stageNames = [...]string{
	"running",
	"waitForReadConcern",
	"waitForWriteConcern",
	"readMirroring",
	"checkAuthorization",
	"extractReadConcern",
	"acquireDbLock",
	"computeAndGossipOpTime",
	"egress",
	"released",
	"destroyed",
}

var _ = [1]struct{}{}[len(stageNames)-int(StageDestroyed)-1]

func (s Stage) String() string {
	return stageNames[s]
}

// Valid reports whether s is within the enumeration.
func (s Stage) Valid() bool {
	return s >= StageRunning && s <= StageDestroyed
}
