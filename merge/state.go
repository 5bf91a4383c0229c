package merge

import "fmt"

// State is the orchestrator's position in a run.
type State int

const (
	Init State = iota
	CommonImport
	PerSourceImport
	Finalize
	Publish
	Success
	Failed
)

var stateNames = [...]string{"init", "common_import", "per_source_import", "finalize", "publish", "success", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Namespace is the id prefix of the source feed at ordinal i.
func Namespace(i int) string { return fmt.Sprintf("p%d_", i) }
