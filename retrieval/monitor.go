package retrieval

import "github.com/poiesic/docquery/core"

// Degradation stages reported to a Monitor.
const (
	// StageEmbedding covers failures while embedding the question.
	StageEmbedding = "embedding"

	// StageSearch covers failures while searching the vector index.
	StageSearch = "search"
)

// Monitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and degradations.
type Monitor interface {
	Start(question string)
	AfterEmbedding(vector []float32)
	Degraded(stage string, err error)
	Finish(candidates []*core.Candidate)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)             {}
func (n *noopMonitor) AfterEmbedding(_ []float32) {}
func (n *noopMonitor) Degraded(_ string, _ error) {}
func (n *noopMonitor) Finish(_ []*core.Candidate) {}
