package retrieval

import "github.com/poiesic/finwhiz/core"

// Implement this interface to track intermediate steps and results during retrieval.
type Monitor interface {
	Start(query string, topK int)
	AfterEmbedding(vector []float32)
	AfterQuery(results []*core.SearchResult)
	Finish(result string)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)             {}
func (n *noopMonitor) AfterEmbedding(_ []float32)        {}
func (n *noopMonitor) AfterQuery(_ []*core.SearchResult) {}
func (n *noopMonitor) Finish(_ string)                   {}
