package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/yourorg/enos-mapper/internal/models"
)

// operation is the orchestrator-owned state of one pipeline run. The
// progress record is mutated only by the owning run loop; readers get
// snapshots under the lock.
type operation struct {
	mu       sync.Mutex
	progress models.OperationProgress
	// results holds committed mappings; cancellation never removes them.
	results []models.Mapping
	// tagged retains the tagged points for per-point remap requests.
	tagged map[string]models.TaggedPoint
	cancel context.CancelFunc
}

func newOperation(id, kind string, total int, cancel context.CancelFunc) *operation {
	now := time.Now().UTC()
	return &operation{
		progress: models.OperationProgress{
			OperationID: id,
			Kind:        kind,
			Total:       total,
			StartedAt:   now,
			LastUpdate:  now,
			State:       models.StatePending,
		},
		tagged: make(map[string]models.TaggedPoint),
		cancel: cancel,
	}
}

// snapshot returns a copy of the progress record.
func (op *operation) snapshot() models.OperationProgress {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.progress
}

// update applies a mutation to the progress record under the lock and
// stamps LastUpdate. processed is monotone by construction: every caller
// only ever increments it.
func (op *operation) update(fn func(p *models.OperationProgress)) {
	op.mu.Lock()
	defer op.mu.Unlock()
	fn(&op.progress)
	if op.progress.Total > 0 {
		op.progress.Percent = op.progress.Processed * 100 / op.progress.Total
	}
	op.progress.LastUpdate = time.Now().UTC()
}

// commit appends a mapping to the committed results.
func (op *operation) commit(m models.Mapping) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.results = append(op.results, m)
}

// replaceLast swaps the most recently committed mapping, used when a
// reflection pass revises the mapping it just followed.
func (op *operation) replaceLast(m models.Mapping) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if n := len(op.results); n > 0 {
		op.results[n-1] = m
	}
}

// records returns the committed mapping records in commit order.
func (op *operation) records() []models.MappingRecord {
	op.mu.Lock()
	defer op.mu.Unlock()
	out := make([]models.MappingRecord, 0, len(op.results))
	for _, m := range op.results {
		out = append(out, m.Record())
	}
	return out
}

// mappings returns a copy of the committed mappings.
func (op *operation) mappings() []models.Mapping {
	op.mu.Lock()
	defer op.mu.Unlock()
	out := make([]models.Mapping, len(op.results))
	copy(out, op.results)
	return out
}

func (op *operation) rememberTagged(tp models.TaggedPoint) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.tagged[tp.PointID] = tp
}

func (op *operation) taggedPoint(pointID string) (models.TaggedPoint, bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	tp, ok := op.tagged[pointID]
	return tp, ok
}

// registry tracks live and finished operations.
type registry struct {
	mu  sync.RWMutex
	ops map[string]*operation
}

func newRegistry() *registry {
	return &registry{ops: make(map[string]*operation)}
}

func (r *registry) put(id string, op *operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[id] = op
}

func (r *registry) get(id string) (*operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[id]
	return op, ok
}
