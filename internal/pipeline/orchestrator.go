// Package pipeline drives end-to-end execution: batching, progress
// tracking, cancellation, and the grouping → tagging → mapping →
// reflection flow per point.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/enos-mapper/internal/grouping"
	"github.com/yourorg/enos-mapper/internal/mapping"
	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/reasoning"
	"github.com/yourorg/enos-mapper/internal/reflection"
	"github.com/yourorg/enos-mapper/internal/tagging"
)

// Config bounds one orchestrator's execution.
type Config struct {
	BatchSize        int
	NReflect         int
	OperationTimeout time.Duration // 0 = none
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.NReflect < 0 {
		c.NReflect = 0
	}
}

// Orchestrator owns operation state and drives the engines. Multiple
// operations may run in parallel; within one operation point processing is
// sequential so reasoning records keep a deterministic order.
type Orchestrator struct {
	cfg       Config
	grouper   *grouping.Engine
	tagger    *tagging.Engine
	mapper    *mapping.Engine
	reflector *reflection.Engine
	store     *reasoning.Store
	reg       *registry
}

// New wires an orchestrator over the four engines and the reasoning store.
func New(cfg Config, grouper *grouping.Engine, tagger *tagging.Engine,
	mapper *mapping.Engine, reflector *reflection.Engine, store *reasoning.Store) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:       cfg,
		grouper:   grouper,
		tagger:    tagger,
		mapper:    mapper,
		reflector: reflector,
		store:     store,
		reg:       newRegistry(),
	}
}

// Submit starts an operation in the background and returns its id.
func (o *Orchestrator) Submit(points []models.Point, kind string) string {
	id, op, ctx := o.register(points, kind)
	go o.run(ctx, id, op, points)
	return id
}

// Run executes an operation synchronously and returns its id.
func (o *Orchestrator) Run(ctx context.Context, points []models.Point, kind string) string {
	id, op, opCtx := o.register(points, kind)
	// Tie the operation to the caller's context as well.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			op.cancel()
		case <-done:
		}
	}()
	o.run(opCtx, id, op, points)
	close(done)
	return id
}

func (o *Orchestrator) register(points []models.Point, kind string) (string, *operation, context.Context) {
	id := uuid.NewString()
	var ctx context.Context
	var cancel context.CancelFunc
	if o.cfg.OperationTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), o.cfg.OperationTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	op := newOperation(id, kind, len(points), cancel)
	o.reg.put(id, op)
	return id, op, ctx
}

// Progress returns a snapshot of the operation's progress record.
func (o *Orchestrator) Progress(operationID string) (models.OperationProgress, bool) {
	op, ok := o.reg.get(operationID)
	if !ok {
		return models.OperationProgress{}, false
	}
	return op.snapshot(), true
}

// Records returns the committed mapping records so far (partial results
// during a run, full results after).
func (o *Orchestrator) Records(operationID string) ([]models.MappingRecord, bool) {
	op, ok := o.reg.get(operationID)
	if !ok {
		return nil, false
	}
	return op.records(), true
}

// Summary aggregates the operation's committed mappings.
func (o *Orchestrator) Summary(operationID string) (Summary, bool) {
	op, ok := o.reg.get(operationID)
	if !ok {
		return Summary{}, false
	}
	return summarize(operationID, op.mappings()), true
}

// Cancel requests cooperative cancellation. Already-committed results are
// retained; the flag is observed between batches, between points, and at
// every LLM acquire.
func (o *Orchestrator) Cancel(operationID string) bool {
	op, ok := o.reg.get(operationID)
	if !ok {
		return false
	}
	op.cancel()
	return true
}

// run is the operation's single-threaded drive loop.
func (o *Orchestrator) run(ctx context.Context, id string, op *operation, points []models.Point) {
	op.update(func(p *models.OperationProgress) {
		p.State = models.StateRunning
		p.Phase = "grouping"
		p.Message = "starting"
	})
	slog.Info("operation started", "operation_id", id, "total", len(points), "batch_size", o.cfg.BatchSize)

	batches := partition(points, o.cfg.BatchSize)
	for batchIndex, batch := range batches {
		// Cancellation check between batches.
		if err := ctx.Err(); err != nil {
			o.finish(id, op, err)
			return
		}
		if err := o.runBatch(ctx, id, op, batchIndex, batch); err != nil {
			o.finish(id, op, err)
			return
		}
		op.update(func(p *models.OperationProgress) {
			p.BatchIndex = batchIndex + 1
			p.Message = fmt.Sprintf("batch %d/%d committed", batchIndex+1, len(batches))
		})
	}
	o.finish(id, op, nil)
}

func (o *Orchestrator) runBatch(ctx context.Context, id string, op *operation, batchIndex int, batch []models.Point) error {
	// Split out malformed points first; they are skipped and counted.
	valid := make([]models.Point, 0, len(batch))
	for _, p := range batch {
		if p.PointID == "" || p.PointName == "" {
			slog.Warn("invalid point skipped", "operation_id", id, "point_id", p.PointID, "batch_index", batchIndex)
			op.update(func(pr *models.OperationProgress) {
				pr.Processed++
				pr.Failed++
			})
			continue
		}
		valid = append(valid, p)
	}

	op.update(func(p *models.OperationProgress) { p.Phase = "grouping" })
	groups, err := o.grouper.Group(ctx, id, valid, func(chain models.ReasoningChain) {
		if werr := o.store.WriteChain(chain); werr != nil {
			slog.Error("reasoning write failed", "operation_id", id, "point_id", chain.PointID, "err", werr)
		}
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &PipelineError{Err: err, OperationID: id, Phase: "grouping", BatchIndex: batchIndex}
	}

	// Invert the groups so points are processed in input order; reasoning
	// records then follow point order within the batch.
	place := make(map[string][2]string, len(valid))
	for equip, instances := range groups.Groups {
		for inst, pts := range instances {
			for _, p := range pts {
				place[p.PointID] = [2]string{equip, inst}
			}
		}
	}

	for _, p := range valid {
		// Cancellation check between points.
		if err := ctx.Err(); err != nil {
			return err
		}
		at, ok := place[p.PointID]
		if !ok {
			return &PipelineError{Err: ErrInternalInvariant, OperationID: id, Phase: "grouping",
				BatchIndex: batchIndex, PointID: p.PointID, Message: "point missing from grouping output"}
		}
		if err := o.processPoint(ctx, id, op, batchIndex, at[0], at[1], p); err != nil {
			return err
		}
	}
	return nil
}

func partition(points []models.Point, size int) [][]models.Point {
	var out [][]models.Point
	for start := 0; start < len(points); start += size {
		end := start + size
		if end > len(points) {
			end = len(points)
		}
		out = append(out, points[start:end])
	}
	return out
}

func (o *Orchestrator) finish(id string, op *operation, err error) {
	switch {
	case err == nil:
		op.update(func(p *models.OperationProgress) {
			p.State = models.StateCompleted
			p.Message = "completed"
		})
		slog.Info("operation completed", "operation_id", id)
	case errors.Is(err, context.Canceled):
		op.update(func(p *models.OperationProgress) {
			p.State = models.StateCancelled
			p.Message = ErrOperationCancelled.Error()
		})
		slog.Info("operation cancelled", "operation_id", id)
	case errors.Is(err, context.DeadlineExceeded):
		op.update(func(p *models.OperationProgress) {
			p.State = models.StateFailed
			p.Message = ErrOperationTimeout.Error()
		})
		slog.Warn("operation timed out", "operation_id", id)
	default:
		var perr *PipelineError
		phase, batch := "", 0
		if errors.As(err, &perr) {
			phase, batch = perr.Phase, perr.BatchIndex
		}
		op.update(func(p *models.OperationProgress) {
			p.State = models.StateFailed
			p.Phase = phase
			p.BatchIndex = batch
			p.Message = err.Error()
		})
		slog.Error("operation failed", "operation_id", id, "phase", phase, "batch_index", batch, "err", err)
	}
}
