package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yourorg/enos-mapper/internal/ai"
	"github.com/yourorg/enos-mapper/internal/models"
)

// processPoint runs tagging, mapping, and bounded reflection for one point,
// committing the mapping and writing one chain per phase. Per-point
// failures never abort the operation.
func (o *Orchestrator) processPoint(ctx context.Context, id string, op *operation,
	batchIndex int, equip, instance string, p models.Point) error {

	// Tagging.
	op.update(func(pr *models.OperationProgress) { pr.Phase = "tagging" })
	tagChain := &models.ReasoningChain{OperationID: id, PointID: p.PointID, Phase: "tagging"}
	tp := o.tagger.Tag(ctx, equip, instance, p, tagChain)
	if err := o.store.WriteChain(*tagChain); err != nil {
		return &PipelineError{Err: err, OperationID: id, Phase: "tagging", BatchIndex: batchIndex, PointID: p.PointID}
	}
	op.rememberTagged(tp)

	// Mapping.
	op.update(func(pr *models.OperationProgress) { pr.Phase = "mapping" })
	mapChain := &models.ReasoningChain{OperationID: id, PointID: p.PointID, Phase: "mapping"}
	m, breakdown, mapErr := o.mapper.Map(ctx, tp, mapChain)
	if mapErr != nil && (errors.Is(mapErr, context.Canceled) || errors.Is(mapErr, context.DeadlineExceeded)) {
		return mapErr
	}
	if err := o.store.WriteChain(*mapChain); err != nil {
		return &PipelineError{Err: err, OperationID: id, Phase: "mapping", BatchIndex: batchIndex, PointID: p.PointID}
	}
	op.commit(m)

	// Reflection, bounded and strictly serial. A format error from the
	// mapping stage forces the format_error mode on the first pass.
	var formatErr *ai.FormatError
	if mapErr != nil && !errors.As(mapErr, &formatErr) {
		slog.Warn("mapping returned unexpected error", "operation_id", id, "point_id", p.PointID, "err", mapErr)
	}
	for i := 0; i < o.cfg.NReflect; i++ {
		if formatErr == nil && !o.reflector.ShouldReflect(m) {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		op.update(func(pr *models.OperationProgress) { pr.Phase = "reflection" })
		reflChain := &models.ReasoningChain{OperationID: id, PointID: p.PointID, Phase: "reflection"}
		outcome, err := o.reflector.Reflect(ctx, id, tp, m, breakdown, formatErr, reflChain)
		formatErr = nil
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			slog.Warn("reflection failed", "operation_id", id, "point_id", p.PointID, "err", err)
			break
		}
		// The reflection chain always follows its originating mapping chain.
		if err := o.store.WriteChain(*reflChain); err != nil {
			return &PipelineError{Err: err, OperationID: id, Phase: "reflection", BatchIndex: batchIndex, PointID: p.PointID}
		}
		if err := o.store.WriteReflection(outcome.Reflection); err != nil {
			return &PipelineError{Err: err, OperationID: id, Phase: "reflection", BatchIndex: batchIndex, PointID: p.PointID}
		}
		if outcome.Revised != nil {
			m = *outcome.Revised
			op.replaceLast(m)
		}
	}

	op.update(func(pr *models.OperationProgress) {
		pr.Processed++
		pr.Succeeded++
	})
	return nil
}

// RemapPoint reruns mapping plus one reflection pass for a single point of
// a finished or running operation, at the operator's request. The revised
// mapping replaces the committed record for that point.
func (o *Orchestrator) RemapPoint(ctx context.Context, operationID, pointID string) (models.Mapping, error) {
	op, ok := o.reg.get(operationID)
	if !ok {
		return models.Mapping{}, ErrOperationNotFound
	}
	tp, ok := op.taggedPoint(pointID)
	if !ok {
		return models.Mapping{}, &PipelineError{Err: ErrOperationNotFound, OperationID: operationID,
			PointID: pointID, Message: "point not tagged in this operation"}
	}

	mapChain := &models.ReasoningChain{OperationID: operationID, PointID: pointID, Phase: "mapping"}
	m, breakdown, mapErr := o.mapper.Map(ctx, tp, mapChain)
	if mapErr != nil && (errors.Is(mapErr, context.Canceled) || errors.Is(mapErr, context.DeadlineExceeded)) {
		return models.Mapping{}, mapErr
	}
	if err := o.store.WriteChain(*mapChain); err != nil {
		return models.Mapping{}, err
	}

	var formatErr *ai.FormatError
	errors.As(mapErr, &formatErr)

	reflChain := &models.ReasoningChain{OperationID: operationID, PointID: pointID, Phase: "reflection"}
	outcome, err := o.reflector.Reflect(ctx, operationID, tp, m, breakdown, formatErr, reflChain)
	if err == nil {
		if werr := o.store.WriteChain(*reflChain); werr != nil {
			return models.Mapping{}, werr
		}
		if werr := o.store.WriteReflection(outcome.Reflection); werr != nil {
			return models.Mapping{}, werr
		}
		if outcome.Revised != nil {
			m = *outcome.Revised
		}
	}

	op.mu.Lock()
	for i := range op.results {
		if op.results[i].SourcePoint.PointID == pointID {
			op.results[i] = m
			break
		}
	}
	op.mu.Unlock()
	return m, nil
}
