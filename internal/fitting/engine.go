package fitting

import (
	"context"
	"fmt"
	"math"
	"time"

	"pvqc/domain/analysis"
	"pvqc/domain/core"
	"pvqc/domain/protocol"
	"pvqc/domain/run"
	"pvqc/internal"

	"golang.org/x/sync/semaphore"
)

const (
	// selectionEpsilon is the R-squared band within which the simpler model
	// wins, guarding sparse sweeps against overfitting
	selectionEpsilon = 0.001

	DefaultWorkers             = 4
	DefaultPerCandidateTimeout = 5 * time.Second
)

// Engine estimates every candidate model declared by a protocol in parallel
// and selects the winner by R-squared. Each candidate runs under its own
// wall-clock deadline so one slow solve cannot starve the rest.
type Engine struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *internal.Logger
}

// NewEngine creates a fit engine with a bounded worker pool
func NewEngine(workers int, perCandidateTimeout time.Duration) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if perCandidateTimeout <= 0 {
		perCandidateTimeout = DefaultPerCandidateTimeout
	}
	return &Engine{
		sem:     semaphore.NewWeighted(int64(workers)),
		timeout: perCandidateTimeout,
		logger:  internal.DefaultLogger.Prefixed("fitter"),
	}
}

type candidateOutcome struct {
	index      int
	name       protocol.ModelName
	paramCount int
	params     map[string]float64
	r2         float64
	predicted  []float64
	err        error
	timedOut   bool
}

// Fit runs the candidate battery over the usable series and merges the
// outcomes deterministically. Temporal runs additionally carry the
// stabilization scan, which is independent of whether any model converged.
// A definition with no candidate models yields an empty result.
func (e *Engine) Fit(ctx context.Context, series run.MeasurementSeries, def *protocol.Definition) analysis.ModelFitResult {
	x, y := responsePairs(series, def)

	if len(def.CandidateModels) == 0 {
		result := analysis.ModelFitResult{}
		e.attachStabilization(&result, def, x, y)
		return result
	}

	if len(x) < 3 {
		e.logger.Debug("Fit skipped: %d usable response pairs", len(x))
		result := analysis.NewNoFit(analysis.NoFitInsufficientData)
		e.attachStabilization(&result, def, x, y)
		return result
	}

	outcomes := e.runCandidates(ctx, def.CandidateModels, x, y)

	best := selectBest(outcomes)
	if best == nil {
		reason := analysis.NoFitSingular
		for _, c := range outcomes {
			if c.timedOut {
				reason = analysis.NoFitTimeout
				break
			}
		}
		for _, c := range outcomes {
			e.logger.Debug("Candidate %s failed: %v", c.name, c.err)
		}
		result := analysis.NewNoFit(reason)
		e.attachStabilization(&result, def, x, y)
		return result
	}

	e.logger.Info("Selected %s (R²=%.4f) from %d candidates", best.name, best.r2, len(outcomes))
	result := analysis.NewFit(best.name, best.params, best.r2, fitDiagnostics(y, best.predicted, best.paramCount))
	e.attachStabilization(&result, def, x, y)
	return result
}

// runCandidates estimates every declared model concurrently under the
// weighted semaphore, collecting outcomes by declaration index
func (e *Engine) runCandidates(ctx context.Context, specs []protocol.ModelSpec, x, y []float64) []candidateOutcome {
	outcomes := make([]candidateOutcome, len(specs))
	resultChan := make(chan candidateOutcome, len(specs))

	for i, spec := range specs {
		go func(idx int, spec protocol.ModelSpec) {
			outcome := candidateOutcome{index: idx, name: spec.Name, paramCount: len(spec.Params)}

			candCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			if err := e.sem.Acquire(candCtx, 1); err != nil {
				outcome.timedOut = true
				outcome.err = fmt.Errorf("%w: %s: %v", core.ErrFitTimeout, spec.Name, err)
				resultChan <- outcome
				return
			}
			defer e.sem.Release(1)

			resultChan <- e.estimateCandidate(candCtx, spec, x, y, outcome)
		}(i, spec)
	}

	for range specs {
		o := <-resultChan
		outcomes[o.index] = o
	}
	return outcomes
}

// estimateCandidate runs one model's solve with the candidate deadline. The
// solve itself is CPU-bound and unaware of the context, so it runs in its
// own goroutine and the deadline is enforced on the select.
func (e *Engine) estimateCandidate(ctx context.Context, spec protocol.ModelSpec, x, y []float64, outcome candidateOutcome) candidateOutcome {
	model, err := modelFor(spec)
	if err != nil {
		outcome.err = err
		return outcome
	}

	type estimate struct {
		params map[string]float64
		err    error
	}
	done := make(chan estimate, 1)
	go func() {
		params, err := model.Estimate(x, y, spec)
		done <- estimate{params: params, err: err}
	}()

	select {
	case <-ctx.Done():
		outcome.timedOut = true
		outcome.err = fmt.Errorf("%w: %s: %v", core.ErrFitTimeout, spec.Name, ctx.Err())
		return outcome
	case est := <-done:
		if est.err != nil {
			outcome.err = est.err
			return outcome
		}
		predicted := make([]float64, len(x))
		for i := range x {
			predicted[i] = model.Predict(est.params, x[i])
		}
		r2, err := rSquared(y, predicted)
		if err != nil {
			outcome.err = err
			return outcome
		}
		outcome.params = est.params
		outcome.r2 = r2
		outcome.predicted = predicted
		return outcome
	}
}

// selectBest applies the selection rule over declaration order: highest
// R-squared wins, and within selectionEpsilon the model with fewer free
// parameters takes precedence
func selectBest(outcomes []candidateOutcome) *candidateOutcome {
	var best *candidateOutcome
	for i := range outcomes {
		c := &outcomes[i]
		if c.err != nil || c.params == nil {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		switch {
		case c.r2-best.r2 >= selectionEpsilon:
			best = c
		case math.Abs(c.r2-best.r2) < selectionEpsilon && c.paramCount < best.paramCount:
			best = c
		}
	}
	return best
}

// responsePairs extracts the (independent, response) pairs the models fit.
// Points missing the response reading are skipped. Temporal responses are
// normalized to percent of the first reading so protocol parameter bounds
// stay module-agnostic and the stabilization scan sees the normalized-power
// sequence.
func responsePairs(series run.MeasurementSeries, def *protocol.Definition) (x, y []float64) {
	field := def.ResponseField()
	if field == "" {
		return nil, nil
	}

	x = make([]float64, 0, series.Len())
	y = make([]float64, 0, series.Len())
	for _, p := range series.Points {
		v, ok := p.Readings[field]
		if !ok {
			continue
		}
		x = append(x, p.Independent)
		y = append(y, v)
	}

	if def.Category == protocol.CategoryTemporal && len(y) > 0 && y[0] != 0 {
		initial := y[0]
		for i := range y {
			y[i] = y[i] / initial * 100
		}
	}
	return x, y
}

func (e *Engine) attachStabilization(result *analysis.ModelFitResult, def *protocol.Definition, x, y []float64) {
	if def.Category != protocol.CategoryTemporal {
		return
	}
	stab := DetectStabilization(y, x, def.StabilizationOrDefault())
	result.Stabilization = &stab
}
