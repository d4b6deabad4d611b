package app

import (
	"context"

	"pvqc/domain/analysis"
	"pvqc/domain/core"
	"pvqc/domain/run"
	"pvqc/internal"
	"pvqc/internal/errors"
	"pvqc/internal/validation"
	"pvqc/ports"
)

// RunService owns the test-run lifecycle: creation, measurement intake,
// validation submission, analysis and publication. Every operation loads the
// run, applies one transition and saves it back; the store is the single
// source of truth between operations.
type RunService struct {
	store    ports.RunStore
	analysis *AnalysisService
	reader   ports.SeriesReader
	logger   *internal.Logger
}

// NewRunService creates the lifecycle service. reader may be nil when file
// ingestion is not wired.
func NewRunService(store ports.RunStore, analysisService *AnalysisService, reader ports.SeriesReader) *RunService {
	return &RunService{
		store:    store,
		analysis: analysisService,
		reader:   reader,
		logger:   internal.DefaultLogger.Prefixed("runs"),
	}
}

// CreateRun registers a draft run after confirming the protocol resolves
func (s *RunService) CreateRun(ctx context.Context, protocolID core.ProtocolID, version string, sampleID core.SampleID) (*run.TestRun, error) {
	if _, err := s.analysis.Definition(ctx, protocolID, version); err != nil {
		return nil, err
	}
	r, err := run.NewTestRun(protocolID, version, sampleID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, r); err != nil {
		return nil, errors.Wrapf(err, "saving run %s", r.ID)
	}
	s.logger.Info("Created run %s (protocol=%s@%s, sample=%s)", r.ID, protocolID, version, sampleID)
	return r, nil
}

// Get loads a run by ID
func (s *RunService) Get(ctx context.Context, id core.RunID) (*run.TestRun, error) {
	return s.store.Load(ctx, id)
}

// AttachSeries adds measurement data to a draft or data-entry run
func (s *RunService) AttachSeries(ctx context.Context, id core.RunID, series run.MeasurementSeries) (*run.TestRun, error) {
	r, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.AttachSeries(series); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, r); err != nil {
		return nil, errors.Wrapf(err, "saving run %s", id)
	}
	return r, nil
}

// ImportSeries reads measurements from a bench export file and attaches them
func (s *RunService) ImportSeries(ctx context.Context, id core.RunID, path string) (*run.TestRun, error) {
	if s.reader == nil {
		return nil, errors.InvalidInput("no series reader configured")
	}
	series, err := s.reader.Read(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading series from %s", path)
	}
	return s.AttachSeries(ctx, id, series)
}

// SubmitForValidation moves a data-entry run to validated. Data-level issues
// are recorded in the returned outcome and never block the transition; a
// configuration fault moves the run to error instead.
func (s *RunService) SubmitForValidation(ctx context.Context, id core.RunID) (validation.Outcome, error) {
	r, err := s.store.Load(ctx, id)
	if err != nil {
		return validation.Outcome{}, err
	}
	outcome, err := s.analysis.Validate(ctx, r)
	if err != nil {
		return validation.Outcome{}, s.failRun(ctx, r, err)
	}
	if err := r.Transition(run.StatusValidated); err != nil {
		return validation.Outcome{}, err
	}
	if err := s.store.Save(ctx, r); err != nil {
		return validation.Outcome{}, errors.Wrapf(err, "saving run %s", id)
	}
	s.logger.Info("Run %s validated (%d errors, %d warnings)",
		id, len(outcome.Report.Errors), len(outcome.Report.Warnings))
	return outcome, nil
}

// Analyze runs the pipeline on a validated run and records the result
func (s *RunService) Analyze(ctx context.Context, id core.RunID) (*analysis.Result, error) {
	r, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != run.StatusValidated {
		return nil, core.NewTransitionError(string(r.Status), string(run.StatusAnalyzed))
	}
	result, err := s.analysis.Analyze(ctx, r)
	if err != nil {
		return nil, s.failRun(ctx, r, err)
	}
	if err := r.Transition(run.StatusAnalyzed); err != nil {
		return nil, err
	}
	r.SetResult(result)
	if err := s.store.Save(ctx, r); err != nil {
		return nil, errors.Wrapf(err, "saving run %s", id)
	}
	s.logger.Info("Run %s analyzed: %s", id, result.OverallStatus)
	return result, nil
}

// AnalyzeBatch analyzes every validated run for the batch worker. Individual
// failures are logged and counted, never abort the sweep.
func (s *RunService) AnalyzeBatch(ctx context.Context) (analyzed, failed int, err error) {
	runs, err := s.store.ListByStatus(ctx, run.StatusValidated)
	if err != nil {
		return 0, 0, errors.Wrap(err, "listing validated runs")
	}
	for _, r := range runs {
		if ctx.Err() != nil {
			return analyzed, failed, ctx.Err()
		}
		if _, err := s.Analyze(ctx, r.ID); err != nil {
			s.logger.Error("Run %s analysis failed: %v", r.ID, err)
			failed++
			continue
		}
		analyzed++
	}
	return analyzed, failed, nil
}

// MarkReported publishes an analyzed run
func (s *RunService) MarkReported(ctx context.Context, id core.RunID) error {
	return s.transitionTo(ctx, id, run.StatusReported)
}

// Archive retires a reported run
func (s *RunService) Archive(ctx context.Context, id core.RunID) error {
	return s.transitionTo(ctx, id, run.StatusArchived)
}

// RevertToDraft returns a run to draft for correction, dropping analysis
// state while keeping measurements
func (s *RunService) RevertToDraft(ctx context.Context, id core.RunID) (*run.TestRun, error) {
	r, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.RevertToDraft(); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, r); err != nil {
		return nil, errors.Wrapf(err, "saving run %s", id)
	}
	s.logger.Info("Run %s reverted to draft", id)
	return r, nil
}

func (s *RunService) transitionTo(ctx context.Context, id core.RunID, to run.Status) error {
	r, err := s.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := r.Transition(to); err != nil {
		return err
	}
	if err := s.store.Save(ctx, r); err != nil {
		return errors.Wrapf(err, "saving run %s", id)
	}
	s.logger.Info("Run %s -> %s", id, to)
	return nil
}

// failRun records a configuration fault on the run when the fault class
// warrants it, then hands the original error back
func (s *RunService) failRun(ctx context.Context, r *run.TestRun, cause error) error {
	if !isConfigFault(cause) {
		return cause
	}
	if err := r.MarkError(cause.Error()); err != nil {
		s.logger.Error("Run %s: cannot record fault: %v", r.ID, err)
		return cause
	}
	if err := s.store.Save(ctx, r); err != nil {
		s.logger.Error("Run %s: saving error state failed: %v", r.ID, err)
	}
	return cause
}

func isConfigFault(err error) bool {
	return errors.IsConfigurationError(err) || core.IsConfigurationError(err)
}
