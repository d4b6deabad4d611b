package testkit

import (
	"pvqc/app"
	"pvqc/internal/fitting"
	"pvqc/internal/registry"
)

// TestKit bundles the in-memory collaborators the test suites wire against:
// a run store, a protocol source preloaded with the three reference
// protocols, a fake defect scorer and a seeded series generator.
type TestKit struct {
	Store  *InMemoryRunStore
	Source *StaticProtocolSource
	Scorer *FakeScorer
	Gen    *SeriesGenerator
}

// NewTestKit creates a kit with the reference protocols loaded and a fixed
// generator seed
func NewTestKit() *TestKit {
	return &TestKit{
		Store:  NewInMemoryRunStore(),
		Source: NewStaticProtocolSource(IAMDefinition(), LeTIDDefinition(), BifacialDefinition()),
		Scorer: NewFakeScorer(),
		Gen:    NewSeriesGenerator(42),
	}
}

// Registry returns a fresh registry over the kit's protocol source
func (k *TestKit) Registry() *registry.Registry {
	return registry.New(k.Source)
}

// Services wires the full pipeline over the kit's doubles
func (k *TestKit) Services() (*app.RunService, *app.AnalysisService) {
	analysisService := app.NewAnalysisService(k.Registry(), fitting.NewEngine(0, 0), k.Scorer)
	runService := app.NewRunService(k.Store, analysisService, nil)
	return runService, analysisService
}
