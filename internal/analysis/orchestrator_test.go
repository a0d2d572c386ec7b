package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insight-api/internal/model"
	"github.com/sells-group/insight-api/internal/store"
)

type stubWeb struct {
	result model.WebAnalysis
}

func (s stubWeb) Collect(context.Context, string) model.WebAnalysis { return s.result }

type stubDirect struct {
	result model.DirectAnswer
}

func (s stubDirect) Collect(context.Context, string) model.DirectAnswer { return s.result }

type stubSynth struct {
	result model.Visualization
	called bool
}

func (s *stubSynth) Synthesize(context.Context, model.WebAnalysis) model.Visualization {
	s.called = true
	return s.result
}

// failingSaveStore wraps a store and fails SaveResult, forcing the error
// path after a successful pipeline run.
type failingSaveStore struct {
	store.Store
}

func (f *failingSaveStore) SaveResult(context.Context, string, *model.FinalReport) error {
	return errors.New("disk full")
}

func newTestOrchestrator(st store.Store, web model.WebAnalysis, direct model.DirectAnswer, synth *stubSynth) *Orchestrator {
	return NewOrchestrator(st, stubWeb{web}, stubDirect{direct}, NewProcessor(), synth)
}

func successfulWeb() model.WebAnalysis {
	return model.WebAnalysis{
		Source:     model.WebSourceSERP,
		Content:    "analysis of the market",
		Timestamp:  time.Now().UTC(),
		Confidence: 0.8,
	}
}

func TestOrchestratorRunSuccess(t *testing.T) {
	st := store.NewMemory(time.Hour)
	job, err := st.CreateJob(context.Background(), "What are the best CRM tools for startups?")
	require.NoError(t, err)

	synth := &stubSynth{result: VisualizationFromBrands([]string{"Salesforce", "HubSpot"})}
	o := newTestOrchestrator(st, successfulWeb(), model.DirectAnswer{
		Response: "direct answer",
		Brands:   []string{"Salesforce", "HubSpot"},
	}, synth)

	o.Run(context.Background(), job.ID)

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusComplete, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "Finished", got.CurrentStep)
	assert.True(t, synth.called)

	require.NotNil(t, got.Result)
	assert.Equal(t, job.ID, got.Result.JobID)
	assert.Equal(t, "What are the best CRM tools for startups?", got.Result.Question)
	assert.Equal(t, model.WebSourceSERP, got.Result.WebResults.Source)
	assert.True(t, got.Result.Visualization.Validate())
	assert.False(t, got.Result.CompletedAt.IsZero())
}

func TestOrchestratorWebFailureRanksFromDirectAnswer(t *testing.T) {
	st := store.NewMemory(time.Hour)
	job, err := st.CreateJob(context.Background(), "What are the best CRM tools for startups?")
	require.NoError(t, err)

	synth := &stubSynth{}
	o := newTestOrchestrator(st, model.WebAnalysis{
		Source: model.WebSourceFallback,
		Failed: true,
	}, model.DirectAnswer{
		Response: "direct answer",
		Brands:   []string{"Salesforce", "HubSpot", "Pipedrive"},
	}, synth)

	o.Run(context.Background(), job.ID)

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusComplete, got.Status)

	// The synthesizer is bypassed; ranking comes from the direct answer.
	assert.False(t, synth.called)
	require.NotNil(t, got.Result)
	assert.Equal(t, []string{"Salesforce", "HubSpot", "Pipedrive"}, got.Result.Visualization.TopBrands)
	assert.Equal(t, 100, got.Result.Visualization.BrandScores[0].VisibilityScore)
}

func TestOrchestratorWebFailureNoBrands(t *testing.T) {
	st := store.NewMemory(time.Hour)
	job, err := st.CreateJob(context.Background(), "What are the best CRM tools for startups?")
	require.NoError(t, err)

	o := newTestOrchestrator(st, model.WebAnalysis{Failed: true}, model.DirectAnswer{
		Response: directFallbackText,
		Brands:   []string{},
	}, &stubSynth{})

	o.Run(context.Background(), job.ID)

	got, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusComplete, got.Status)
	assert.Equal(t, []string{"No brands identified"}, got.Result.Visualization.TopBrands)
}

func TestOrchestratorPersistsErrorState(t *testing.T) {
	mem := store.NewMemory(time.Hour)
	job, err := mem.CreateJob(context.Background(), "What are the best CRM tools for startups?")
	require.NoError(t, err)

	st := &failingSaveStore{Store: mem}
	o := newTestOrchestrator(st, successfulWeb(), model.DirectAnswer{Brands: []string{}}, &stubSynth{result: VisualizationFromBrands([]string{"A"})})

	o.Run(context.Background(), job.ID)

	got, err := mem.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusError, got.Status)
	assert.Equal(t, "Error", got.CurrentStep)
	assert.Contains(t, got.ErrorMessage, "Analysis failed")
	assert.Contains(t, got.ErrorMessage, "disk full")
	assert.Nil(t, got.Result)
}

func TestOrchestratorMissingJob(t *testing.T) {
	st := store.NewMemory(time.Hour)
	o := newTestOrchestrator(st, successfulWeb(), model.DirectAnswer{}, &stubSynth{})

	// Must not panic; there is no row to update.
	o.Run(context.Background(), "no-such-job")

	jobs, err := st.ListJobs(context.Background(), store.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
