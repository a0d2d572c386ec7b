package analysis

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/insight-api/internal/model"
	"github.com/sells-group/insight-api/internal/store"
)

// webAnalyzer, directAnswerer, and visualizer are the orchestrator's
// views of the pipeline stages, kept narrow for testing.
type webAnalyzer interface {
	Collect(ctx context.Context, question string) model.WebAnalysis
}

type directAnswerer interface {
	Collect(ctx context.Context, question string) model.DirectAnswer
}

type visualizer interface {
	Synthesize(ctx context.Context, web model.WebAnalysis) model.Visualization
}

type resultProcessor interface {
	Process(web model.WebAnalysis, direct model.DirectAnswer) (model.WebAnalysis, model.DirectAnswer)
}

// Orchestrator drives a job through the full pipeline, committing every
// stage transition to the store so pollers observe progress.
type Orchestrator struct {
	store     store.Store
	web       webAnalyzer
	direct    directAnswerer
	processor resultProcessor
	synth     visualizer
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(st store.Store, web webAnalyzer, direct directAnswerer, processor resultProcessor, synth visualizer) *Orchestrator {
	return &Orchestrator{store: st, web: web, direct: direct, processor: processor, synth: synth}
}

// Run executes the pipeline for a queued job. It never returns an error:
// any failure is committed to the job record as an ERROR state. Intended
// to run in its own goroutine per job.
func (o *Orchestrator) Run(ctx context.Context, jobID string) {
	log := zap.L().With(zap.String("job_id", jobID))
	if err := o.run(ctx, jobID, log); err != nil {
		log.Error("analysis failed", zap.Error(err))
		// The flat message becomes the user-visible error text. Stack
		// traces stay in the log line above.
		if saveErr := o.store.SaveError(ctx, jobID, "Analysis failed: "+err.Error()); saveErr != nil {
			// The job record may be gone entirely; nothing left to update.
			log.Error("could not persist error state", zap.Error(saveErr))
		}
	}
}

func (o *Orchestrator) run(ctx context.Context, jobID string, log *zap.Logger) error {
	if err := o.setStatus(ctx, jobID, model.JobStatusProcessing, 10, "Fetching research question"); err != nil {
		return err
	}

	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return eris.Wrap(err, "load job")
	}
	question := job.Question

	if err := o.setStatus(ctx, jobID, model.JobStatusProcessing, 20, "Starting parallel data gathering"); err != nil {
		return err
	}

	// Both collectors absorb their own failures and return fallback
	// results, so the group only surfaces a programming error.
	var (
		web    model.WebAnalysis
		direct model.DirectAnswer
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		web = o.web.Collect(gCtx, question)
		return nil
	})
	g.Go(func() error {
		direct = o.direct.Collect(gCtx, question)
		return nil
	})
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "gather")
	}

	if err := o.setStatus(ctx, jobID, model.JobStatusProcessing, 50, "Processing analysis results"); err != nil {
		return err
	}
	web, direct = o.processor.Process(web, direct)

	if err := o.setStatus(ctx, jobID, model.JobStatusSynthesizing, 75, "Synthesizing final report and visualization"); err != nil {
		return err
	}

	var viz model.Visualization
	if web.Failed {
		log.Info("web analysis unavailable, ranking from direct answer",
			zap.Int("brands", len(direct.Brands)))
		viz = VisualizationFromBrands(direct.Brands)
	} else {
		viz = o.synth.Synthesize(ctx, web)
	}

	report := &model.FinalReport{
		JobID:         jobID,
		Question:      question,
		CompletedAt:   reportTimestamp(),
		WebResults:    web,
		DirectAnswer:  direct,
		Visualization: viz,
	}

	if err := o.store.SaveResult(ctx, jobID, report); err != nil {
		return eris.Wrap(err, "save result")
	}

	log.Info("analysis complete",
		zap.Bool("web_failed", web.Failed),
		zap.Int("brands_ranked", len(viz.BrandScores)),
	)
	return nil
}

func (o *Orchestrator) setStatus(ctx context.Context, jobID string, status model.JobStatus, progress int, step string) error {
	if err := o.store.SetStatus(ctx, jobID, status, progress, step); err != nil {
		return eris.Wrapf(err, "set status %s/%d", status, progress)
	}
	return nil
}
