package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"podscrub/internal/config"
	"podscrub/internal/llm"
	"podscrub/internal/logging"
	"podscrub/internal/store"
)

// ErrCancelled aborts a run after a positive cancel check between stages.
var ErrCancelled = errors.New("processing cancelled")

// ProgressFunc reports a stage boundary: the 1-based step about to run, the
// total step count, the stage name, and overall percentage.
type ProgressFunc func(step, total int, name string, percent float64)

// Output is what a completed pipeline hands back to the scheduler.
type Output struct {
	ProcessedPath  string
	TranscriptPath string
	Segments       []llm.AdSegment
}

// Processor runs one job end to end. The cancelled callback is polled
// between stages; a positive check aborts with ErrCancelled.
type Processor interface {
	Process(ctx context.Context, job *store.ProcessingJob, post *store.Post, cancelled func() bool, progress ProgressFunc) (Output, error)
}

// SegmentDetector locates ad spans in a transcript. *llm.Client satisfies
// it.
type SegmentDetector interface {
	DetectAdSegments(ctx context.Context, transcript string) ([]llm.AdSegment, error)
}

// CommandRunner executes one external tool invocation.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// JobContext carries state across the stages of one run.
type JobContext struct {
	Job  *store.ProcessingJob
	Post *store.Post

	WorkDir        string
	SourcePath     string
	TranscriptPath string
	Segments       []llm.AdSegment
	OutputPath     string
	PublishedPath  string
}

type stage struct {
	name string
	run  func(ctx context.Context, jc *JobContext) error
}

// Pipeline is the concrete Processor: fetch, transcribe, detect, cut,
// publish, sharing one JobContext.
type Pipeline struct {
	cfg      *config.Config
	detector SegmentDetector
	logger   *slog.Logger
	runner   CommandRunner
	download *http.Client
	stages   []stage
}

// PipelineOption customizes a pipeline.
type PipelineOption func(*Pipeline)

// WithCommandRunner sets a custom command runner (for testing).
func WithCommandRunner(runner CommandRunner) PipelineOption {
	return func(p *Pipeline) {
		if runner != nil {
			p.runner = runner
		}
	}
}

// WithDownloadClient overrides the HTTP client used by the fetch stage.
func WithDownloadClient(client *http.Client) PipelineOption {
	return func(p *Pipeline) {
		if client != nil {
			p.download = client
		}
	}
}

// NewPipeline builds the standard five-stage pipeline.
func NewPipeline(cfg *config.Config, detector SegmentDetector, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	downloadTimeout := time.Duration(cfg.Processor.DownloadTimeoutSeconds) * time.Second
	if downloadTimeout <= 0 {
		downloadTimeout = 10 * time.Minute
	}
	p := &Pipeline{
		cfg:      cfg,
		detector: detector,
		logger:   logging.NewComponentLogger(logger, "processor"),
		runner:   runCommand,
		download: &http.Client{Timeout: downloadTimeout},
	}
	p.stages = []stage{
		{name: "fetch", run: p.stageFetch},
		{name: "transcribe", run: p.stageTranscribe},
		{name: "detect", run: p.stageDetect},
		{name: "cut", run: p.stageCut},
		{name: "publish", run: p.stagePublish},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs every stage in order. Between stages it checks the context
// and the cancel callback; either aborts the run without touching later
// stages.
func (p *Pipeline) Process(ctx context.Context, job *store.ProcessingJob, post *store.Post, cancelled func() bool, progress ProgressFunc) (Output, error) {
	if job == nil || post == nil {
		return Output{}, errors.New("processor: job and post required")
	}

	jc := &JobContext{
		Job:     job,
		Post:    post,
		WorkDir: filepath.Join(p.cfg.Paths.StagingDir, job.ID),
	}
	if err := os.MkdirAll(jc.WorkDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("processor: create workspace: %w", err)
	}

	total := len(p.stages)
	logger := p.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldPostGUID, post.GUID))

	for idx, st := range p.stages {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}
		if cancelled != nil && cancelled() {
			logger.Info("job cancelled before stage", logging.String(logging.FieldStep, st.name))
			return Output{}, ErrCancelled
		}

		step := idx + 1
		if progress != nil {
			progress(step, total, st.name, float64(idx)/float64(total)*100)
		}
		start := time.Now()
		logger.Info("stage started", logging.String(logging.FieldStep, st.name))
		if err := st.run(ctx, jc); err != nil {
			return Output{}, fmt.Errorf("stage %s: %w", st.name, err)
		}
		logger.Info("stage completed",
			logging.String(logging.FieldStep, st.name),
			logging.Duration("elapsed", time.Since(start)))
	}

	if progress != nil {
		progress(total, total, "completed", 100)
	}
	return Output{
		ProcessedPath:  jc.PublishedPath,
		TranscriptPath: jc.TranscriptPath,
		Segments:       jc.Segments,
	}, nil
}

// StageNames lists the pipeline's stages in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.name
	}
	return names
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
