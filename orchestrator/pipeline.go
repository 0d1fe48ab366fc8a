package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/session-analysis/clients"
	cfg "github.com/maastricht-university/session-analysis/config"
	"github.com/maastricht-university/session-analysis/inference"
	"github.com/maastricht-university/session-analysis/media"
	"github.com/maastricht-university/session-analysis/metrics"
	"github.com/maastricht-university/session-analysis/video"
)

// DecoderOpener opens the frame stream of a staged video file.
type DecoderOpener func(ctx context.Context, path string) (video.Decoder, error)

// Recorder receives job lifecycle events. Recorder failures are logged and
// never affect the job.
type Recorder interface {
	Started(ctx context.Context, job *MediaJob) error
	StageChanged(ctx context.Context, jobID string, stage Stage) error
	Completed(ctx context.Context, jobID string, res *Result) error
	Failed(ctx context.Context, jobID string, stage Stage, err error) error
}

type Pipeline struct {
	cfg      *cfg.Root
	http     *clients.HTTP
	models   *inference.Registry
	pool     *Pool
	open     DecoderOpener
	recorder Recorder
	log      logrus.FieldLogger
}

type Option func(*Pipeline)

func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = l }
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

func WithDecoderOpener(o DecoderOpener) Option {
	return func(p *Pipeline) { p.open = o }
}

func WithHTTP(h *clients.HTTP) Option {
	return func(p *Pipeline) { p.http = h }
}

func NewPipeline(c *cfg.Root, models *inference.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    c,
		http:   clients.NewHTTP(cfg.DurSeconds(c.Services.TimeoutSeconds)),
		models: models,
		log:    logrus.StandardLogger(),
	}
	tools := media.Tools{FFmpeg: c.Media.FFmpeg, FFprobe: c.Media.FFprobe}
	p.open = func(ctx context.Context, path string) (video.Decoder, error) {
		return media.OpenDecoder(ctx, tools, path)
	}
	for _, o := range opts {
		o(p)
	}
	workers := c.Pipeline.Workers
	if workers < 2 {
		workers = 2
	}
	p.pool = NewPool(workers)
	return p
}

// Close waits for branch tasks still running on the worker pool.
func (p *Pipeline) Close() { p.pool.Stop() }

// Run resolves target through its metadata document and analyses the media.
func (p *Pipeline) Run(ctx context.Context, target string) (*Result, error) {
	return p.Execute(ctx, NewURLJob(target))
}

// StageUpload copies an uploaded stream to temporary storage and returns a
// job ready for Execute. The caller must Execute or Discard the job so the
// file is removed.
func (p *Pipeline) StageUpload(ctx context.Context, name, contentType string, r io.Reader) (*MediaJob, error) {
	job := newJob(SourceUpload, name)
	ext := strings.ToLower(filepath.Ext(name))
	if contentType == "" || contentType == "application/octet-stream" {
		if guessed := mime.TypeByExtension(ext); guessed != "" {
			contentType = guessed
		}
	}
	if ext == "" {
		ext = clients.ExtensionFor(contentType)
	}
	job.Stage = StageDownloading
	path, err := clients.SaveTemp(p.tempDir(), ext, r)
	if err != nil {
		return nil, &StageError{JobID: job.ID, Target: name, Stage: StageDownloading, Err: fmt.Errorf("%w: %v", ErrDownload, err)}
	}
	job.Path, job.ContentType = path, contentType
	p.log.WithFields(logrus.Fields{"job": job.ID, "target": name, "path": path}).Info("upload staged")
	return job, nil
}

// Discard removes the files of a staged job that will not be executed.
func (p *Pipeline) Discard(job *MediaJob) {
	p.cleanup(job, p.log.WithFields(logrus.Fields{"job": job.ID, "target": job.Target}))
}

// Execute drives job through every remaining stage. Staged and derived files
// are removed whatever the outcome.
func (p *Pipeline) Execute(ctx context.Context, job *MediaJob) (res *Result, err error) {
	log := p.log.WithFields(logrus.Fields{"job": job.ID, "target": job.Target})
	p.record(log, func(r Recorder) error { return r.Started(ctx, job) })

	defer func() {
		// The outcome is recorded even when ctx was cancelled.
		rctx := context.WithoutCancel(ctx)
		p.setStage(rctx, job, StageCleanup, log)
		p.cleanup(job, log)
		if err != nil {
			se := p.stageError(job, err)
			err = se
			job.Stage = StageFailed
			log.WithField("stage", se.Stage).WithError(se.Err).Error("job failed")
			p.record(log, func(r Recorder) error { return r.Failed(rctx, job.ID, se.Stage, se.Err) })
			return
		}
		job.Stage = StageDone
		p.record(log, func(r Recorder) error { return r.Completed(rctx, job.ID, res) })
	}()

	if job.Path == "" {
		if job.MediaURL == "" {
			p.setStage(ctx, job, StageResolving, log)
			mediaURL, err := p.resolve(ctx, job.Target)
			if err != nil {
				return nil, err
			}
			job.MediaURL = mediaURL
			log.WithField("media_url", mediaURL).Info("media resolved")
		}

		p.setStage(ctx, job, StageDownloading, log)
		path, ct, err := p.http.Download(ctx, job.MediaURL, p.tempDir())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDownload, err)
		}
		job.Path, job.ContentType = path, ct
		log.WithFields(logrus.Fields{"path": path, "content_type": ct}).Info("media downloaded")
	}

	res = p.analyze(ctx, job, log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.persist(job, res, log)
	p.report(ctx, job, res, log)
	log.WithField("overall_score", res.SessionAnalysis.OverallScore).Info("analysis complete")
	return res, nil
}

func (p *Pipeline) resolve(ctx context.Context, target string) (string, error) {
	meta, err := p.http.FetchMetadata(ctx, target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResolution, err)
	}
	loc, ok := meta.MediaLocator()
	if !ok {
		return "", fmt.Errorf("%w: none of %s present", ErrResolution, strings.Join(clients.LocatorFields, ", "))
	}
	return loc, nil
}

// analyze runs transcription and, for video, the metric pass concurrently.
// Failures in either branch degrade that branch only.
func (p *Pipeline) analyze(ctx context.Context, job *MediaJob, log logrus.FieldLogger) *Result {
	isVideo := job.IsVideo()
	var extractErr error

	if isVideo {
		p.setStage(ctx, job, StageExtractingAudio, log)
		job.AudioPath = audioSibling(job.Path)
		if err := p.models.Extractor().ExtractAudio(ctx, job.Path, job.AudioPath); err != nil {
			extractErr = fmt.Errorf("%w: audio extraction: %v", inference.ErrTranscription, err)
			log.WithError(err).Warn("audio extraction failed")
		}
	} else {
		job.AudioPath = job.Path
	}

	p.setStage(ctx, job, StageAnalyzing, log)
	var (
		wg         sync.WaitGroup
		transcript inference.Transcript
		frames     []metrics.FrameMetrics
		videoErr   error
	)
	branches := []func(){func() {
		defer wg.Done()
		transcript = p.transcribe(ctx, job.AudioPath, extractErr, log)
	}}
	if isVideo {
		branches = append(branches, func() {
			defer wg.Done()
			videoErr = guard("video analysis", func() error {
				var err error
				frames, err = p.analyzeVideo(ctx, job.Path, log)
				return err
			})
		})
	} else {
		log.Info("audio-only input, skipping video analysis")
	}
	wg.Add(len(branches))
	if err := p.pool.Run(ctx, branches...); err != nil {
		transcript = inference.FailedTranscript(err)
		videoErr = err
	} else {
		wg.Wait()
	}

	p.setStage(ctx, job, StageAggregating, log)
	res := &Result{
		JobID:              job.ID,
		MediaURL:           job.MediaURL,
		ContentType:        job.ContentType,
		AudioTranscription: transcript,
		Frames:             frames,
	}
	switch {
	case !isVideo:
		res.SessionScore = metrics.EmptyScore(metrics.NoteNoVideo)
	case videoErr != nil:
		log.WithError(videoErr).Warn("video analysis failed")
		res.SessionScore = metrics.EmptyScore("Video analysis failed; no frames analyzed.")
		res.VideoError = videoErr.Error()
	default:
		res.SessionScore = metrics.Aggregate(frames)
	}
	return res
}

func (p *Pipeline) transcribe(ctx context.Context, audioPath string, extractErr error, log logrus.FieldLogger) inference.Transcript {
	if extractErr != nil {
		return inference.FailedTranscript(extractErr)
	}
	var tr inference.Transcript
	err := guard("transcription", func() error {
		var err error
		tr, err = p.models.Recognizer().Transcribe(ctx, audioPath)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("transcription failed")
		return inference.FailedTranscript(err)
	}
	if tr.Segments == nil {
		tr.Segments = []inference.Segment{}
	}
	return tr
}

func (p *Pipeline) analyzeVideo(ctx context.Context, path string, log logrus.FieldLogger) ([]metrics.FrameMetrics, error) {
	dec, err := p.open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", video.ErrDecode, err)
	}
	defer dec.Close()

	engine := metrics.NewEngine(metrics.NewHistory(metrics.HistorySize))
	frames, err := video.Analyze(ctx, dec, p.models.Pose(), engine, log)
	if err != nil {
		return nil, err
	}
	log.WithField("frames", len(frames)).Info("video analysis complete")
	return frames, nil
}

func (p *Pipeline) setStage(ctx context.Context, job *MediaJob, s Stage, log logrus.FieldLogger) {
	job.Stage = s
	log.WithField("stage", s).Debug("stage")
	p.record(log, func(r Recorder) error { return r.StageChanged(ctx, job.ID, s) })
}

func (p *Pipeline) record(log logrus.FieldLogger, fn func(Recorder) error) {
	if p.recorder == nil {
		return
	}
	if err := fn(p.recorder); err != nil {
		log.WithError(err).Warn("job record not updated")
	}
}

// stageError attaches the failing stage to err. Cleanup has already moved
// the job on, so the stage comes from the sentinel when possible.
func (p *Pipeline) stageError(job *MediaJob, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	stage := StageAnalyzing
	switch {
	case errors.Is(err, ErrResolution):
		stage = StageResolving
	case errors.Is(err, ErrDownload):
		stage = StageDownloading
	}
	return &StageError{JobID: job.ID, Target: job.Target, Stage: stage, Err: err}
}

func (p *Pipeline) tempDir() string {
	if p.cfg.Paths.Temp != "" {
		return p.cfg.Paths.Temp
	}
	return filepath.Join(".", "tmp")
}

// audioSibling is the derived audio path next to a staged media file.
func audioSibling(path string) string {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if out := stem + ".wav"; out != path {
		return out
	}
	return stem + ".audio.wav"
}

// guard runs fn, turning a panic into an error.
func guard(task string, fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = PanicError{Task: task, Value: v}
		}
	}()
	return fn()
}
