package orchestrator

import (
	"strings"

	"github.com/google/uuid"

	"github.com/maastricht-university/session-analysis/inference"
	"github.com/maastricht-university/session-analysis/metrics"
)

type Stage string

const (
	StageQueued          Stage = "QUEUED"
	StageResolving       Stage = "RESOLVING"
	StageDownloading     Stage = "DOWNLOADING"
	StageExtractingAudio Stage = "EXTRACTING_AUDIO"
	StageAnalyzing       Stage = "ANALYZING"
	StageAggregating     Stage = "AGGREGATING"
	StageCleanup         Stage = "CLEANUP"
	StageDone            Stage = "DONE"
	StageFailed          Stage = "FAILED"
)

type Source int

const (
	// SourceMetadata is a URL returning a JSON document that names the media.
	SourceMetadata Source = iota
	// SourceMediaURL is a URL of the media itself.
	SourceMediaURL
	// SourceUpload is media already staged on local storage.
	SourceUpload
)

func (s Source) String() string {
	switch s {
	case SourceMetadata:
		return "metadata"
	case SourceMediaURL:
		return "media_url"
	case SourceUpload:
		return "upload"
	}
	return "unknown"
}

// MediaJob is one analysis request. Paths are filled in as the job runs and
// every file it names is removed when the job ends.
type MediaJob struct {
	ID          string
	Source      Source
	Target      string // metadata URL, media URL, or upload name
	MediaURL    string
	Path        string // staged media file
	ContentType string
	AudioPath   string // transcription input, equal to Path for audio input
	Stage       Stage
}

func newJob(src Source, target string) *MediaJob {
	return &MediaJob{ID: uuid.New().String(), Source: src, Target: target, Stage: StageQueued}
}

// NewURLJob creates a job resolved through a metadata document.
func NewURLJob(target string) *MediaJob { return newJob(SourceMetadata, target) }

// NewDirectJob creates a job that downloads mediaURL without resolution.
func NewDirectJob(mediaURL string) *MediaJob {
	j := newJob(SourceMediaURL, mediaURL)
	j.MediaURL = mediaURL
	return j
}

// IsVideo reports whether the media carries a video stream worth analysing.
func (j *MediaJob) IsVideo() bool {
	ct := strings.ToLower(j.ContentType)
	if strings.Contains(ct, "video") {
		return true
	}
	if strings.Contains(ct, "audio") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(j.Path), ".mp4")
}

// Result is the externally visible outcome of a session analysis.
type Result struct {
	JobID       string `json:"job_id"`
	MediaURL    string `json:"media_url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	metrics.SessionScore
	AudioTranscription inference.Transcript `json:"audio_transcription"`
	VideoError         string               `json:"video_error,omitempty"`

	Frames []metrics.FrameMetrics `json:"-"`
}
