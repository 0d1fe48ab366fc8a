// Package inference defines the model collaborators used by the session
// pipeline and the registry that owns their long-lived instances.
package inference

import (
	"context"
	"errors"
	"image"
	"io"
)

var (
	ErrInference     = errors.New("inference failed")
	ErrTranscription = errors.New("transcription failed")
)

// PoseEstimator runs batched pose inference. It returns exactly one
// detection per input image, in input order.
type PoseEstimator interface {
	Infer(ctx context.Context, frames []image.Image) ([]PersonDetection, error)
}

// AudioExtractor writes a mono 16 kHz 16-bit PCM track of in to out.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, in, out string) error
}

// SpeechRecognizer transcribes an audio file. Silent or empty audio yields
// an empty-text transcript rather than an error.
type SpeechRecognizer interface {
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
	Error    string    `json:"error,omitempty"`
}

// FailedTranscript is the degraded transcript reported when transcription
// could not run.
func FailedTranscript(err error) Transcript {
	return Transcript{Text: "", Segments: []Segment{}, Error: err.Error()}
}

// Registry holds the process-wide model instances. It is built once at
// startup and handed to everything that runs inference.
type Registry struct {
	pose       PoseEstimator
	extractor  AudioExtractor
	recognizer SpeechRecognizer
}

func NewRegistry(pose PoseEstimator, extractor AudioExtractor, recognizer SpeechRecognizer) *Registry {
	return &Registry{pose: pose, extractor: extractor, recognizer: recognizer}
}

func (r *Registry) Pose() PoseEstimator { return r.pose }

func (r *Registry) Extractor() AudioExtractor { return r.extractor }

func (r *Registry) Recognizer() SpeechRecognizer { return r.recognizer }

// Close releases every member that holds resources.
func (r *Registry) Close() error {
	var errs []error
	for _, m := range []any{r.pose, r.extractor, r.recognizer} {
		if c, ok := m.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
