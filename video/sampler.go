// Package video samples frames from a decoded stream and runs them through
// the pose model and metric engine.
package video

import (
	"errors"
	"fmt"
	"image"
	"io"

	"golang.org/x/image/draw"
)

// Sampling policy. These are fixed, not per-request.
const (
	Stride    = 5
	BatchSize = 16
	InputSize = 416
)

var ErrDecode = errors.New("video decode failed")

// Decoder yields the frames of one video in order. Next returns io.EOF
// after the last frame.
type Decoder interface {
	FPS() float64
	Next() (image.Image, error)
	Close() error
}

// Skipper is implemented by decoders that can advance past a frame more
// cheaply than decoding it into an image.
type Skipper interface {
	Skip() error
}

// Frame is one sampled frame. Input is Image resized for inference.
type Frame struct {
	Index     int
	Timestamp float64
	Image     image.Image
	Input     *image.RGBA
}

// Sampler walks a Decoder once, keeping every Stride-th frame and grouping
// the kept frames into batches of BatchSize.
type Sampler struct {
	dec  Decoder
	fps  float64
	next int
	done bool
}

func NewSampler(dec Decoder) (*Sampler, error) {
	fps := dec.FPS()
	if fps <= 0 {
		return nil, fmt.Errorf("%w: invalid frame rate %v", ErrDecode, fps)
	}
	return &Sampler{dec: dec, fps: fps}, nil
}

// NextBatch returns the next batch of sampled frames. The final batch may
// be shorter than BatchSize; after it NextBatch returns io.EOF.
func (s *Sampler) NextBatch() ([]Frame, error) {
	if s.done {
		return nil, io.EOF
	}
	batch := make([]Frame, 0, BatchSize)
	skipper, canSkip := s.dec.(Skipper)
	for len(batch) < BatchSize {
		idx := s.next
		var (
			img image.Image
			err error
		)
		if idx%Stride != 0 && canSkip {
			err = skipper.Skip()
		} else {
			img, err = s.dec.Next()
		}
		if errors.Is(err, io.EOF) {
			s.done = true
			break
		}
		if err != nil {
			s.done = true
			return nil, fmt.Errorf("%w: frame %d: %v", ErrDecode, idx, err)
		}
		s.next++
		if idx%Stride != 0 {
			continue
		}
		batch = append(batch, Frame{
			Index:     idx,
			Timestamp: float64(idx) / s.fps,
			Image:     img,
			Input:     resize(img, InputSize),
		})
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}

func resize(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
