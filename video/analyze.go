package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/session-analysis/inference"
	"github.com/maastricht-university/session-analysis/metrics"
)

// Analyze runs every sampled frame of dec through the pose model and the
// metric engine. Metrics are returned in frame order.
func Analyze(ctx context.Context, dec Decoder, pose inference.PoseEstimator, engine *metrics.Engine, log logrus.FieldLogger) ([]metrics.FrameMetrics, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	sampler, err := NewSampler(dec)
	if err != nil {
		return nil, err
	}

	var out []metrics.FrameMetrics
	for batchNo := 0; ; batchNo++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		batch, err := sampler.NextBatch()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, err
		}

		inputs := make([]image.Image, len(batch))
		for i, f := range batch {
			inputs[i] = f.Input
		}
		dets, err := pose.Infer(ctx, inputs)
		if err != nil {
			if errors.Is(err, inference.ErrInference) {
				return out, err
			}
			return out, fmt.Errorf("%w: batch %d: %v", inference.ErrInference, batchNo, err)
		}
		if len(dets) != len(batch) {
			return out, fmt.Errorf("%w: batch %d: got %d results for %d frames", inference.ErrInference, batchNo, len(dets), len(batch))
		}

		for i, f := range batch {
			out = append(out, engine.Frame(f.Index, f.Timestamp, dets[i]))
		}
		log.WithFields(logrus.Fields{"batch": batchNo, "frames": len(batch)}).Debug("batch scored")
	}
	return out, nil
}
