package orchestrator

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/session-analysis/clients"
	"github.com/maastricht-university/session-analysis/metrics"
)

// report asks the visualization service for a radar of the session scores
// and a timeline of the per-frame metrics. It is skipped when no service is
// configured; failures are logged only.
func (p *Pipeline) report(ctx context.Context, job *MediaJob, res *Result, log logrus.FieldLogger) {
	url := p.cfg.Services.Visualization.URL
	if url == "" || res.SessionAnalysis.FramesAnalyzed == 0 {
		return
	}
	a := res.SessionAnalysis
	radar := clients.RadarReq{
		Categories: []string{"attention", "confidence", "posture", "engagement", "movement", "eye_contact"},
		Values:     []float64{a.AttentionScore, a.ConfidenceScore, a.PostureScore, a.EngagementScore, a.MovementStabilityScore, a.EyeContactQualityScore},
		SessionID:  job.ID,
		OutputDir:  p.cfg.Paths.Outputs,
	}
	if out, err := p.http.GenerateRadar(ctx, url, radar); err != nil {
		log.WithError(err).Warn("radar chart failed")
	} else {
		log.WithField("path", out.Path).Info("radar chart generated")
	}

	if out, err := p.http.GenerateTimeline(ctx, url, timeline(job.ID, p.cfg.Paths.Outputs, res.Frames)); err != nil {
		log.WithError(err).Warn("timeline failed")
	} else {
		log.WithField("path", out.Path).Info("timeline generated")
	}
}

func timeline(sessionID, outDir string, frames []metrics.FrameMetrics) clients.TimelineReq {
	req := clients.TimelineReq{
		SessionID:  sessionID,
		Timestamps: make([]float64, 0, len(frames)),
		Series:     map[string][]float64{},
		OutputDir:  outDir,
	}
	for _, f := range frames {
		req.Timestamps = append(req.Timestamps, f.Timestamp)
		req.Series["attention"] = append(req.Series["attention"], f.Attention)
		req.Series["confidence"] = append(req.Series["confidence"], f.Confidence)
		req.Series["posture"] = append(req.Series["posture"], f.Posture)
		req.Series["engagement"] = append(req.Series["engagement"], f.Engagement)
		req.Series["movement"] = append(req.Series["movement"], f.MovementStability)
		req.Series["eye_contact"] = append(req.Series["eye_contact"], f.EyeContactQuality)
	}
	return req
}
