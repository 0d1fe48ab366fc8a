package orchestrator

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/session-analysis/metrics"
)

// PersistBundle is written as result.json next to the per-frame records.
type PersistBundle struct {
	SessionID   string    `json:"session_id"`
	Target      string    `json:"target"`
	GeneratedAt time.Time `json:"generated_at"`
	Result      *Result   `json:"result"`
}

func mkSessionDir(outputsRoot, jobID string) (string, string, error) {
	sid := "session_" + jobID
	dir := filepath.Join(outputsRoot, sid)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	return sid, dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// persistResult writes the result bundle and frame records under
// outputsRoot/session_<jobID>.
func persistResult(outputsRoot string, job *MediaJob, res *Result) (dir string, err error) {
	sid, dir, err := mkSessionDir(outputsRoot, job.ID)
	if err != nil {
		return "", err
	}
	frames := res.Frames
	if frames == nil {
		frames = []metrics.FrameMetrics{}
	}
	if err := writeJSON(filepath.Join(dir, "frames.json"), frames); err != nil {
		return "", err
	}
	bundle := PersistBundle{
		SessionID:   sid,
		Target:      job.Target,
		GeneratedAt: time.Now().UTC(),
		Result:      res,
	}
	if err := writeJSON(filepath.Join(dir, "result.json"), bundle); err != nil {
		return "", err
	}
	return dir, nil
}

func (p *Pipeline) persist(job *MediaJob, res *Result, log logrus.FieldLogger) {
	if p.cfg.Paths.Outputs == "" {
		return
	}
	dir, err := persistResult(p.cfg.Paths.Outputs, job, res)
	if err != nil {
		log.WithError(err).Warn("result not persisted")
		return
	}
	log.WithField("dir", dir).Info("result persisted")
}

// cleanup removes the staged media and derived audio. Errors are logged only.
func (p *Pipeline) cleanup(job *MediaJob, log logrus.FieldLogger) {
	for _, path := range []string{job.Path, job.AudioPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("path", path).Debug("cleanup failed")
		}
	}
}
