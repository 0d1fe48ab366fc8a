package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/maastricht-university/session-analysis/clients"
)

type vizCalls struct {
	mu        sync.Mutex
	radar     []clients.RadarReq
	timelines []clients.TimelineReq
}

func vizServer(t *testing.T, status int) (*httptest.Server, *vizCalls) {
	t.Helper()
	calls := &vizCalls{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.mu.Lock()
		defer calls.mu.Unlock()
		switch r.URL.Path {
		case "/generate-radar":
			var req clients.RadarReq
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			calls.radar = append(calls.radar, req)
		case "/generate-timeline":
			var req clients.TimelineReq
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			calls.timelines = append(calls.timelines, req)
		default:
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			http.Error(w, "renderer crashed", status)
			return
		}
		_, _ = w.Write([]byte(`{"Status":"ok","Path":"/charts/out.png"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestReportSendsRadarAndTimeline(t *testing.T) {
	srv := mediaServer(t)
	h := newHarness(t, srv, 50)
	viz, calls := vizServer(t, http.StatusOK)
	h.pipe.cfg.Services.Visualization.URL = viz.URL

	res, err := h.pipe.Run(context.Background(), srv.URL+"/session/video")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	calls.mu.Lock()
	defer calls.mu.Unlock()
	if len(calls.radar) != 1 || len(calls.timelines) != 1 {
		t.Fatalf("expected one radar and one timeline, got %d and %d", len(calls.radar), len(calls.timelines))
	}

	a := res.SessionAnalysis
	radar := calls.radar[0]
	wantCats := []string{"attention", "confidence", "posture", "engagement", "movement", "eye_contact"}
	wantVals := []float64{a.AttentionScore, a.ConfidenceScore, a.PostureScore, a.EngagementScore, a.MovementStabilityScore, a.EyeContactQualityScore}
	if radar.SessionID != res.JobID || len(radar.Categories) != len(wantCats) || len(radar.Values) != len(wantVals) {
		t.Fatalf("unexpected radar request %+v", radar)
	}
	for i := range wantCats {
		if radar.Categories[i] != wantCats[i] || radar.Values[i] != wantVals[i] {
			t.Fatalf("radar[%d] = %s:%v, want %s:%v", i, radar.Categories[i], radar.Values[i], wantCats[i], wantVals[i])
		}
	}

	tl := calls.timelines[0]
	if tl.SessionID != res.JobID || len(tl.Timestamps) != a.FramesAnalyzed {
		t.Fatalf("timeline has %d timestamps for %d frames", len(tl.Timestamps), a.FramesAnalyzed)
	}
	for i := 1; i < len(tl.Timestamps); i++ {
		if tl.Timestamps[i] <= tl.Timestamps[i-1] {
			t.Fatalf("timestamps not increasing: %v", tl.Timestamps)
		}
	}
	for _, key := range wantCats {
		if got := len(tl.Series[key]); got != a.FramesAnalyzed {
			t.Fatalf("series %q has %d points, want %d", key, got, a.FramesAnalyzed)
		}
	}
	if tl.Series["attention"][0] != res.Frames[0].Attention {
		t.Fatalf("attention series does not follow frame metrics")
	}
}

func TestReportFailureDoesNotFailJob(t *testing.T) {
	srv := mediaServer(t)
	h := newHarness(t, srv, 50)
	viz, calls := vizServer(t, http.StatusInternalServerError)
	h.pipe.cfg.Services.Visualization.URL = viz.URL

	res, err := h.pipe.Run(context.Background(), srv.URL+"/session/video")
	if err != nil {
		t.Fatalf("visualization failure must not fail the job: %v", err)
	}
	if res.SessionAnalysis.FramesAnalyzed != 10 || h.recorder.done != res {
		t.Fatalf("job not completed: %+v", res.SessionAnalysis)
	}
	calls.mu.Lock()
	defer calls.mu.Unlock()
	if len(calls.radar) != 1 || len(calls.timelines) != 1 {
		t.Fatalf("timeline must be attempted after a radar failure")
	}
}

func TestReportSkippedWithoutFrames(t *testing.T) {
	srv := mediaServer(t)
	h := newHarness(t, srv, 50)
	viz, calls := vizServer(t, http.StatusOK)
	h.pipe.cfg.Services.Visualization.URL = viz.URL

	if _, err := h.pipe.Run(context.Background(), srv.URL+"/session/audio"); err != nil {
		t.Fatalf("run: %v", err)
	}
	calls.mu.Lock()
	defer calls.mu.Unlock()
	if len(calls.radar)+len(calls.timelines) != 0 {
		t.Fatalf("audio-only session must not request charts")
	}
}
