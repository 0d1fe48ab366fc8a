package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// --- Visualization ---
type TimelineReq struct {
	SessionID  string               `json:"session_id"`
	Timestamps []float64            `json:"timestamps"`
	Series     map[string][]float64 `json:"series"`
	OutputDir  string               `json:"output_dir,omitempty"`
}

type TimelineResp struct{ Status, Path string }

func (h *HTTP) GenerateTimeline(ctx context.Context, url string, req TimelineReq) (*TimelineResp, error) {
	var out TimelineResp
	if err := h.postJSON(ctx, url+"/generate-timeline", "viz timeline", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type RadarReq struct {
	Categories []string  `json:"categories"`
	Values     []float64 `json:"values"`
	SessionID  string    `json:"session_id"`
	OutputDir  string    `json:"output_dir,omitempty"`
}
type RadarResp struct{ Status, Path string }

func (h *HTTP) GenerateRadar(ctx context.Context, url string, req RadarReq) (*RadarResp, error) {
	var out RadarResp
	if err := h.postJSON(ctx, url+"/generate-radar", "viz radar", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTP) postJSON(ctx context.Context, url, what string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")
	resp, err := h.c.Do(r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s", what, resp.Status, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", what, err)
	}
	return nil
}
