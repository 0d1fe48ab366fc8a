package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"

	"github.com/maastricht-university/session-analysis/inference"
)

// --- Pose inference (/infer) ---
type PoseReq struct {
	Images [][]byte `json:"images"` // JPEG, base64 on the wire
	ImgSz  int      `json:"imgsz"`
}

// PoseResult is one frame: per-person COCO keypoints and [x1,y1,x2,y2,conf,cls] boxes.
type PoseResult struct {
	Keypoints [][][3]float64 `json:"keypoints"`
	Boxes     [][6]float64   `json:"boxes"`
}

type PoseResp struct {
	Results []PoseResult `json:"results"`
}

func (h *HTTP) Pose(ctx context.Context, url string, req PoseReq) (*PoseResp, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/infer", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", "application/json")

	resp, err := h.c.Do(r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("pose %s: %s", resp.Status, string(body))
	}

	var out PoseResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("pose decode: %w", err)
	}
	return &out, nil
}

// PoseClient is the PoseEstimator backed by the remote pose service.
type PoseClient struct {
	HTTP      *HTTP
	URL       string
	InputSize int
	Quality   int
}

func (p *PoseClient) Infer(ctx context.Context, frames []image.Image) ([]inference.PersonDetection, error) {
	req := PoseReq{Images: make([][]byte, 0, len(frames)), ImgSz: p.InputSize}
	quality := p.Quality
	if quality == 0 {
		quality = 90
	}
	for i, f := range frames {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, f, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("%w: encode frame %d: %v", inference.ErrInference, i, err)
		}
		req.Images = append(req.Images, buf.Bytes())
	}

	resp, err := p.HTTP.Pose(ctx, p.URL, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", inference.ErrInference, err)
	}
	if len(resp.Results) != len(frames) {
		return nil, fmt.Errorf("%w: got %d results for %d frames", inference.ErrInference, len(resp.Results), len(frames))
	}

	out := make([]inference.PersonDetection, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = toDetection(r)
	}
	return out, nil
}

func toDetection(r PoseResult) inference.PersonDetection {
	var d inference.PersonDetection
	for _, kps := range r.Keypoints {
		d.Poses = append(d.Poses, inference.PoseFromCOCO(kps))
	}
	for _, b := range r.Boxes {
		d.Boxes = append(d.Boxes, inference.Box{
			X1: b[0], Y1: b[1], X2: b[2], Y2: b[3],
			Confidence: b[4],
			Class:      int(b[5]),
		})
	}
	return d
}
