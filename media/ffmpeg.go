// Package media wraps the ffmpeg and ffprobe binaries used to decode video
// and extract audio.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Tools locates the ffmpeg binaries. Empty fields fall back to PATH lookup.
type Tools struct {
	FFmpeg  string
	FFprobe string
}

func (t Tools) ffmpeg() (string, error) {
	return lookPath(t.FFmpeg, "ffmpeg")
}

func (t Tools) ffprobe() (string, error) {
	return lookPath(t.FFprobe, "ffprobe")
}

func lookPath(configured, name string) (string, error) {
	if configured == "" {
		configured = name
	}
	p, err := exec.LookPath(configured)
	if err != nil {
		return "", fmt.Errorf("%s not found: %w", name, err)
	}
	return p, nil
}

// VideoInfo describes decoded frames. Width and Height are the display size,
// after the stream's rotation is applied.
type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Rotation int
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		Tags         struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideData     []struct {
			Rotation *float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
}

// ProbeVideo reads the dimensions and frame rate of the first video stream.
func ProbeVideo(ctx context.Context, tools Tools, path string) (VideoInfo, error) {
	bin, err := tools.ffprobe()
	if err != nil {
		return VideoInfo{}, err
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type,width,height,avg_frame_rate,r_frame_rate:stream_tags=rotate:stream_side_data=rotation",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(out)
}

func parseProbe(raw []byte) (VideoInfo, error) {
	var po probeOutput
	if err := json.Unmarshal(raw, &po); err != nil {
		return VideoInfo{}, fmt.Errorf("ffprobe decode: %w", err)
	}
	for _, s := range po.Streams {
		if s.CodecType != "" && s.CodecType != "video" {
			continue
		}
		fps, err := ParseFrameRate(s.AvgFrameRate)
		if err != nil || fps <= 0 {
			fps, err = ParseFrameRate(s.RFrameRate)
		}
		if err != nil {
			return VideoInfo{}, err
		}
		if s.Width <= 0 || s.Height <= 0 {
			return VideoInfo{}, fmt.Errorf("invalid video dimensions %dx%d", s.Width, s.Height)
		}
		info := VideoInfo{Width: s.Width, Height: s.Height, FPS: fps}
		// Display matrix wins over the legacy rotate tag.
		if r, err := strconv.Atoi(s.Tags.Rotate); err == nil {
			info.Rotation = r
		}
		for _, sd := range s.SideData {
			if sd.Rotation != nil {
				info.Rotation = int(math.Round(*sd.Rotation))
			}
		}
		// ffmpeg autorotates, so quarter turns swap the output size.
		if q := ((info.Rotation%360)+360)%360; q == 90 || q == 270 {
			info.Width, info.Height = info.Height, info.Width
		}
		return info, nil
	}
	return VideoInfo{}, fmt.Errorf("no video stream found")
}

// ParseFrameRate parses ffprobe rates such as "30000/1001" or "25".
func ParseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	if d == 0 {
		return 0, nil
	}
	return n / d, nil
}

// Extractor produces the transcription input track from a media file.
type Extractor struct {
	Tools      Tools
	SampleRate int
	Channels   int
	Codec      string
}

func NewExtractor(tools Tools) *Extractor {
	return &Extractor{Tools: tools, SampleRate: 16000, Channels: 1, Codec: "pcm_s16le"}
}

// ExtractAudio writes a mono 16 kHz PCM wav of in to out, overwriting out.
func (e *Extractor) ExtractAudio(ctx context.Context, in, out string) error {
	bin, err := e.Tools.ffmpeg()
	if err != nil {
		return err
	}
	if _, err := os.Stat(in); err != nil {
		return fmt.Errorf("input file not accessible: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin,
		"-y",
		"-i", in,
		"-vn",
		"-acodec", e.Codec,
		"-ac", strconv.Itoa(e.Channels),
		"-ar", strconv.Itoa(e.SampleRate),
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		os.Remove(out)
		return fmt.Errorf("ffmpeg audio extraction failed: %w\nStderr: %s", err, stderr.String())
	}
	return nil
}
