package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		err  bool
	}{
		{"25", 25, false},
		{"25/1", 25, false},
		{"30000/1001", 30000.0 / 1001.0, false},
		{"0/0", 0, false},
		{"abc", 0, true},
		{"30/x", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseFrameRate(tc.in)
		if tc.err {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%q: expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestParseProbe(t *testing.T) {
	raw := []byte(`{"streams":[{"codec_type":"video","width":640,"height":360,"avg_frame_rate":"0/0","r_frame_rate":"30000/1001"}]}`)
	info, err := parseProbe(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.Width != 640 || info.Height != 360 {
		t.Fatalf("unexpected size %+v", info)
	}
	if math.Abs(info.FPS-29.97) > 0.01 {
		t.Fatalf("expected ~29.97 fps, got %v", info.FPS)
	}

	if _, err := parseProbe([]byte(`{"streams":[]}`)); err == nil {
		t.Fatalf("expected error for missing video stream")
	}
}

func TestParseProbeRotation(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		w, h int
		rot  int
	}{
		{"display matrix", `{"streams":[{"codec_type":"video","width":1920,"height":1080,"avg_frame_rate":"30/1",
			"side_data_list":[{"side_data_type":"Display Matrix","rotation":-90}]}]}`, 1080, 1920, -90},
		{"rotate tag", `{"streams":[{"codec_type":"video","width":1280,"height":720,"avg_frame_rate":"30/1",
			"tags":{"rotate":"270"}}]}`, 720, 1280, 270},
		{"upside down", `{"streams":[{"codec_type":"video","width":640,"height":360,"avg_frame_rate":"25/1",
			"side_data_list":[{"rotation":180}]}]}`, 640, 360, 180},
		{"side data without rotation", `{"streams":[{"codec_type":"video","width":640,"height":360,"avg_frame_rate":"25/1",
			"side_data_list":[{"side_data_type":"CPB properties"}]}]}`, 640, 360, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info, err := parseProbe([]byte(tc.raw))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if info.Width != tc.w || info.Height != tc.h || info.Rotation != tc.rot {
				t.Fatalf("got %dx%d rotated %d, want %dx%d rotated %d", info.Width, info.Height, info.Rotation, tc.w, tc.h, tc.rot)
			}
		})
	}
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}
}

func makeClip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	cmd := exec.Command("ffmpeg", "-v", "error",
		"-f", "lavfi", "-i", "testsrc=duration=1:size=64x48:rate=25",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=1",
		"-c:v", "mpeg4", "-c:a", "aac", "-shortest", "-y", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot synthesise test clip: %v: %s", err, out)
	}
	return path
}

func TestDecoderReadsAllFrames(t *testing.T) {
	requireFFmpeg(t)
	clip := makeClip(t)

	dec, err := OpenDecoder(context.Background(), Tools{}, clip)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dec.Close()

	if dec.FPS() != 25 {
		t.Fatalf("expected 25 fps, got %v", dec.FPS())
	}
	n := 0
	for {
		img, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("frame %d: %v", n, err)
		}
		if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
			t.Fatalf("unexpected frame size %v", b)
		}
		n++
	}
	if n < 20 || n > 30 {
		t.Fatalf("expected about 25 frames, got %d", n)
	}
}

func TestDecoderSkipKeepsFrameOrder(t *testing.T) {
	requireFFmpeg(t)
	clip := makeClip(t)

	all, err := OpenDecoder(context.Background(), Tools{}, clip)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer all.Close()
	var want []image.Image
	for {
		img, err := all.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		want = append(want, img)
	}

	dec, err := OpenDecoder(context.Background(), Tools{}, clip)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dec.Close()
	for i := 0; ; i++ {
		if i%2 == 1 {
			if err := dec.Skip(); errors.Is(err, io.EOF) {
				break
			} else if err != nil {
				t.Fatalf("skip %d: %v", i, err)
			}
			continue
		}
		img, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if i >= len(want) {
			t.Fatalf("frame %d beyond the %d decoded without skipping", i, len(want))
		}
		if !bytes.Equal(img.(*image.RGBA).Pix, want[i].(*image.RGBA).Pix) {
			t.Fatalf("frame %d differs after skipping", i)
		}
	}
}

func TestExtractAudio(t *testing.T) {
	requireFFmpeg(t)
	clip := makeClip(t)
	out := filepath.Join(t.TempDir(), "clip.wav")

	if err := NewExtractor(Tools{}).ExtractAudio(context.Background(), clip, out); err != nil {
		t.Fatalf("extract: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" {
		t.Fatalf("output is not a wav file")
	}
	channels := uint16(data[22]) | uint16(data[23])<<8
	rate := uint32(data[24]) | uint32(data[25])<<8 | uint32(data[26])<<16 | uint32(data[27])<<24
	if channels != 1 || rate != 16000 {
		t.Fatalf("expected mono 16kHz, got %d channels at %d Hz", channels, rate)
	}
}

func TestExtractAudioMissingInput(t *testing.T) {
	requireFFmpeg(t)
	err := NewExtractor(Tools{}).ExtractAudio(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), filepath.Join(t.TempDir(), "x.wav"))
	if err == nil {
		t.Fatalf("expected error for missing input")
	}
}
