package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
)

// FFmpegDecoder streams raw RGB frames out of an ffmpeg subprocess.
type FFmpegDecoder struct {
	info   VideoInfo
	cmd    *exec.Cmd
	cancel context.CancelFunc
	out    *bufio.Reader
	stderr bytes.Buffer
	frame  []byte
	done   bool
}

// OpenDecoder probes path and starts decoding it. Close must be called to
// reap the ffmpeg process.
func OpenDecoder(ctx context.Context, tools Tools, path string) (*FFmpegDecoder, error) {
	info, err := ProbeVideo(ctx, tools, path)
	if err != nil {
		return nil, err
	}
	bin, err := tools.ffmpeg()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	d := &FFmpegDecoder{
		info:   info,
		cancel: cancel,
		frame:  make([]byte, info.Width*info.Height*3),
	}
	d.cmd = exec.CommandContext(ctx, bin,
		"-v", "error",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", strconv.Itoa(info.Width)+"x"+strconv.Itoa(info.Height),
		"pipe:1",
	)
	d.cmd.Stderr = &d.stderr
	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := d.cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	d.out = bufio.NewReaderSize(stdout, len(d.frame))
	return d, nil
}

func (d *FFmpegDecoder) FPS() float64 { return d.info.FPS }

func (d *FFmpegDecoder) Info() VideoInfo { return d.info }

// Next returns the next frame, or io.EOF once ffmpeg has finished cleanly.
func (d *FFmpegDecoder) Next() (image.Image, error) {
	if err := d.read(); err != nil {
		return nil, err
	}
	return d.toImage(), nil
}

// Skip consumes the next frame without converting it.
func (d *FFmpegDecoder) Skip() error {
	return d.read()
}

func (d *FFmpegDecoder) read() error {
	if d.done {
		return io.EOF
	}
	_, err := io.ReadFull(d.out, d.frame)
	if errors.Is(err, io.EOF) {
		d.done = true
		if werr := d.cmd.Wait(); werr != nil {
			return fmt.Errorf("ffmpeg: %w: %s", werr, d.stderr.String())
		}
		d.cmd = nil
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	return nil
}

func (d *FFmpegDecoder) toImage() image.Image {
	w, h := d.info.Width, d.info.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for src, dst := 0, 0; src < len(d.frame); src, dst = src+3, dst+4 {
		img.Pix[dst] = d.frame[src]
		img.Pix[dst+1] = d.frame[src+1]
		img.Pix[dst+2] = d.frame[src+2]
		img.Pix[dst+3] = 0xff
	}
	return img
}

func (d *FFmpegDecoder) Close() error {
	d.cancel()
	if d.cmd != nil {
		_ = d.cmd.Wait()
		d.cmd = nil
	}
	return nil
}
