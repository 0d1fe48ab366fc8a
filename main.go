package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/session-analysis/clients"
	cfg "github.com/maastricht-university/session-analysis/config"
	"github.com/maastricht-university/session-analysis/inference"
	"github.com/maastricht-university/session-analysis/media"
	"github.com/maastricht-university/session-analysis/video"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "session-analysis",
		Short:         "Score recorded interview sessions from body language and speech",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	root.AddCommand(newServeCmd(), newAnalyzeCmd(), newFormulaCmd(), newConfigCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func loadConfig() (*cfg.Root, *logrus.Logger, error) {
	conf, err := cfg.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return conf, cfg.NewLogger(conf), nil
}

// newModels wires the remote pose and ASR services and local ffmpeg audio
// extraction into one registry.
func newModels(c *cfg.Root) *inference.Registry {
	h := clients.NewHTTP(cfg.DurSeconds(c.Services.TimeoutSeconds))

	ex := media.NewExtractor(media.Tools{FFmpeg: c.Media.FFmpeg, FFprobe: c.Media.FFprobe})
	if c.Audio.SampleRate > 0 {
		ex.SampleRate = c.Audio.SampleRate
	}
	if c.Audio.Channels > 0 {
		ex.Channels = c.Audio.Channels
	}
	if c.Audio.Codec != "" {
		ex.Codec = c.Audio.Codec
	}

	pose := &clients.PoseClient{HTTP: h, URL: c.Services.Pose.URL, InputSize: video.InputSize, Quality: 90}
	asr := &clients.ASRClient{HTTP: h, URL: c.Services.ASR.URL}
	return inference.NewRegistry(pose, ex, asr)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
