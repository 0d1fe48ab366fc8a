package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Service struct {
	URL string `yaml:"url" mapstructure:"url"`
}
type Services struct {
	Pose           Service `yaml:"pose" mapstructure:"pose"`
	ASR            Service `yaml:"asr" mapstructure:"asr"`
	Visualization  Service `yaml:"visualization" mapstructure:"visualization"`
	TimeoutSeconds int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}
type Audio struct {
	SampleRate int    `yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels   int    `yaml:"channels" mapstructure:"channels"`
	Codec      string `yaml:"codec" mapstructure:"codec"`
}
type Media struct {
	FFmpeg  string `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	FFprobe string `yaml:"ffprobe" mapstructure:"ffprobe"`
}
type Poller struct {
	URL             string `yaml:"url" mapstructure:"url"`
	IntervalMinutes int    `yaml:"interval_minutes" mapstructure:"interval_minutes"`
}
type Root struct {
	Pipeline struct {
		Name      string `yaml:"name" mapstructure:"name"`
		Version   string `yaml:"version" mapstructure:"version"`
		LogLvl    string `yaml:"log_level" mapstructure:"log_level"`
		LogFormat string `yaml:"log_format" mapstructure:"log_format"`
		Workers   int    `yaml:"workers" mapstructure:"workers"`
	} `yaml:"pipeline" mapstructure:"pipeline"`
	Audio    Audio    `yaml:"audio" mapstructure:"audio"`
	Media    Media    `yaml:"media" mapstructure:"media"`
	Services Services `yaml:"services" mapstructure:"services"`
	Paths    struct {
		Temp    string `yaml:"temp" mapstructure:"temp"`
		Outputs string `yaml:"outputs" mapstructure:"outputs"`
	} `yaml:"paths" mapstructure:"paths"`
	Server struct {
		Addr string `yaml:"addr" mapstructure:"addr"`
	} `yaml:"server" mapstructure:"server"`
	Poller Poller `yaml:"poller" mapstructure:"poller"`
	Store  struct {
		Path string `yaml:"path" mapstructure:"path"`
	} `yaml:"store" mapstructure:"store"`
}

// EnvPrefix prefixes environment overrides, e.g. SESSION_POLLER_URL.
const EnvPrefix = "SESSION"

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "session-analysis")
	v.SetDefault("pipeline.version", "0.1.0")
	v.SetDefault("pipeline.log_level", "info")
	v.SetDefault("pipeline.log_format", "text")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.codec", "pcm_s16le")
	v.SetDefault("media.ffmpeg", "ffmpeg")
	v.SetDefault("media.ffprobe", "ffprobe")
	v.SetDefault("services.pose.url", "http://localhost:8090")
	v.SetDefault("services.asr.url", "http://localhost:8091")
	v.SetDefault("services.visualization.url", "")
	v.SetDefault("services.timeout_seconds", 300)
	v.SetDefault("paths.temp", os.TempDir())
	v.SetDefault("paths.outputs", "")
	v.SetDefault("server.addr", ":8081")
	v.SetDefault("poller.url", "")
	v.SetDefault("poller.interval_minutes", 5)
	v.SetDefault("store.path", filepath.Join("data", "sessions.db"))
}

// Load reads configuration. An explicit path must exist; otherwise the
// per-environment file (CONFIG_ENV, default dev) and ./config.yaml are tried
// and defaults apply when neither is present. Environment variables override
// file values.
func Load(path string) (*Root, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join("config", env))
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Pipeline.Workers < 2 {
		cfg.Pipeline.Workers = 2
	}
	return &cfg, nil
}

// Dump writes the effective configuration as YAML.
func Dump(w io.Writer, cfg *Root) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// NewLogger builds the process logger from the pipeline settings.
func NewLogger(cfg *Root) *logrus.Logger {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(cfg.Pipeline.LogLvl)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	if cfg.Pipeline.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }

func DurMinutes(n int) time.Duration { return time.Duration(n) * time.Minute }
