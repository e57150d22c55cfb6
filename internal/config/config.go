// ABOUTME: Runtime configuration loaded from file, environment and flags
// ABOUTME: Produces the encoding request handed to the encoder factory
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mariotaku/Sunshine/pkg/audio"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SUNSHINE_AUDIO"

type Config struct {
	Codec            string  `mapstructure:"codec"`
	Channels         int     `mapstructure:"channels"`
	HighQuality      bool    `mapstructure:"high_quality"`
	HostAudio        bool    `mapstructure:"host_audio"`
	PacketDurationMs float64 `mapstructure:"packet_duration_ms"`
	AudioFormat      int     `mapstructure:"audio_format"`

	Source string `mapstructure:"source"`
	Loop   bool   `mapstructure:"loop"`

	Port         int      `mapstructure:"port"`
	Name         string   `mapstructure:"name"`
	EnableMDNS   bool     `mapstructure:"enable_mdns"`
	EnableWebRTC bool     `mapstructure:"enable_webrtc"`
	ICEServers   []string `mapstructure:"ice_servers"`
	TUI          bool     `mapstructure:"tui"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures"`
}

func Default() *Config {
	hostname, _ := os.Hostname()
	name := "Sunshine Audio"
	if hostname != "" {
		name = hostname + " audio"
	}

	return &Config{
		Codec:                  "opus",
		Channels:               2,
		PacketDurationMs:       5,
		Source:                 "tone",
		Loop:                   true,
		Port:                   8937,
		Name:                   name,
		EnableMDNS:             true,
		LogLevel:               "info",
		LogFormat:              "text",
		MaxConsecutiveFailures: 10,
	}
}

// defaults registers every key so environment overrides reach Unmarshal
func defaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("codec", cfg.Codec)
	v.SetDefault("channels", cfg.Channels)
	v.SetDefault("high_quality", cfg.HighQuality)
	v.SetDefault("host_audio", cfg.HostAudio)
	v.SetDefault("packet_duration_ms", cfg.PacketDurationMs)
	v.SetDefault("audio_format", cfg.AudioFormat)
	v.SetDefault("source", cfg.Source)
	v.SetDefault("loop", cfg.Loop)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("name", cfg.Name)
	v.SetDefault("enable_mdns", cfg.EnableMDNS)
	v.SetDefault("enable_webrtc", cfg.EnableWebRTC)
	v.SetDefault("ice_servers", cfg.ICEServers)
	v.SetDefault("tui", cfg.TUI)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("max_consecutive_failures", cfg.MaxConsecutiveFailures)
}

// flagKeys maps command line flag names to config keys
var flagKeys = map[string]string{
	"codec":           "codec",
	"channels":        "channels",
	"high-quality":    "high_quality",
	"host-audio":      "host_audio",
	"packet-duration": "packet_duration_ms",
	"audio-format":    "audio_format",
	"source":          "source",
	"loop":            "loop",
	"port":            "port",
	"name":            "name",
	"mdns":            "enable_mdns",
	"webrtc":          "enable_webrtc",
	"ice-server":      "ice_servers",
	"tui":             "tui",
	"log-level":       "log_level",
	"log-format":      "log_format",
	"max-failures":    "max_consecutive_failures",
}

// Load reads cfgFile (or sunshine-audio.yaml from the usual places), then
// the environment, then any flags in flags that were set explicitly.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()
	v := viper.New()
	defaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sunshine-audio")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EncodingRequest builds the per-stream request for the encoder
func (c *Config) EncodingRequest() audio.Config {
	var flags audio.Flags
	if c.HighQuality {
		flags |= audio.FlagHighQuality
	}
	if c.HostAudio {
		flags |= audio.FlagHostAudio
	}

	return audio.Config{
		PacketDuration: c.PacketDurationMs,
		Channels:       c.Channels,
		Mask:           audio.DefaultMask(c.Channels),
		AudioFormat:    c.AudioFormat,
		Flags:          flags,
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Sunshine")
	case "darwin":
		return "/Library/Application Support/Sunshine"
	default:
		return "/etc/sunshine"
	}
}
