// ABOUTME: Entry point for the Sunshine audio encoder host
// ABOUTME: Cobra root command with serve, encode, topologies and version subcommands
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mariotaku/Sunshine/internal/config"
	"github.com/mariotaku/Sunshine/internal/logging"
	"github.com/mariotaku/Sunshine/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "sunshine-audio",
	Short:         "Multichannel audio encoder host",
	Long:          `sunshine-audio encodes PCM into low-delay Opus, AC-3 or E-AC-3 packets and streams them to clients`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is sunshine-audio.yaml in /etc/sunshine or the working directory)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(topologiesCmd)
	rootCmd.AddCommand(versionCmd)
}

// addEncodingFlags registers the flags shared by serve and encode
func addEncodingFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("codec", d.Codec, "codec: opus, ac3 or eac3")
	fs.Int("channels", d.Channels, "channel count: 2, 6 or 8")
	fs.Bool("high-quality", d.HighQuality, "use the high quality topology")
	fs.Bool("host-audio", d.HostAudio, "keep audio playing on the host")
	fs.Float64("packet-duration", d.PacketDurationMs, "packet duration in milliseconds")
	fs.Int("audio-format", d.AudioFormat, "audio format identifier forwarded to clients")
	fs.String("source", d.Source, `"tone" or an MP3/FLAC file`)
	fs.Bool("loop", d.Loop, "restart file sources at the end")
	fs.Int("max-failures", d.MaxConsecutiveFailures, "consecutive encode failures before the encoder is re-created")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	fs.String("log-format", d.LogFormat, "log format: text or json")
}

// loadConfig loads and validates the config for cmd
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	var fatal []error
	for _, e := range cfg.Validate() {
		if errors.Is(e, config.ErrClamped) {
			fmt.Fprintf(os.Stderr, "config: %v\n", e)
			continue
		}
		fatal = append(fatal, e)
	}
	if len(fatal) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(fatal...))
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config, w io.Writer) {
	logging.Init(cfg.LogFormat, cfg.LogLevel, w)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
