// ABOUTME: serve subcommand
// ABOUTME: Streams an encoded source to WebSocket and WebRTC clients until interrupted
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mariotaku/Sunshine/internal/config"
	"github.com/mariotaku/Sunshine/internal/logging"
	"github.com/mariotaku/Sunshine/internal/rtc"
	"github.com/mariotaku/Sunshine/internal/server"
	"github.com/mariotaku/Sunshine/internal/session"
	"github.com/mariotaku/Sunshine/internal/source"
	"github.com/mariotaku/Sunshine/pkg/audio/encode"
	"github.com/spf13/cobra"
)

var logFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Stream encoded audio to network clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

func init() {
	d := config.Default()
	fs := serveCmd.Flags()
	addEncodingFlags(fs)
	fs.Int("port", d.Port, "HTTP and WebSocket port")
	fs.String("name", d.Name, "server friendly name")
	fs.Bool("mdns", d.EnableMDNS, "advertise the server over mDNS")
	fs.Bool("webrtc", d.EnableWebRTC, "accept WebRTC offers")
	fs.StringSlice("ice-server", d.ICEServers, "STUN/TURN server URL for WebRTC (repeatable)")
	fs.Bool("tui", d.TUI, "show the terminal status display")
	fs.StringVar(&logFile, "log-file", "sunshine-audio.log", "log file path")
}

// openLog returns the log destination. With the TUI on the terminal is
// taken, so logs go to the file only.
func openLog(path string, tui bool) (io.Writer, func(), error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening log file: %w", err)
	}
	if tui {
		return f, func() { f.Close() }, nil
	}
	return io.MultiWriter(os.Stderr, f), func() { f.Close() }, nil
}

func runServe(cfg *config.Config) error {
	w, closeLog, err := openLog(logFile, cfg.TUI)
	if err != nil {
		return err
	}
	defer closeLog()
	setupLogging(cfg, w)
	log := logging.L("main")

	codec, err := encode.ParseCodec(cfg.Codec)
	if err != nil {
		return err
	}

	src, err := source.Open(cfg.Source, cfg.Channels, cfg.Loop)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	serverConfig := server.Config{
		Port:        cfg.Port,
		Name:        cfg.Name,
		EnableMDNS:  cfg.EnableMDNS,
		UseTUI:      cfg.TUI,
		AudioFormat: cfg.AudioFormat,
	}
	if cfg.EnableWebRTC {
		serverConfig.WebRTC = &rtc.Config{ICEServers: cfg.ICEServers}
	}

	srv := server.New(serverConfig, session.Config{
		Codec:                  codec,
		Request:                cfg.EncodingRequest(),
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		Realtime:               true,
	}, src)

	log.Info("starting",
		"name", cfg.Name,
		"port", cfg.Port,
		logging.KeyCodec, codec.String(),
		"channels", cfg.Channels,
		"source", src.Name(),
		"log_file", logFile)
	if !cfg.TUI {
		log.Info("press Ctrl-C to stop")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		log.Info("received signal, shutting down", "signal", sig.String())
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped")
	return nil
}
