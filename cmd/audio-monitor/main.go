// ABOUTME: Entry point for the audio monitor
// ABOUTME: Connects to a Sunshine audio server and plays its stream folded to stereo
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mariotaku/Sunshine/internal/app"
	"github.com/mariotaku/Sunshine/internal/logging"
	"github.com/mariotaku/Sunshine/internal/version"
	"github.com/mariotaku/Sunshine/pkg/audio/output"
	"github.com/spf13/cobra"
)

var (
	serverAddr string
	name       string
	delay      time.Duration
	logFile    string
	logLevel   string
	noTUI      bool
)

var rootCmd = &cobra.Command{
	Use:           "audio-monitor",
	Short:         "Play a Sunshine audio stream",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	fs := rootCmd.Flags()
	fs.StringVar(&serverAddr, "server", "", "server address host:port (default: discover over mDNS)")
	fs.StringVar(&name, "name", "", "monitor friendly name (default: hostname-audio-monitor)")
	fs.DurationVar(&delay, "delay", 150*time.Millisecond, "playout delay absorbing network jitter")
	fs.StringVar(&logFile, "log-file", "audio-monitor.log", "log file path")
	fs.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&noTUI, "no-tui", false, "disable the TUI and stream logs instead")
}

func run() error {
	useTUI := !noTUI

	f, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	if !useTUI {
		w = io.MultiWriter(os.Stderr, f)
	}
	logging.Init("text", logLevel, w)
	log := logging.L("main")

	monitorName := name
	if monitorName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		monitorName = hostname + "-audio-monitor"
	}

	monitor := app.New(app.Config{
		ServerAddr: serverAddr,
		Name:       monitorName,
		Delay:      delay,
		UseTUI:     useTUI,
	}, output.NewOto())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		if sig, ok := <-sigChan; ok {
			log.Info("received signal, shutting down", "signal", sig.String())
			monitor.Stop()
		}
	}()

	log.Info("starting audio monitor", "name", monitorName, "server", serverAddr)
	if err := monitor.Run(); err != nil {
		return err
	}
	log.Info("monitor stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
