// ABOUTME: encode subcommand
// ABOUTME: Encodes a source offline into a length-prefixed packet file
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/mariotaku/Sunshine/internal/logging"
	"github.com/mariotaku/Sunshine/internal/session"
	"github.com/mariotaku/Sunshine/internal/source"
	"github.com/mariotaku/Sunshine/pkg/audio/encode"
	"github.com/spf13/cobra"
)

var maxPackets int

// errLimitReached stops the session once maxPackets were written
var errLimitReached = errors.New("packet limit reached")

var encodeCmd = &cobra.Command{
	Use:   "encode <input> <output>",
	Short: "Encode a source into a packet file",
	Long: `Encode reads <input> ("tone" or an MP3/FLAC file) and writes every packet
to <output> as a big-endian uint16 length followed by the payload.
Use "-" as <output> for standard output.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Set("source", args[0]); err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogging(cfg, cmd.ErrOrStderr())

		if cfg.Source == source.ToneSource && maxPackets <= 0 {
			return fmt.Errorf("the tone never ends, set --max-packets")
		}

		codec, err := encode.ParseCodec(cfg.Codec)
		if err != nil {
			return err
		}

		src, err := source.Open(cfg.Source, cfg.Channels, false)
		if err != nil {
			return fmt.Errorf("failed to open source: %w", err)
		}
		defer src.Close()

		out, closeOut, err := createOutput(args[1], cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeOut()

		rw := newRecordWriter(out, maxPackets)
		sess := session.New(session.Config{
			Codec:                  codec,
			Request:                cfg.EncodingRequest(),
			MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		}, src, rw)
		defer sess.Close()

		runErr := sess.Run(context.Background())
		if runErr != nil && !errors.Is(runErr, errLimitReached) {
			return runErr
		}
		if err := rw.Flush(); err != nil {
			return err
		}

		stats := sess.Stats()
		logging.L("encode").Info("done",
			logging.KeyCodec, codec.String(),
			"packets", rw.count,
			"bytes", rw.bytes,
			"skipped", stats.Skipped,
			"failures", stats.Failures,
			"reinits", stats.Reinits)
		return nil
	},
}

func init() {
	addEncodingFlags(encodeCmd.Flags())
	encodeCmd.Flags().IntVar(&maxPackets, "max-packets", 0, "stop after this many packets (0 means until the source ends)")
}

func createOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "-" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output: %w", err)
	}
	return f, func() { f.Close() }, nil
}

// recordWriter is a session.Sink that writes length-prefixed packets
type recordWriter struct {
	w     *bufio.Writer
	limit int
	count int
	bytes int64
	hdr   [2]byte
}

func newRecordWriter(w io.Writer, limit int) *recordWriter {
	return &recordWriter{w: bufio.NewWriter(w), limit: limit}
}

func (r *recordWriter) WritePacket(p session.Packet) error {
	if r.limit > 0 && r.count >= r.limit {
		return errLimitReached
	}
	if len(p.Data) > math.MaxUint16 {
		return fmt.Errorf("packet %d is %d bytes, too large for a record", p.Sequence, len(p.Data))
	}

	binary.BigEndian.PutUint16(r.hdr[:], uint16(len(p.Data)))
	if _, err := r.w.Write(r.hdr[:]); err != nil {
		return err
	}
	if _, err := r.w.Write(p.Data); err != nil {
		return err
	}
	r.count++
	r.bytes += int64(len(p.Data)) + 2
	return nil
}

func (r *recordWriter) Flush() error {
	return r.w.Flush()
}

// readRecords splits a packet file back into payloads
func readRecords(rd io.Reader) ([][]byte, error) {
	br := bufio.NewReader(rd)
	var records [][]byte
	var hdr [2]byte
	for {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if err == io.EOF {
				return records, nil
			}
			return records, err
		}
		payload := make([]byte, binary.BigEndian.Uint16(hdr[:]))
		if _, err := io.ReadFull(br, payload); err != nil {
			return records, err
		}
		records = append(records, payload)
	}
}
