// ABOUTME: topologies subcommand
// ABOUTME: Prints the fixed multistream topology table as text or YAML
package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/mariotaku/Sunshine/pkg/audio"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var topologiesOutput string

var topologiesCmd = &cobra.Command{
	Use:   "topologies",
	Short: "List the multistream topologies",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := topologyRows()
		switch topologiesOutput {
		case "table", "":
			return writeTopologyTable(cmd.OutOrStdout(), rows)
		case "yaml":
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(rows)
		default:
			return fmt.Errorf("unknown output format %q (table, yaml)", topologiesOutput)
		}
	},
}

func init() {
	topologiesCmd.Flags().StringVarP(&topologiesOutput, "output", "o", "table", "output format: table or yaml")
}

type topologyRow struct {
	Name           string `yaml:"name"`
	Channels       int    `yaml:"channels"`
	HighQuality    bool   `yaml:"high_quality"`
	SampleRate     int    `yaml:"sample_rate"`
	Streams        int    `yaml:"streams"`
	CoupledStreams int    `yaml:"coupled_streams"`
	Mapping        []int  `yaml:"mapping,flow"`
	Bitrate        int    `yaml:"bitrate"`
}

func topologyRows() []topologyRow {
	var rows []topologyRow
	for id := audio.Stereo; id < audio.MaxStreamConfig; id++ {
		sc, err := audio.LookupStreamConfig(id)
		if err != nil {
			continue
		}
		mapping := make([]int, len(sc.Mapping))
		for i, m := range sc.Mapping {
			mapping[i] = int(m)
		}
		rows = append(rows, topologyRow{
			Name:           id.String(),
			Channels:       sc.ChannelCount,
			HighQuality:    audio.MapStream(sc.ChannelCount, true) == id,
			SampleRate:     sc.SampleRate,
			Streams:        sc.Streams,
			CoupledStreams: sc.CoupledStreams,
			Mapping:        mapping,
			Bitrate:        sc.Bitrate,
		})
	}
	return rows
}

func writeTopologyTable(w io.Writer, rows []topologyRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCHANNELS\tSTREAMS\tCOUPLED\tMAPPING\tBITRATE")
	for _, r := range rows {
		mapping := make([]string, len(r.Mapping))
		for i, m := range r.Mapping {
			mapping[i] = strconv.Itoa(m)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%d\n",
			r.Name, r.Channels, r.Streams, r.CoupledStreams, strings.Join(mapping, ","), r.Bitrate)
	}
	return tw.Flush()
}
