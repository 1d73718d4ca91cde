package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-h5stream/hdf5"
)

// fileReport describes a container and its datasets.
type fileReport struct {
	Path       string              `json:"path" yaml:"path"`
	OffsetSize int                 `json:"offset_size" yaml:"offset_size"`
	LengthSize int                 `json:"length_size" yaml:"length_size"`
	Trusted    bool                `json:"trusted" yaml:"trusted"`
	Datasets   []*hdf5.DatasetInfo `json:"datasets" yaml:"datasets"`
	Errors     map[string]string   `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func inspectFile(path string) (*fileReport, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := &fileReport{
		Path:       path,
		OffsetSize: f.Widths().Offsets,
		LengthSize: f.Widths().Lengths,
		Trusted:    f.Trusted(),
		Datasets:   []*hdf5.DatasetInfo{},
	}
	for _, name := range f.DatasetNames() {
		info, err := f.Inspect(name)
		if err != nil {
			if r.Errors == nil {
				r.Errors = map[string]string{}
			}
			r.Errors[name] = err.Error()
			continue
		}
		r.Datasets = append(r.Datasets, info)
	}
	return r, nil
}

func newInspectCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file.h5>",
		Short: "Describe the datasets of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := inspectFile(args[0])
			if err != nil {
				return err
			}
			if err := writeReport(cmd.OutOrStdout(), r, v.GetString("format")); err != nil {
				return err
			}
			if len(r.Errors) > 0 {
				return fmt.Errorf("%d datasets could not be read", len(r.Errors))
			}
			return nil
		},
	}
	cmd.Flags().StringP("format", "f", "table", "output format: table, yaml or json")
	_ = v.BindPFlags(cmd.Flags())
	return cmd
}

func writeReport(w io.Writer, r *fileReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		writeTable(w, r)
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeTable(w io.Writer, r *fileReport) {
	state := "clean"
	if !r.Trusted {
		state = "NOT CLOSED CLEANLY"
	}
	fmt.Fprintf(w, "%s: offsets %d bytes, lengths %d bytes, %s\n", r.Path, r.OffsetSize, r.LengthSize, state)

	out := tablewriter.NewWriter(w)
	out.SetHeader([]string{"Dataset", "Shape", "Type", "Chunk", "Index", "Chunks", "Stored", "Filters"})
	out.SetAutoWrapText(false)
	for _, d := range r.Datasets {
		out.Append([]string{
			d.Name,
			formatDims(d.Shape),
			d.Datatype.String(),
			formatDims(d.ChunkShape),
			d.ChunkIndex,
			fmt.Sprint(d.Chunks),
			fmt.Sprint(d.StoredBytes),
			strings.Join(d.Filters, ","),
		})
	}
	for name, msg := range r.Errors {
		out.Append([]string{name, "-", "-", "-", "-", "-", "-", "error: " + msg})
	}
	out.Render()
}
