package main

import (
	"errors"
	"fmt"

	"github.com/cheggaaa/pb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5stream/hdf5"
)

type generateConfig struct {
	Dataset      string
	Chunks       int
	Rows         int
	LastRows     int
	Cols         int
	DeclaredRows int
	Compress     string
	Level        int
	Shuffle      bool
	Fletcher32   bool
	Implicit     bool
	OffsetSize   int
	NoProgress   bool
}

func loadGenerateConfig(v *viper.Viper) (*generateConfig, error) {
	c := &generateConfig{
		Dataset:      v.GetString("dataset"),
		Chunks:       v.GetInt("chunks"),
		Rows:         v.GetInt("rows"),
		LastRows:     v.GetInt("last-rows"),
		Cols:         v.GetInt("cols"),
		DeclaredRows: v.GetInt("declared-rows"),
		Compress:     v.GetString("compress"),
		Level:        v.GetInt("level"),
		Shuffle:      v.GetBool("shuffle"),
		Fletcher32:   v.GetBool("fletcher32"),
		Implicit:     v.GetBool("implicit"),
		OffsetSize:   v.GetInt("offset-size"),
		NoProgress:   v.GetBool("no-progress"),
	}
	switch {
	case c.Chunks < 0, c.Rows <= 0, c.Cols <= 0:
		return nil, errors.New("chunks must not be negative, rows and cols must be positive")
	case c.LastRows < 0 || c.LastRows > c.Rows:
		return nil, fmt.Errorf("last-rows must be between 1 and %d", c.Rows)
	case c.DeclaredRows < 0:
		return nil, errors.New("declared-rows must not be negative")
	}
	return c, nil
}

// rowsIn returns the number of rows of chunk i.
func (c *generateConfig) rowsIn(i int) int {
	if i == c.Chunks-1 && c.LastRows > 0 {
		return c.LastRows
	}
	return c.Rows
}

func (c *generateConfig) totalRows() int {
	if c.Chunks == 0 {
		return 0
	}
	return (c.Chunks-1)*c.Rows + c.rowsIn(c.Chunks-1)
}

func (c *generateConfig) datasetOptions() ([]hdf5.DatasetOption, error) {
	declared := c.DeclaredRows
	if declared == 0 {
		declared = c.totalRows()
	}
	opts := []hdf5.DatasetOption{
		hdf5.WithDimensions(uint64(declared), uint64(c.Cols)),
		hdf5.WithAttribute("generator", "h5stream"),
		hdf5.WithAttribute("chunk_rows", int64(c.Rows)),
	}
	switch c.Compress {
	case "", "none":
	case "deflate":
		opts = append(opts, hdf5.WithDeflate(c.Level))
	case "lz4":
		opts = append(opts, hdf5.WithLZ4())
	case "zstd":
		opts = append(opts, hdf5.WithZstd(c.Level))
	default:
		return nil, fmt.Errorf("unknown compression %q", c.Compress)
	}
	if c.Shuffle {
		opts = append(opts, hdf5.WithShuffle())
	}
	if c.Fletcher32 {
		opts = append(opts, hdf5.WithFletcher32())
	}
	if c.Implicit {
		opts = append(opts, hdf5.WithImplicitIndex())
	}
	return opts, nil
}

// source returns a source whose element at row r, column k holds
// r*cols+k. Chunks are produced only when pulled.
func (c *generateConfig) source() hdf5.ChunkSource[int64] {
	coords := make([]int, c.Chunks)
	for i := range coords {
		coords[i] = i
	}
	return hdf5.SourceFunc(coords, func(i int) (hdf5.Chunk[int64], error) {
		rows := c.rowsIn(i)
		first := int64(i * c.Rows * c.Cols)
		data := make([]int64, rows*c.Cols)
		for j := range data {
			data[j] = first + int64(j)
		}
		return hdf5.Chunk[int64]{Dims: []uint64{uint64(rows), uint64(c.Cols)}, Data: data}, nil
	})
}

func newGenerateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <out.h5>",
		Short: "Stream a synthetic int64 dataset into a new file",
		Long: `Stream a synthetic int64 dataset into a new file.

The dataset's declared row count defaults to the rows actually produced.
Setting --declared-rows to anything else makes the write fail when the
file is closed; the command then exits with status 2.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadGenerateConfig(v)
			if err != nil {
				return err
			}
			log, err := newLogger(v.GetString("log-level"))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runGenerate(cmd, args[0], c, log)
		},
	}
	flags := cmd.Flags()
	flags.String("dataset", "data", "dataset name")
	flags.Int("chunks", 4, "number of chunks")
	flags.Int("rows", 256, "rows per chunk")
	flags.Int("last-rows", 0, "rows in the last chunk (0 for a full chunk)")
	flags.Int("cols", 1024, "elements per row")
	flags.Int("declared-rows", 0, "declared row count (0 for the rows produced)")
	flags.String("compress", "none", "compression: none, deflate, lz4 or zstd")
	flags.Int("level", 4, "compression level")
	flags.Bool("shuffle", false, "apply the shuffle filter")
	flags.Bool("fletcher32", false, "append a Fletcher-32 checksum to each chunk")
	flags.Bool("implicit", false, "use the implicit chunk index for unfiltered data")
	flags.Int("offset-size", 8, "size of file addresses in bytes (2, 4 or 8)")
	flags.Bool("no-progress", false, "do not show a progress bar")
	_ = v.BindPFlags(flags)
	return cmd
}

func runGenerate(cmd *cobra.Command, path string, c *generateConfig, log *zap.Logger) error {
	opts, err := c.datasetOptions()
	if err != nil {
		return err
	}
	var bar *pb.ProgressBar
	if !c.NoProgress && c.Chunks > 0 {
		bar = pb.New(c.Chunks)
		bar.Output = cmd.ErrOrStderr()
		bar.Start()
		opts = append(opts, hdf5.WithProgress(func(hdf5.Progress) { bar.Increment() }))
	}

	reg := prometheus.NewRegistry()
	ds := hdf5.NewStreamableDataset(c.source(), opts...)
	err = hdf5.WithFile(path, func(f *hdf5.File) error {
		return f.PutDataset(c.Dataset, ds)
	}, hdf5.WithOffsetSize(c.OffsetSize), hdf5.WithLogger(log), hdf5.WithMetrics(reg))
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	chunks, stored, err := writeTotals(reg)
	if err != nil {
		return err
	}
	cmd.Printf("wrote %s: dataset %q, %s int64, %d chunks, %d bytes stored\n",
		path, c.Dataset, formatDims([]uint64{uint64(c.totalRows()), uint64(c.Cols)}), chunks, stored)
	return nil
}

// writeTotals returns the chunk and byte counters of a write.
func writeTotals(reg *prometheus.Registry) (chunks, stored uint64, err error) {
	families, err := reg.Gather()
	if err != nil {
		return 0, 0, err
	}
	for _, mf := range families {
		if len(mf.GetMetric()) == 0 || mf.GetMetric()[0].GetCounter() == nil {
			continue
		}
		v := uint64(mf.GetMetric()[0].GetCounter().GetValue())
		switch mf.GetName() {
		case "h5stream_write_chunks_total":
			chunks = v
		case "h5stream_write_bytes_total":
			stored = v
		}
	}
	return chunks, stored, nil
}
