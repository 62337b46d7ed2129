// Package export writes recorded traffic history to Parquet files, either
// on local disk or in cloud storage.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chrisdamba/trafikcam/internal/cloudwriter"
	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/schollz/progressbar/v3"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// Row is one observation in the exported file.
type Row struct {
	Location string `parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8"`
	Time     string `parquet:"name=time, type=BYTE_ARRAY, convertedtype=UTF8"`
	CarCount int32  `parquet:"name=nr_cars, type=INT32"`
}

// HistoryReader is the part of the history repository the exporter reads.
type HistoryReader interface {
	Query(ctx context.Context, location string) ([]models.StatPoint, error)
	Locations(ctx context.Context) ([]string, error)
}

type Options struct {
	OutputPath string
	// Cloud, when set, receives the files instead of OutputPath.
	Cloud  cloudwriter.CloudWriterFactory
	Bucket string
	Prefix string
	// Progress receives a progress bar per location; nil disables it.
	Progress io.Writer
	Logger   *slog.Logger
}

type Exporter struct {
	history HistoryReader
	opts    Options
}

// FileResult describes one written file.
type FileResult struct {
	Location string
	Path     string
	Rows     int
}

func NewExporter(history HistoryReader, opts Options) *Exporter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Exporter{history: history, opts: opts}
}

// Export writes one file per location. With no locations given every
// location in the repository is exported.
func (e *Exporter) Export(ctx context.Context, locations ...string) ([]FileResult, error) {
	if len(locations) == 0 {
		var err error
		locations, err = e.history.Locations(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list locations: %w", err)
		}
	}

	if e.opts.Cloud == nil {
		if err := os.MkdirAll(e.opts.OutputPath, os.ModePerm); err != nil {
			return nil, err
		}
	}

	results := make([]FileResult, 0, len(locations))
	for _, location := range locations {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := e.exportLocation(ctx, location)
		if err != nil {
			return results, fmt.Errorf("export of %s failed: %w", location, err)
		}
		e.opts.Logger.Info("export_written", "location", location, "path", res.Path, "rows", res.Rows)
		results = append(results, res)
	}
	return results, nil
}

func (e *Exporter) exportLocation(ctx context.Context, location string) (FileResult, error) {
	points, err := e.history.Query(ctx, location)
	if err != nil {
		return FileResult{}, err
	}

	name := fileName(location)
	fw, path, err := e.createFile(ctx, name)
	if err != nil {
		return FileResult{}, err
	}

	pw, err := writer.NewParquetWriter(fw, new(Row), 4)
	if err != nil {
		fw.Close()
		return FileResult{}, fmt.Errorf("failed to create ParquetWriter: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	bar := e.newBar(len(points), location)
	for _, p := range points {
		row := Row{Location: location, Time: p.Time, CarCount: int32(p.CarCount)}
		if err := pw.Write(row); err != nil {
			fw.Close()
			return FileResult{}, fmt.Errorf("failed to write row: %w", err)
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return FileResult{}, fmt.Errorf("failed to finish parquet file: %w", err)
	}
	if err := fw.Close(); err != nil {
		return FileResult{}, err
	}
	return FileResult{Location: location, Path: path, Rows: len(points)}, nil
}

func (e *Exporter) createFile(ctx context.Context, name string) (source.ParquetFile, string, error) {
	if e.opts.Cloud != nil {
		key := cloudwriter.ObjectKey(e.opts.Prefix, name)
		w, err := e.opts.Cloud.NewWriter(ctx, e.opts.Bucket, key, "application/vnd.apache.parquet")
		if err != nil {
			return nil, "", fmt.Errorf("failed to create cloud file writer: %w", err)
		}
		return NewCloudParquetFile(w), e.opts.Bucket + "/" + key, nil
	}

	path := filepath.Join(e.opts.OutputPath, name)
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create local file writer: %w", err)
	}
	return fw, path, nil
}

func (e *Exporter) newBar(total int, location string) *progressbar.ProgressBar {
	if e.opts.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(e.opts.Progress),
		progressbar.OptionSetDescription(location),
		progressbar.OptionShowCount(),
	)
}

// fileName keeps location names usable as file and object names.
func fileName(location string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	return replacer.Replace(location) + ".parquet"
}
