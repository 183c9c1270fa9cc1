// Package archive exports persisted history records to Parquet files for
// offline retention and analysis.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/history"
)

// Row is the flat Parquet schema for one history record. Mappings are
// serialized to JSON so the schema stays stable as the mapping shape evolves.
type Row struct {
	ID           string `parquet:"id" json:"id"`
	SourceText   string `parquet:"source_text" json:"source_text"`
	HasSource    bool   `parquet:"has_source" json:"has_source"`
	TargetText   string `parquet:"target_text" json:"target_text"`
	MappingsJSON string `parquet:"mappings_json" json:"mappings_json"`
	CreatedAtMS  int64  `parquet:"created_at_ms" json:"created_at_ms"`
	UpdatedAtMS  int64  `parquet:"updated_at_ms" json:"updated_at_ms"`
}

// Lister is the slice of the history store the exporter needs.
type Lister interface {
	List(ctx context.Context, limit int) ([]history.Record, error)
}

// Exporter writes history records to Parquet.
type Exporter struct {
	store  Lister
	logger *zap.Logger
}

// NewExporter creates an exporter backed by the given history store.
func NewExporter(store Lister, logger *zap.Logger) *Exporter {
	return &Exporter{store: store, logger: logger}
}

// Export fetches up to limit records and writes them to path. It returns the
// number of rows written.
func (e *Exporter) Export(ctx context.Context, path string, limit int) (int, error) {
	records, err := e.store.List(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list history records: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer file.Close()

	written, err := writeRows(file, records)
	if err != nil {
		return written, err
	}

	e.logger.Info("History archive written",
		zap.String("path", path),
		zap.Int("rows", written))
	return written, nil
}

func writeRows(w io.Writer, records []history.Record) (int, error) {
	writer := parquet.NewWriter(w)

	written := 0
	for _, record := range records {
		row, err := toRow(record)
		if err != nil {
			return written, err
		}
		if err := writer.Write(&row); err != nil {
			return written, fmt.Errorf("failed to write Parquet row: %w", err)
		}
		written++
	}

	if err := writer.Close(); err != nil {
		return written, fmt.Errorf("failed to finalize Parquet file: %w", err)
	}
	return written, nil
}

func toRow(record history.Record) (Row, error) {
	mappings, err := json.Marshal(record.Mappings)
	if err != nil {
		return Row{}, fmt.Errorf("failed to serialize mappings: %w", err)
	}

	row := Row{
		ID:           record.ID,
		TargetText:   record.TargetText,
		MappingsJSON: string(mappings),
		CreatedAtMS:  record.CreatedAt.UnixMilli(),
		UpdatedAtMS:  record.UpdatedAt.UnixMilli(),
	}
	if record.SourceText != nil {
		row.SourceText = *record.SourceText
		row.HasSource = true
	}
	return row, nil
}

// ReadRows reads every row back from a Parquet archive. Used to verify
// exports.
func ReadRows(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	var rows []Row
	for {
		var row Row
		err := reader.Read(&row)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
