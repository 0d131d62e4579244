package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/store"
)

// eventRow is the flattened export schema shared by the CSV and Parquet
// writers.
type eventRow struct {
	EventID    string  `parquet:"name=event_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	CameraID   string  `parquet:"name=camera_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	OrgID      string  `parquet:"name=org_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventType  string  `parquet:"name=event_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Confidence float64 `parquet:"name=confidence, type=DOUBLE"`
	OccurredAt string  `parquet:"name=occurred_at, type=BYTE_ARRAY, convertedtype=UTF8"`
	FrameURL   string  `parquet:"name=frame_url, type=BYTE_ARRAY, convertedtype=UTF8"`
	Payload    string  `parquet:"name=payload_json, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func toRow(ev model.Event) eventRow {
	row := eventRow{
		EventID:   ev.ID,
		CameraID:  ev.CameraID,
		OrgID:     ev.OrgID,
		EventType: ev.EventType,
		OccurredAt: ev.OccurredAt.UTC().Format(time.RFC3339),
		Payload:   ev.PayloadJSON,
	}
	if ev.Confidence != nil {
		row.Confidence = *ev.Confidence
	}
	if ev.FrameURL != nil {
		row.FrameURL = *ev.FrameURL
	}
	return row
}

// Exporter materializes filtered event sets into CSV and Parquet files
// under the export directory and records the job in the store.
type Exporter struct {
	store  *store.Store
	dir    string
	logger *slog.Logger
}

func NewExporter(st *store.Store, dir string, logger *slog.Logger) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{store: st, dir: dir, logger: logger}, nil
}

// Run executes an export synchronously: it loads the matching events,
// writes both output files, and persists the job record. A failed job is
// still recorded, with its status set accordingly.
func (e *Exporter) Run(ctx context.Context, orgID, requestedBy string, filter model.EventFilter) (*model.ExportJob, error) {
	filter.OrgID = orgID
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("marshal export filter: %w", err)
	}

	job := &model.ExportJob{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		RequestedBy: requestedBy,
		FilterJSON:  string(filterJSON),
		Status:      model.ExportCompleted,
		CreatedAt:   time.Now().UTC(),
	}

	events, err := e.store.ListEventsForExport(ctx, filter)
	if err != nil {
		job.Status = model.ExportFailed
		if cerr := e.store.CreateExportJob(ctx, job); cerr != nil {
			return nil, cerr
		}
		return job, fmt.Errorf("load events for export: %w", err)
	}

	base := filepath.Join(e.dir, job.ID)
	csvPath := base + ".csv"
	parquetPath := base + ".parquet"

	if err := writeCSV(csvPath, events); err != nil {
		job.Status = model.ExportFailed
		if cerr := e.store.CreateExportJob(ctx, job); cerr != nil {
			return nil, cerr
		}
		return job, err
	}
	if err := writeParquet(parquetPath, events); err != nil {
		job.Status = model.ExportFailed
		if cerr := e.store.CreateExportJob(ctx, job); cerr != nil {
			return nil, cerr
		}
		return job, err
	}

	job.CSVPath = csvPath
	job.ParquetPath = parquetPath
	if err := e.store.CreateExportJob(ctx, job); err != nil {
		return nil, err
	}
	e.logger.Info("export completed", "job_id", job.ID, "org_id", orgID, "events", len(events))
	return job, nil
}

func writeCSV(path string, events []model.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv export: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"event_id", "camera_id", "org_id", "event_type", "confidence", "occurred_at", "frame_url", "payload_json"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, ev := range events {
		row := toRow(ev)
		record := []string{
			row.EventID,
			row.CameraID,
			row.OrgID,
			row.EventType,
			strconv.FormatFloat(row.Confidence, 'f', -1, 64),
			row.OccurredAt,
			row.FrameURL,
			row.Payload,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv export: %w", err)
	}
	return nil
}

func writeParquet(path string, events []model.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet export: %w", err)
	}
	defer f.Close()

	fw := writerfile.NewWriterFile(f)
	pw, err := writer.NewParquetWriter(fw, new(eventRow), 2)
	if err != nil {
		return fmt.Errorf("init parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, ev := range events {
		if err := pw.Write(toRow(ev)); err != nil {
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize parquet export: %w", err)
	}
	return nil
}
