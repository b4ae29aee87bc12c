package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fedrates-cli/internal/fetcher"
	"github.com/sells-group/fedrates-cli/internal/model"
)

// WriteRecordsCSV writes records to path in the canonical column order,
// creating parent directories as needed.
func WriteRecordsCSV(path string, recs []model.PercentileRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create %s", path)
	}

	w := csv.NewWriter(f)
	if err := w.Write(model.CSVHeader()); err != nil {
		f.Close()
		return eris.Wrapf(err, "pipeline: write header to %s", path)
	}
	for _, rec := range recs {
		if err := w.Write(rec.CSVRow()); err != nil {
			f.Close()
			return eris.Wrapf(err, "pipeline: write row to %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return eris.Wrapf(err, "pipeline: flush %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "pipeline: close %s", path)
	}
	return nil
}

// ReadRecordsCSV loads a previously written records CSV. Rows that fail
// to parse are logged and skipped so one bad row never discards a stage
// artifact.
func ReadRecordsCSV(path string) ([]model.PercentileRecord, error) {
	rows, err := fetcher.ReadCSVFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read %s", path)
	}

	var recs []model.PercentileRecord
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.EqualFold(row[0], "survey_date") {
			continue
		}
		rec, err := model.ParseCSVRow(row)
		if err != nil {
			zap.L().Warn("pipeline: skipping bad row",
				zap.String("path", path),
				zap.Int("row", i+1),
				zap.Error(err),
			)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
