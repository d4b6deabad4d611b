package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pvqc/domain/run"
	"pvqc/internal"

	"github.com/xuri/excelize/v2"
)

// ExportReader reads bench export files (Excel or CSV) into a measurement
// series. The expected layout is one header row naming the fields, with the
// independent variable in the first column and one reading per remaining
// column. Cells that do not parse as numbers are dropped so the validator can
// report them as missing readings; rows without an independent value are
// skipped entirely.
type ExportReader struct {
	logger *internal.Logger
}

// NewExportReader creates a reader for bench export files
func NewExportReader() *ExportReader {
	return &ExportReader{logger: internal.DefaultLogger.Prefixed("excel")}
}

// Read loads the file at path into a series labeled after the file name
func (r *ExportReader) Read(ctx context.Context, path string) (run.MeasurementSeries, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return run.MeasurementSeries{}, fmt.Errorf("export file not found: %s", path)
	}

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = r.readCSVRows(path)
	case ".xlsx", ".xlsm":
		rows, err = r.readExcelRows(path)
	default:
		return run.MeasurementSeries{}, fmt.Errorf("unsupported export file type: %s", filepath.Ext(path))
	}
	if err != nil {
		return run.MeasurementSeries{}, err
	}

	if len(rows) < 2 {
		return run.MeasurementSeries{}, fmt.Errorf("export file must have at least a header row and one data row")
	}

	label := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	series, dropped := r.buildSeries(label, rows)
	r.logger.Info("Read %d points from %s (%d cells dropped)", series.Len(), path, dropped)
	return series, nil
}

func (r *ExportReader) readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func (r *ExportReader) readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// buildSeries converts string rows into measurement points. It returns the
// series and the number of dropped cells (unparsable readings plus rows
// lacking an independent value).
func (r *ExportReader) buildSeries(label string, rows [][]string) (run.MeasurementSeries, int) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	dropped := 0
	points := make([]run.MeasurementPoint, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		independent, err := parseCell(row[0])
		if err != nil {
			dropped++
			continue
		}

		readings := make(map[string]float64, len(headers)-1)
		for j := 1; j < len(headers) && j < len(row); j++ {
			if headers[j] == "" {
				continue
			}
			value, err := parseCell(row[j])
			if err != nil {
				dropped++
				continue
			}
			readings[headers[j]] = value
		}
		points = append(points, run.MeasurementPoint{Independent: independent, Readings: readings})
	}

	return run.NewMeasurementSeries(label, points), dropped
}

func parseCell(cell string) (float64, error) {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return 0, fmt.Errorf("empty cell")
	}
	return strconv.ParseFloat(trimmed, 64)
}
