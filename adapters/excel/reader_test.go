package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSVExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iam_sweep.csv")
	content := "incidence_angle,relative_transmission,irradiance\n" +
		"0,1.0,1000\n" +
		"10,0.995,1002\n" +
		"20,0.98,\n" + // missing irradiance reading
		",0.5,999\n" + // no independent value, row dropped
		"30,0.96,997\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	series, err := NewExportReader().Read(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "iam_sweep", series.Label)
	require.Len(t, series.Points, 4)
	assert.Equal(t, 0.0, series.Points[0].Independent)
	assert.Equal(t, 1.0, series.Points[0].Readings["relative_transmission"])
	assert.Equal(t, 1000.0, series.Points[0].Readings["irradiance"])

	// The blank cell becomes an absent reading, not a zero
	_, present := series.Points[2].Readings["irradiance"]
	assert.False(t, present)
	assert.Equal(t, 30.0, series.Points[3].Independent)
}

func TestReadExcelExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "letid_0500h.xlsx")

	f := excelize.NewFile()
	headers := []string{"exposure_hours", "pmax", "module_temp"}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue("Sheet1", cell, h))
	}
	data := [][]float64{
		{0, 360.5, 75.1},
		{24, 358.2, 74.8},
		{48, 356.9, 75.3},
	}
	for row, values := range data {
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	series, err := NewExportReader().Read(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "letid_0500h", series.Label)
	require.Len(t, series.Points, 3)
	assert.Equal(t, 24.0, series.Points[1].Independent)
	assert.InDelta(t, 358.2, series.Points[1].Readings["pmax"], 1e-9)
	assert.InDelta(t, 75.3, series.Points[2].Readings["module_temp"], 1e-9)
}

func TestReadRejectsUnknownFileType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.txt")
	require.NoError(t, os.WriteFile(path, []byte("not a bench export"), 0o644))

	_, err := NewExportReader().Read(context.Background(), path)
	assert.Error(t, err)
}

func TestReadMissingFile(t *testing.T) {
	_, err := NewExportReader().Read(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestReadHeaderOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, []byte("incidence_angle,relative_transmission\n"), 0o644))

	_, err := NewExportReader().Read(context.Background(), path)
	assert.Error(t, err)
}
