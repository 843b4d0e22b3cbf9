package report_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/docflow/docflow/internal/domain/model"
	"github.com/docflow/docflow/internal/report"
)

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), report.Filename)

	rows := []model.ResultRow{
		{"file": "a.pdf", "pages": 3, "status": "ok"},
		{"file": "b.pdf", "pages": 7, "status": "ok", "warnings": 1},
	}
	require.NoError(t, report.WriteXLSX(path, rows))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Report")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"file", "pages", "status", "warnings"}, got[0])
	assert.Equal(t, "a.pdf", got[1][0])
	assert.Equal(t, "7", got[2][1])
}

func TestWriteXLSX_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), report.Filename)
	require.NoError(t, report.WriteXLSX(path, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Report")
	require.NoError(t, err)
	assert.Empty(t, got)
}
