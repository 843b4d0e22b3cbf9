package processor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflow/docflow/internal/domain/model"
	"github.com/docflow/docflow/internal/processor"
)

type recordingReporter struct {
	reports []processor.Progress
}

func (r *recordingReporter) Report(_ context.Context, p processor.Progress) error {
	r.reports = append(r.reports, p)
	return nil
}

func TestRegistry_Resolve(t *testing.T) {
	reg := processor.NewRegistry(processor.AnalyzerName)
	reg.Register(processor.NewAnalyzer())

	t.Run("by parameter", func(t *testing.T) {
		p, err := reg.Resolve(model.Parameters{"processor": "analyzer"})
		require.NoError(t, err)
		assert.Equal(t, processor.AnalyzerName, p.Name())
	})

	t.Run("fallback when silent", func(t *testing.T) {
		p, err := reg.Resolve(nil)
		require.NoError(t, err)
		assert.Equal(t, processor.AnalyzerName, p.Name())
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := reg.Resolve(model.Parameters{"processor": "ocr"})
		assert.ErrorContains(t, err, "unknown processor")
	})

	t.Run("non-string parameter", func(t *testing.T) {
		_, err := reg.Resolve(model.Parameters{"processor": 7})
		assert.ErrorContains(t, err, "invalid processor parameter")
	})
}

func TestAnalyzer_Run(t *testing.T) {
	jobDir := t.TempDir()
	inputDir := filepath.Join(jobDir, "input")
	require.NoError(t, os.MkdirAll(inputDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "output"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "a.pdf"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "b.pdf"), []byte("beta content"), 0o644))

	job := &model.JobRecord{JobID: "job-1", TotalFiles: 2}
	reporter := &recordingReporter{}

	completion, err := processor.NewAnalyzer().Run(context.Background(), job, jobDir, reporter)
	require.NoError(t, err)

	require.Len(t, completion.OutputManifest, 2)
	assert.Equal(t, "a.pdf", completion.OutputManifest[0]["file"])
	assert.EqualValues(t, 5, completion.OutputManifest[0]["size_bytes"])
	assert.NotEmpty(t, completion.OutputManifest[0]["sha256"])
	assert.Equal(t, "text", completion.OutputManifest[0]["kind"])
	require.NotNil(t, completion.DownloadPath)
	assert.Equal(t, filepath.Join("output", "report.xlsx"), *completion.DownloadPath)

	_, err = os.Stat(filepath.Join(jobDir, "output", "report.xlsx"))
	require.NoError(t, err)

	// One report per file plus the final summary.
	require.Len(t, reporter.reports, 3)
	assert.Equal(t, "a.pdf", reporter.reports[0].CurrentFile)
	assert.Equal(t, 2, reporter.reports[2].Processed)
}

func TestAnalyzer_PDFPages(t *testing.T) {
	jobDir := t.TempDir()
	inputDir := filepath.Join(jobDir, "input")
	require.NoError(t, os.MkdirAll(inputDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "output"), 0o755))

	pdf := "%PDF-1.4\n1 0 obj << /Type /Pages /Count 2 >>\n" +
		"2 0 obj << /Type /Page >>\n3 0 obj << /Type /Page >>\n%%EOF"
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "doc.pdf"), []byte(pdf), 0o644))

	completion, err := processor.NewAnalyzer().Run(
		context.Background(), &model.JobRecord{JobID: "job-2", TotalFiles: 1},
		jobDir, &recordingReporter{},
	)
	require.NoError(t, err)

	require.Len(t, completion.OutputManifest, 1)
	assert.Equal(t, "pdf", completion.OutputManifest[0]["kind"])
	assert.EqualValues(t, 2, completion.OutputManifest[0]["pages"])
}

func TestAnalyzer_RunCancelled(t *testing.T) {
	jobDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "input"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "input", "a.pdf"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := processor.NewAnalyzer().Run(ctx, &model.JobRecord{JobID: "job-1"}, jobDir, &recordingReporter{})
	assert.ErrorIs(t, err, context.Canceled)
}
