package processor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/docflow/docflow/internal/domain/model"
	"github.com/docflow/docflow/internal/report"
)

// AnalyzerName is the built-in default processor.
const AnalyzerName = "analyzer"

// Analyzer inspects every staged input file and produces a summary workbook.
// It is the default processor and doubles as the reference implementation
// for the processor contract.
type Analyzer struct{}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Name implements Processor.
func (a *Analyzer) Name() string { return AnalyzerName }

// Run implements Processor.
func (a *Analyzer) Run(ctx context.Context, job *model.JobRecord, jobDir string, reporter Reporter) (*model.JobCompletion, error) {
	inputDir := filepath.Join(jobDir, "input")

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	rows := make([]model.ResultRow, 0, len(files))
	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := reporter.Report(ctx, Progress{
			Processed:   i,
			Total:       len(files),
			CurrentFile: name,
			Message:     fmt.Sprintf("Analyzing %s", name),
		}); err != nil {
			return nil, err
		}

		row, err := a.analyzeFile(filepath.Join(inputDir, name))
		if err != nil {
			return nil, fmt.Errorf("analyzing %s: %w", name, err)
		}
		rows = append(rows, row)
	}

	reportPath := filepath.Join(jobDir, "output", report.Filename)
	if err := report.WriteXLSX(reportPath, rows); err != nil {
		return nil, err
	}

	if err := reporter.Report(ctx, Progress{
		Processed: len(files),
		Total:     len(files),
		Message:   "Analysis finished, report written",
	}); err != nil {
		return nil, err
	}

	download := filepath.Join("output", report.Filename)
	return &model.JobCompletion{
		OutputManifest: rows,
		DownloadPath:   &download,
	}, nil
}

func (a *Analyzer) analyzeFile(path string) (model.ResultRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	row := model.ResultRow{
		"file":       filepath.Base(path),
		"size_bytes": int64(len(data)),
		"sha256":     hex.EncodeToString(sum[:]),
		"kind":       sniffKind(data),
	}
	if pages := countPDFPages(data); pages > 0 {
		row["pages"] = pages
	}
	return row, nil
}

// sniffKind makes a rough call on the file contents: pdf by magic bytes,
// text when the leading bytes are printable, binary otherwise.
func sniffKind(data []byte) string {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return "pdf"
	}

	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	for _, b := range sample {
		if b >= 0x20 || b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		return "binary"
	}
	return "text"
}

// countPDFPages estimates the page count by counting page object markers.
// Good enough for a summary column; zero for anything that is not a PDF.
func countPDFPages(data []byte) int {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0
	}
	return bytes.Count(data, []byte("/Type /Page")) - bytes.Count(data, []byte("/Type /Pages"))
}
