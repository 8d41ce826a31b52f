package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/models"
)

const datasetPreviewRows = 5

// Dataset is a parsed CSV file with a header row.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// ParseDataset reads CSV bytes. Short rows are padded to the header width.
func ParseDataset(data []byte) (*Dataset, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &llm.ValidationError{Field: "file", Message: "CSV file is empty"}
	}
	if err != nil {
		return nil, &llm.ValidationError{Field: "file", Message: fmt.Sprintf("failed to parse CSV: %v", err)}
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	ds := &Dataset{Columns: columns}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &llm.ValidationError{Field: "file", Message: fmt.Sprintf("failed to parse CSV: %v", err)}
		}
		if isBlankRecord(record) {
			continue
		}
		row := make([]string, len(columns))
		copy(row, record)
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ColumnIndex returns the index of name, or a ValidationError.
func (d *Dataset) ColumnIndex(name string) (int, error) {
	name = strings.TrimSpace(name)
	for i, c := range d.Columns {
		if c == name {
			return i, nil
		}
	}
	return -1, &llm.ValidationError{Field: "column", Message: fmt.Sprintf("column %q not found in file", name)}
}

func (d *Dataset) Summary(fileName string, fileSize int64) models.DatasetSummary {
	n := len(d.Rows)
	if n > datasetPreviewRows {
		n = datasetPreviewRows
	}
	preview := make([]map[string]string, 0, n)
	for _, row := range d.Rows[:n] {
		item := make(map[string]string, len(d.Columns))
		for i, c := range d.Columns {
			item[c] = row[i]
		}
		preview = append(preview, item)
	}

	return models.DatasetSummary{
		FileName:  fileName,
		FileSize:  fileSize,
		Columns:   d.Columns,
		TotalRows: len(d.Rows),
		Preview:   preview,
	}
}

// LabelCounts counts the trimmed values of column, most frequent first.
func (d *Dataset) LabelCounts(column string) (*models.LabelSummary, error) {
	idx, err := d.ColumnIndex(column)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, row := range d.Rows {
		counts[strings.TrimSpace(row[idx])]++
	}

	labels := make([]models.LabelCount, 0, len(counts))
	for label, count := range counts {
		labels = append(labels, models.LabelCount{Label: label, Count: count})
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Count == labels[j].Count {
			return labels[i].Label < labels[j].Label
		}
		return labels[i].Count > labels[j].Count
	})

	return &models.LabelSummary{Column: strings.TrimSpace(column), TotalRows: len(d.Rows), Labels: labels}, nil
}

// labelMapper resolves raw dataset labels through LabelRules, case-insensitively.
type labelMapper map[string]bool

func newLabelMapper(rules models.LabelRules) (labelMapper, error) {
	m := labelMapper{}
	for _, v := range rules.Positive {
		m[strings.ToLower(strings.TrimSpace(v))] = true
	}
	for _, v := range rules.Negative {
		key := strings.ToLower(strings.TrimSpace(v))
		if pos, ok := m[key]; ok && pos {
			return nil, &llm.ValidationError{Field: "label_rules", Message: fmt.Sprintf("label %q is both positive and negative", v)}
		}
		m[key] = false
	}
	if len(rules.Positive) == 0 || len(rules.Negative) == 0 {
		return nil, &llm.ValidationError{Field: "label_rules", Message: "need at least one positive and one negative label"}
	}
	return m, nil
}

func (m labelMapper) Resolve(raw string) (positive bool, ok bool) {
	positive, ok = m[strings.ToLower(strings.TrimSpace(raw))]
	return positive, ok
}

// ComputeMetrics compares predictions against the expected labels. Both
// slices must have the same length. Ratios with a zero denominator are 0.
func ComputeMetrics(expected, predicted []bool) models.EvaluationMetrics {
	var cm models.ConfusionMatrix
	for i := range expected {
		switch {
		case expected[i] && predicted[i]:
			cm.TP++
		case !expected[i] && predicted[i]:
			cm.FP++
		case !expected[i] && !predicted[i]:
			cm.TN++
		default:
			cm.FN++
		}
	}

	m := models.EvaluationMetrics{Evaluated: len(expected), Confusion: cm}
	m.Accuracy = ratio(cm.TP+cm.TN, len(expected))
	m.Precision = ratio(cm.TP, cm.TP+cm.FP)
	m.Recall = ratio(cm.TP, cm.TP+cm.FN)
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
