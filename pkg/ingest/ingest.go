// Package ingest merges reviewed upload rows into the dataset catalog.
//
// Contributed spreadsheets rarely share exact headers ("Dataset Name (Text)",
// "dataset_name", "Dataset"), so field lookup resolves in three passes:
// exact key, normalized key, then substring match against the row's headers.
package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/Gimmick12-DYY/ADRD-KG/models"
)

// Result summarizes one ingestion run. Every failing row contributes one
// entry to Errors; rows keep processing past failures.
type Result struct {
	AddedCount int
	ErrorCount int
	Errors     []string
}

// Header candidates per Dataset field, tried in order.
var (
	nameKeys        = []string{"Dataset Name", "name", "dataset_name", "Dataset", "Title"}
	descriptionKeys = []string{"Description", "description", "desc", "Summary"}
	diseaseTypeKeys = []string{"Disease Type", "disease_type", "disease", "Disease", "Type"}
	sampleSizeKeys  = []string{"Sample Size", "sample_size", "n", "N", "size"}
	accessKeys      = []string{"Data Accessibility", "data_accessibility", "Accessibility", "access", "Access"}
	wgsKeys         = []string{"WGS Available", "wgs_available", "WGS", "wgs", "WGS Available?"}
	imagingKeys     = []string{"Imaging Types", "imaging_types", "Imaging", "imaging"}
	modalityKeys    = []string{"Modalities", "modalities", "Modality", "modality", "Data Types"}
)

// Rows inserts each row as a Dataset. A row without a resolvable dataset
// name is skipped with an error naming the columns that were present, so the
// reviewer can see what the file actually contained.
func Rows(db *gorm.DB, rows []map[string]any) Result {
	var res Result
	for idx, row := range rows {
		name := Value(row, nameKeys, "")
		if name == "" {
			res.ErrorCount++
			res.Errors = append(res.Errors, fmt.Sprintf(
				"Row %d: Missing dataset name. Available columns: %s",
				idx+1, strings.Join(columnNames(row), ", ")))
			continue
		}

		ds := models.Dataset{
			Name:              name,
			Description:       Value(row, descriptionKeys, ""),
			DiseaseType:       Value(row, diseaseTypeKeys, ""),
			SampleSize:        parseSampleSize(Value(row, sampleSizeKeys, "0")),
			DataAccessibility: Value(row, accessKeys, ""),
			WGSAvailable:      Value(row, wgsKeys, ""),
			ImagingTypes:      Value(row, imagingKeys, ""),
			Modalities:        Value(row, modalityKeys, ""),
		}
		if err := db.Create(&ds).Error; err != nil {
			res.ErrorCount++
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: Database error - %v", idx+1, err))
			continue
		}
		res.AddedCount++
	}
	return res
}

// Value resolves the first of keys present in row, falling back to
// normalized then substring header matching. Empty or missing values yield
// def.
func Value(row map[string]any, keys []string, def string) string {
	for _, key := range keys {
		if v, ok := row[key]; ok {
			if s := stringify(v); s != "" {
				return s
			}
			return def
		}
	}
	for _, key := range keys {
		want := normalizeKey(key)
		for rowKey, v := range row {
			if normalizeKey(rowKey) == want {
				if s := stringify(v); s != "" {
					return s
				}
				return def
			}
		}
	}
	for _, key := range keys {
		want := normalizeKey(key)
		for rowKey, v := range row {
			have := normalizeKey(rowKey)
			if strings.Contains(have, want) || strings.Contains(want, have) {
				if s := stringify(v); s != "" {
					return s
				}
				return def
			}
		}
	}
	return def
}

// normalizeKey strips spacing and punctuation so "Sample Size" matches
// "sample_size", "sample-size" and "SampleSize".
func normalizeKey(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.':
			return -1
		}
		return r
	}, s)
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		// JSON numbers decode as float64; keep integral values unpadded.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// parseSampleSize keeps the digits of values like "1518 (blood-based omics)"
// and tolerates anything unparsable as zero. A minus sign only counts when
// it leads the value; hyphens inside annotations are noise.
func parseSampleSize(s string) int {
	s = strings.TrimSpace(s)
	var b strings.Builder
	if strings.HasPrefix(s, "-") {
		b.WriteByte('-')
	}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}

func columnNames(row map[string]any) []string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
