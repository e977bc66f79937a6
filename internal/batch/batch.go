// Package batch reads participant IDs from crowd-sourcing batch exports and
// names the coverage output files.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// IDColumn holds the survey completion code, which is the participant ID.
const IDColumn = "Answer.surveycode"

// ErrNoIDColumn indicates a batch file without IDColumn in its header.
var ErrNoIDColumn = errors.New("batch file has no " + IDColumn + " column")

// ListFiles returns the regular files in dir, sorted by name.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read batch dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ReadIDs returns the non-blank IDColumn values of the batch file at path.
func ReadIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ids, err := ParseIDs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return ids, nil
}

// ParseIDs reads IDs from CSV with a header row.
func ParseIDs(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoIDColumn
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := -1
	for i, name := range header {
		if strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")) == IDColumn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNoIDColumn
	}

	ids := make([]string, 0)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if idx >= len(record) {
			continue
		}
		if id := strings.TrimSpace(record[idx]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// CombinedName is the output file for all batches merged, stamped with now.
func CombinedName(now time.Time) string {
	return "Data_combined_" + now.Format("060102150405") + ".csv"
}

// SeparateName is the output file for a single batch file.
func SeparateName(inputPath string) string {
	return "Data_for_" + filepath.Base(inputPath)
}
