package data

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadCSV reads a headered CSV file into a Frame.
func LoadCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	f, err := ReadCSV(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ReadCSV parses a headered CSV stream. Every column keeps its raw text; the
// column kind is inferred once all rows are read. Header cells are trimmed
// and have inner spaces removed (see NormalizeHeader).
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cols := make([][]string, len(header))
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		for j := range cols {
			cols[j] = append(cols[j], strings.TrimSpace(rec[j]))
		}
	}

	f := NewFrame()
	for j, name := range header {
		s := &Series{Name: NormalizeHeader(name), Values: cols[j]}
		s.Kind = InferKind(s.Values)
		if err := f.Add(s); err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}
	}
	return f, nil
}

// NormalizeHeader trims a column name and removes every space inside it.
func NormalizeHeader(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "")
}
