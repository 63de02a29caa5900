package calib

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseTable reads a table in the flat text format:
//
//	# comment
//	level: L2Relative
//	formula: log-polynomial
//	bins: JetEta
//	vars: JetPt
//	-5.191 -3.0  10 6500  1.02 0.013 -0.002
//
// Each record line holds a (min, max) pair per binning variable, a (min, max)
// pair per parameter variable and then the formula parameters. An optional
// "name:" header overrides defaultName.
func ParseTable(r io.Reader, defaultName string) (*Table, error) {
	t := &Table{Name: defaultName}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	inRecords := false
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}

		if key, value, ok := strings.Cut(line, ":"); ok {
			if inRecords {
				return nil, fmt.Errorf("line %d: header %q after records", lineNo, key)
			}
			if err := t.setHeader(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}

		inRecords = true
		rec, err := t.parseRecord(strings.Fields(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		t.Records = append(t.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) setHeader(key, value string) error {
	switch strings.ToLower(key) {
	case "name":
		t.Name = value
	case "level":
		t.Level = value
	case "formula":
		t.Formula = FormulaName(value)
	case "bins":
		t.BinVars = parseVariables(value)
	case "vars":
		t.ParVars = parseVariables(value)
	default:
		return fmt.Errorf("unknown header %q", key)
	}
	return nil
}

func parseVariables(value string) []Variable {
	fields := strings.Fields(value)
	vars := make([]Variable, len(fields))
	for i, f := range fields {
		vars[i] = Variable(f)
	}
	return vars
}

func (t *Table) parseRecord(fields []string) (Record, error) {
	if len(t.BinVars) == 0 {
		return Record{}, fmt.Errorf("record before \"bins:\" header")
	}
	nRanges := len(t.BinVars) + len(t.ParVars)
	if len(fields) <= 2*nRanges {
		return Record{}, fmt.Errorf("%d columns, need more than %d", len(fields), 2*nRanges)
	}

	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Record{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		values[i] = v
	}

	ranges := make([]Range, nRanges)
	for i := range ranges {
		ranges[i] = Range{Min: values[2*i], Max: values[2*i+1]}
		if ranges[i].Max < ranges[i].Min {
			return Record{}, fmt.Errorf("range %d has max %g below min %g", i+1, ranges[i].Max, ranges[i].Min)
		}
	}

	return Record{
		Bins:   ranges[:len(t.BinVars)],
		Vars:   ranges[len(t.BinVars):],
		Params: values[2*nRanges:],
	}, nil
}

// LoadTableFile parses the table stored at path. The table name defaults to
// the file name without its extension.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open calibration table: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := ParseTable(f, name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return t, nil
}
