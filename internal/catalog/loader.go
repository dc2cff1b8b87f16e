package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yourorg/enos-mapper/internal/models"
)

// ErrNoHeader is returned when a catalog has no recognizable header row.
var ErrNoHeader = errors.New("catalog: no usable header row")

// Result is a loaded point catalog: the points plus per-row findings.
type Result struct {
	Points []models.Point
	// Skipped counts malformed rows; each is logged, never fatal.
	Skipped int
	// UnmappedHeaders lists catalog columns nothing recognized.
	UnmappedHeaders []string
}

// LoadXLSX reads the first sheet (or sheetName when given) of an Excel
// workbook.
func LoadXLSX(r io.Reader, sheetName string) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("catalog: open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("catalog: no sheets in workbook")
		}
		sheetName = sheets[0]
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("catalog: read sheet %q: %w", sheetName, err)
	}
	return fromRows(rows)
}

// LoadXLSXFile reads a workbook from disk.
func LoadXLSXFile(path, sheetName string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("catalog: no sheets in workbook")
		}
		sheetName = sheets[0]
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("catalog: read sheet %q: %w", sheetName, err)
	}
	return fromRows(rows)
}

// LoadCSV reads a comma-separated catalog.
func LoadCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("catalog: read csv: %w", err)
	}
	return fromRows(rows)
}

// FromRows converts an already-parsed cell matrix (first row = headers).
func FromRows(rows [][]string) (*Result, error) {
	return fromRows(rows)
}

func fromRows(rows [][]string) (*Result, error) {
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}
	colMap, unmapped := MapColumns(rows[0])
	if _, ok := colMap[ColPointName]; !ok {
		return nil, fmt.Errorf("%w: no pointName column among %v", ErrNoHeader, rows[0])
	}

	res := &Result{UnmappedHeaders: unmapped}
	for i, row := range rows[1:] {
		p, err := pointFromRow(colMap, row, i)
		if err != nil {
			slog.Warn("catalog row skipped", "row", i+2, "err", err)
			res.Skipped++
			continue
		}
		res.Points = append(res.Points, p)
	}
	return res, nil
}

func pointFromRow(colMap ColumnMap, row []string, idx int) (models.Point, error) {
	name := colMap.cell(row, ColPointName)
	if name == "" {
		return models.Point{}, fmt.Errorf("empty point name")
	}

	p := models.Point{
		PointID:     colMap.cell(row, ColPointID),
		PointName:   name,
		PointType:   normalizeObjectType(colMap.cell(row, ColObjectType)),
		Description: colMap.cell(row, ColDescription),
		DeviceID:    colMap.cell(row, ColDeviceInstance),
		Unit:        colMap.cell(row, ColUnits),
	}
	if p.PointID == "" {
		// Synthesize a stable id from the row position and name.
		p.PointID = fmt.Sprintf("row%d:%s", idx+1, name)
	}
	if v := colMap.cell(row, ColPresentValue); v != "" {
		p.Raw = map[string]string{"presentValue": v}
	}
	if v := colMap.cell(row, ColMin); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.Min = &f
		}
	}
	if v := colMap.cell(row, ColMax); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.Max = &f
		}
	}
	return p, nil
}

// normalizeObjectType maps the spellings controllers emit onto the
// enumerated transport types. Unrecognized values pass through untouched;
// validation downstream decides what to do with them.
func normalizeObjectType(raw string) models.PointType {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "-")
	switch t {
	case "ai", "analog-input":
		return models.PointTypeAnalogInput
	case "ao", "analog-output":
		return models.PointTypeAnalogOutput
	case "av", "analog-value":
		return models.PointTypeAnalogValue
	case "bi", "binary-input":
		return models.PointTypeBinaryInput
	case "bo", "binary-output":
		return models.PointTypeBinaryOutput
	case "bv", "binary-value":
		return models.PointTypeBinaryValue
	case "msi", "multi-state-input":
		return models.PointTypeMultiStateInput
	case "msv", "multi-state-value":
		return models.PointTypeMultiStateValue
	case "sv", "structured-view":
		return models.PointTypeStructuredView
	case "dev", "device":
		return models.PointTypeDevice
	}
	return models.PointType(t)
}
