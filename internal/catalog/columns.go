// Package catalog loads tabular BMS point catalogs from spreadsheets, CSV
// files, and Google Sheets into Point records.
package catalog

import (
	"sort"
	"strings"
	"unicode"
)

// Column identifies a recognized point-catalog column.
type Column string

const (
	ColPointName      Column = "point_name"
	ColObjectType     Column = "object_type"
	ColDescription    Column = "description"
	ColPresentValue   Column = "present_value"
	ColUnits          Column = "units"
	ColDeviceInstance Column = "device_instance"
	ColPointID        Column = "point_id"
	ColMin            Column = "min"
	ColMax            Column = "max"
)

// ColumnMap maps recognized columns to their 0-based index.
type ColumnMap map[Column]int

// columnSpec is the evidence model for one recognized column: weighted
// tokens that may appear anywhere in a header, plus joined forms that match
// the whole header once delimiters and casing are stripped.
type columnSpec struct {
	col    Column
	tokens map[string]int
	joined []string
}

// joinedWeight is the bonus for a whole-header match; it outranks any
// single token so "pointName" beats a bare "name" for the same column.
const joinedWeight = 3

// minColumnScore is the qualification floor: one strong token or a joined
// form.
const minColumnScore = 2

var columnSpecs = []columnSpec{
	{col: ColPointName, tokens: map[string]int{"name": 2, "point": 1}, joined: []string{"pointname", "objectname", "name"}},
	{col: ColObjectType, tokens: map[string]int{"type": 2, "object": 1}, joined: []string{"objecttype", "pointtype", "type"}},
	{col: ColDescription, tokens: map[string]int{"description": 2, "desc": 2, "remarks": 1}, joined: []string{"description", "desc"}},
	{col: ColPresentValue, tokens: map[string]int{"value": 2, "present": 1}, joined: []string{"presentvalue", "value"}},
	{col: ColUnits, tokens: map[string]int{"unit": 2, "units": 2, "engineering": 1}, joined: []string{"units", "unit", "engineeringunit", "engineeringunits"}},
	{col: ColDeviceInstance, tokens: map[string]int{"device": 2, "instance": 1}, joined: []string{"deviceinstance", "deviceid", "device"}},
	{col: ColPointID, tokens: map[string]int{"id": 2}, joined: []string{"pointid", "id"}},
	{col: ColMin, tokens: map[string]int{"min": 2, "minimum": 2}, joined: []string{"min", "minvalue"}},
	{col: ColMax, tokens: map[string]int{"max": 2, "maximum": 2}, joined: []string{"max", "maxvalue"}},
}

// MapColumns scores every header against every recognized column and
// assigns greedily, best evidence first. A header may serve one column and
// a column claims one header, so "pointName" outbids a bare "name" rather
// than losing to whichever came first. Headers no column claims are
// returned for the caller to log.
func MapColumns(headers []string) (ColumnMap, []string) {
	type candidate struct {
		col   Column
		idx   int
		score int
	}
	var candidates []candidate

	for idx, header := range headers {
		tokens := headerTokens(header)
		joined := strings.Join(tokens, "")
		if joined == "" {
			continue
		}
		present := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			present[tok] = true
		}

		for _, spec := range columnSpecs {
			score := 0
			for tok, weight := range spec.tokens {
				if present[tok] {
					score += weight
				}
			}
			for _, j := range spec.joined {
				if joined == j {
					score += joinedWeight
					break
				}
			}
			if score >= minColumnScore {
				candidates = append(candidates, candidate{col: spec.col, idx: idx, score: score})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.idx != b.idx {
			return a.idx < b.idx
		}
		return a.col < b.col
	})

	colMap := make(ColumnMap)
	taken := make(map[int]bool)
	for _, c := range candidates {
		if taken[c.idx] {
			continue
		}
		if _, claimed := colMap[c.col]; claimed {
			continue
		}
		colMap[c.col] = c.idx
		taken[c.idx] = true
	}

	var unmapped []string
	for idx, header := range headers {
		if !taken[idx] {
			unmapped = append(unmapped, header)
		}
	}
	return colMap, unmapped
}

// headerTokens lowercases a header and splits it on delimiters and
// camelCase boundaries: "presentValue" and "Present_Value" both yield
// ["present", "value"].
func headerTokens(header string) []string {
	var tokens []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, strings.ToLower(string(current)))
			current = current[:0]
		}
	}
	prevLower := false
	for _, r := range header {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if prevLower && unicode.IsUpper(r) {
				flush()
			}
			current = append(current, r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		default:
			flush()
			prevLower = false
		}
	}
	flush()
	return tokens
}

// cell safely reads a mapped column from a row.
func (m ColumnMap) cell(row []string, col Column) string {
	idx, ok := m[col]
	if !ok || idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
