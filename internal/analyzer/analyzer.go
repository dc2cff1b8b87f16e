// Package analyzer decomposes raw BMS point names into structural parts.
// Everything here is pure and deterministic; no LLM is ever consulted.
package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yourorg/enos-mapper/internal/models"
)

// Analyzer decomposes point names using the ontology's abbreviation index.
type Analyzer struct {
	// abbr maps lower-cased abbreviation -> equipment type.
	abbr map[string]string
}

// New creates an analyzer over an abbreviation index, typically
// ontology.Store.Abbreviations().
func New(abbr map[string]string) *Analyzer {
	if abbr == nil {
		abbr = map[string]string{}
	}
	return &Analyzer{abbr: abbr}
}

var (
	segmentSplit = regexp.MustCompile(`[._\-\s]+`)
	numericGroup = regexp.MustCompile(`\d+`)
	trailingNum  = regexp.MustCompile(`(\d+)$`)
)

// measurementRule is one row of the measurement-type precedence table.
// Rules are checked in order; the first hit wins.
type measurementRule struct {
	name       string
	substrings []string
	units      []string
}

// The order matters: specific roles (setpoint, status) are checked before
// broad physical reads so "RoomTempSetpoint" resolves to setpoint, not
// temperature.
var measurementRules = []measurementRule{
	{name: "setpoint", substrings: []string{"setpoint", "stpt", "sp_", "_sp"}},
	{name: "status", substrings: []string{"status", "sts", "alarm", "fault", "trip", "run"}},
	{name: "frequency", substrings: []string{"freq", "hz"}, units: []string{"hz"}},
	{name: "power", substrings: []string{"power", "kw"}, units: []string{"kw", "w"}},
	{name: "energy", substrings: []string{"kwh", "energy"}, units: []string{"kwh"}},
	{name: "pressure", substrings: []string{"press", "dp"}, units: []string{"kpa", "pa", "psi", "bar"}},
	{name: "flow", substrings: []string{"flow", "cfm", "gpm"}, units: []string{"l/s", "m3/h", "cfm", "gpm"}},
	{name: "humidity", substrings: []string{"humid", "rh"}, units: []string{"%rh"}},
	{name: "speed", substrings: []string{"speed", "rpm"}, units: []string{"rpm"}},
	{name: "position", substrings: []string{"position", "pos", "dmpr", "damper"}},
	{name: "temperature", substrings: []string{"temp", "tmp", "sat", "rat"}, units: []string{"degc", "degf", "°c", "°f", "k"}},
}

// deviceAliases maps a lower-cased name fragment to the inferred device.
// Short aliases only match whole segments; longer ones also match as
// substrings of the full name.
var deviceAliases = map[string]string{
	"pump": "pump", "pmp": "pump", "cwp": "pump", "chwp": "pump",
	"valve": "valve", "vlv": "valve",
	"damper": "damper", "dmpr": "damper", "dpr": "damper",
	"fan": "fan", "sf": "fan", "rf": "fan", "ef": "fan",
	"compressor": "compressor", "comp": "compressor",
	"chiller": "chiller", "chlr": "chiller",
	"boiler": "boiler", "blr": "boiler",
	"vsd": "drive", "vfd": "drive", "drive": "drive",
}

// deviceAliasOrder fixes the substring-check order: longer, more specific
// aliases first.
var deviceAliasOrder = []string{
	"compressor", "chiller", "boiler", "damper", "valve", "drive",
	"pump", "chwp", "dmpr", "comp", "chlr", "vsd", "vfd", "cwp",
	"blr", "pmp", "vlv", "dpr", "fan",
}

// propertyRules are checked per segment, first hit wins.
var propertyRules = []struct {
	name     string
	segments []string
}{
	{name: "supply", segments: []string{"supply", "sa", "sat", "chws", "cws", "sw"}},
	{name: "return", segments: []string{"return", "ra", "rat", "chwr", "cwr", "rw"}},
	{name: "speed", segments: []string{"speed", "rpm", "hz"}},
	{name: "command", segments: []string{"cmd", "command", "write", "enable", "onoff"}},
	{name: "position", segments: []string{"pos", "position"}},
}

// Decompose breaks a point name (plus optional unit) into segments, detected
// abbreviations, measurement type, device, property, and instance candidates.
func (a *Analyzer) Decompose(name, unit string) models.Decomposition {
	d := models.Decomposition{
		Segments: splitSegments(name),
	}

	lower := strings.ToLower(name)
	lowerSegs := make([]string, len(d.Segments))
	for i, s := range d.Segments {
		lowerSegs[i] = strings.ToLower(s)
	}

	d.Abbreviations = a.detectAbbreviations(lower, lowerSegs)
	d.MeasurementType = inferMeasurementType(lower, unit)
	d.Device = inferDevice(lower, lowerSegs)
	d.Property = inferProperty(lowerSegs)
	d.Instance, d.InstanceGroups = extractInstance(name)
	return d
}

func splitSegments(name string) []string {
	parts := segmentSplit.Split(name, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// detectAbbreviations finds ontology abbreviations in the name. Short
// abbreviations (<= 2 chars) only count on exact segment hits to keep "CT"
// from firing inside "FCT" or "ACTIVE".
func (a *Analyzer) detectAbbreviations(lowerName string, lowerSegs []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(abbr string) {
		if !seen[abbr] {
			seen[abbr] = true
			out = append(out, abbr)
		}
	}

	for abbr := range a.abbr {
		if len(abbr) <= 2 {
			for _, seg := range lowerSegs {
				if seg == abbr || trailingNum.ReplaceAllString(seg, "") == abbr {
					add(abbr)
					break
				}
			}
			continue
		}
		if strings.Contains(lowerName, abbr) {
			add(abbr)
		}
	}
	sort.Strings(out)
	return out
}

func inferMeasurementType(lowerName, unit string) string {
	lowerUnit := strings.ToLower(strings.TrimSpace(unit))
	for _, rule := range measurementRules {
		for _, sub := range rule.substrings {
			if strings.Contains(lowerName, sub) {
				return rule.name
			}
		}
		if lowerUnit == "" {
			continue
		}
		for _, u := range rule.units {
			if lowerUnit == u {
				return rule.name
			}
		}
	}
	return ""
}

func inferDevice(lowerName string, lowerSegs []string) string {
	// Whole segments first: exact alias hits are unambiguous.
	for _, seg := range lowerSegs {
		base := trailingNum.ReplaceAllString(seg, "")
		if dev, ok := deviceAliases[base]; ok {
			return dev
		}
	}
	// Longer aliases may be embedded in compound words ("SupplyFanSpeed").
	// Checked in a fixed order so ambiguous names resolve the same way on
	// every run.
	for _, alias := range deviceAliasOrder {
		if len(alias) >= 3 && strings.Contains(lowerName, alias) {
			return deviceAliases[alias]
		}
	}
	return ""
}

func inferProperty(lowerSegs []string) string {
	for _, rule := range propertyRules {
		for _, seg := range lowerSegs {
			base := trailingNum.ReplaceAllString(seg, "")
			for _, want := range rule.segments {
				if seg == want || base == want {
					return rule.name
				}
			}
		}
	}
	return "raw"
}

// extractInstance pulls numeric groups from the leading dot-separated
// segment. "CH-SYS-1.CWP.VSD.Hz" yields ("1", ["1"]); "FCU_01_25.RoomTemp"
// yields ("01_25", ["01","25"]). The caller picks the compound id or the
// last group depending on the configured instance-id strategy.
func extractInstance(name string) (string, []string) {
	leading := name
	if i := strings.IndexAny(name, ". \t"); i >= 0 {
		leading = name[:i]
	}
	groups := numericGroup.FindAllString(leading, -1)
	if len(groups) == 0 {
		return "", nil
	}
	return strings.Join(groups, "_"), groups
}
