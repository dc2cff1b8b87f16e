package mapping

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/yourorg/enos-mapper/internal/models"
)

// score computes the weighted match score of a tagged point against one
// canonical candidate.
func (e *Engine) score(tp models.TaggedPoint, cp models.CanonicalPoint) Breakdown {
	b := Breakdown{
		CandidateID:      cp.ID,
		NameSimilarity:   nameSimilarity(tp.PointName, cp),
		FunctionMatch:    functionMatch(tp.Function, e.candidateFunction(cp)),
		ComponentOverlap: componentOverlap(tp, cp),
		PhenomenonMatch:  e.phenomenonMatch(tp, cp),
		UnitCompat:       unitCompatibility(tp.Unit, cp.Unit),
		TagOverlap:       tagOverlap(tp, cp),
	}
	// A standard-point alias declared in the ontology IS this mapping: the
	// equipment catalog says the matched point name belongs to exactly this
	// canonical id. Name and component evidence is then conclusive.
	if e.standardAliasMatch(tp, cp) {
		b.NameSimilarity = 1
		b.ComponentOverlap = 1
	}
	b.Total = e.weights.NameSimilarity*b.NameSimilarity +
		e.weights.FunctionMatch*b.FunctionMatch +
		e.weights.ComponentOverlap*b.ComponentOverlap +
		e.weights.PhenomenonMatch*b.PhenomenonMatch +
		e.weights.UnitCompat*b.UnitCompat +
		e.weights.TagOverlap*b.TagOverlap
	return b
}

// normalizeName lowercases and strips delimiters so "VSD.Hz" and
// "vsd_hz" compare equal.
func normalizeName(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '_', '-', ' ', '\t':
			return -1
		}
		return r
	}, s)
}

// nameSimilarity is the normalized edit-distance ratio between the point
// name and the candidate's name or id, whichever matches better.
func nameSimilarity(pointName string, cp models.CanonicalPoint) float64 {
	a := normalizeName(pointName)
	best := similarityRatio(a, normalizeName(cp.Name))
	if r := similarityRatio(a, normalizeName(cp.ID)); r > best {
		best = r
	}
	// Trailing segments often carry the discriminating text; a full-name
	// match of "CH-SYS-1.CWP.VSD.Hz" against "PUMP_raw_frequency" is weak
	// even when the suffix is decisive.
	if i := strings.LastIndexAny(pointName, "._- "); i >= 0 && i+1 < len(pointName) {
		suffix := normalizeName(pointName[i+1:])
		if r := similarityRatio(suffix, normalizeName(cp.Name)); r > best {
			best = r
		}
	}
	return best
}

func similarityRatio(a, b string) float64 {
	if a == "" || b == "" {
		if a == b {
			return 1
		}
		return 0
	}
	if a == b {
		return 1
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

func functionMatch(a, b models.PointFunction) float64 {
	switch {
	case a == b:
		return 1
	case a == models.FunctionUnknown || b == models.FunctionUnknown:
		return 0.5
	}
	return 0
}

// componentOverlap is the max Jaccard between the tagged point's component
// tokens and each candidate component entry's tokens.
func componentOverlap(tp models.TaggedPoint, cp models.CanonicalPoint) float64 {
	mine := tokenSet(tp.Component, tp.Subcomponent)
	if len(mine) == 0 || len(cp.Component) == 0 {
		return 0
	}
	best := 0.0
	for _, entry := range cp.Component {
		if j := jaccard(mine, tokenSet(entry)); j > best {
			best = j
		}
	}
	return best
}

func (e *Engine) phenomenonMatch(tp models.TaggedPoint, cp models.CanonicalPoint) float64 {
	if tp.Phenomenon == "" {
		return 0
	}
	candidates := append([]string{cp.Measurement}, cp.Component...)
	for _, c := range candidates {
		if strings.EqualFold(c, tp.Phenomenon) {
			return 1
		}
	}
	for _, c := range candidates {
		if c != "" && e.ont.Related(tp.Phenomenon, strings.ToLower(c)) {
			return 0.4
		}
	}
	return 0
}

func unitCompatibility(a, b string) float64 {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1
	}
	if _, ok := conversionFor(a, b); ok {
		return 0.8
	}
	return 0
}

// tagOverlap is the Jaccard index between the point's tag set and a tag set
// synthesized from the candidate's fields.
func tagOverlap(tp models.TaggedPoint, cp models.CanonicalPoint) float64 {
	mine := map[string]bool{}
	for _, t := range tp.TagList() {
		mine[strings.ToLower(t)] = true
	}
	theirs := map[string]bool{}
	add := func(k, v string) {
		if v != "" {
			theirs[strings.ToLower(k+":"+v)] = true
		}
	}
	add("equipment", cp.EquipmentType)
	add("unit", cp.Unit)
	add("measurement", cp.Measurement)
	for _, c := range cp.Component {
		add("component", c)
	}
	return jaccard(mine, theirs)
}

func tokenSet(parts ...string) map[string]bool {
	out := map[string]bool{}
	for _, p := range parts {
		for _, tok := range strings.FieldsFunc(strings.ToLower(p), func(r rune) bool {
			return r == ' ' || r == '_' || r == '-' || r == '.' || r == '/'
		}) {
			if tok != "" {
				out[tok] = true
			}
		}
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if b[k] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// standardAliasMatch reports whether the tagged point's matched standard
// point maps to exactly this candidate id.
func (e *Engine) standardAliasMatch(tp models.TaggedPoint, cp models.CanonicalPoint) bool {
	spName := tp.Tags["standard_point"]
	if spName == "" {
		return false
	}
	for _, sp := range e.ont.StandardPoints(cp.EquipmentType) {
		if sp.Name == spName && sp.CanonicalID(cp.EquipmentType) == cp.ID {
			return true
		}
	}
	return false
}

// candidateFunction derives the function of a canonical point, preferring
// the ontology's standard-point declaration over name heuristics.
func (e *Engine) candidateFunction(cp models.CanonicalPoint) models.PointFunction {
	for _, sp := range e.ont.StandardPoints(cp.EquipmentType) {
		if sp.CanonicalID(cp.EquipmentType) == cp.ID {
			if sp.Function != "" {
				return sp.Function
			}
			break
		}
	}
	name := strings.ToLower(cp.Name + " " + cp.ID)
	switch {
	case strings.Contains(name, "setpoint") || strings.Contains(name, "_sp"):
		return models.FunctionSetpoint
	case strings.Contains(name, "write_") || strings.Contains(name, "cmd"):
		return models.FunctionCommand
	case strings.Contains(name, "status"):
		return models.FunctionStatus
	}
	return models.FunctionSensor
}
