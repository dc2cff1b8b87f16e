// Package grouping assigns each raw point to an (equipment_type, instance)
// pair using a three-pass protocol: explicit metadata, prefix analysis with
// an ontology cascade and LLM batch inference, then contradiction
// verification.
package grouping

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yourorg/enos-mapper/internal/ai"
	"github.com/yourorg/enos-mapper/internal/analyzer"
	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/ontology"
)

// Groups is the grouping output: equipment type -> instance id -> points.
type Groups map[string]map[string][]models.Point

// Result carries the groups plus the per-group confidence metric. The
// confidence is recorded but never gates progression.
type Result struct {
	Groups Groups
	// Confidence is keyed "equipment/instance".
	Confidence map[string]float64
	// Method records how each point was assigned, keyed by point id.
	Method map[string]string
}

// ChainFunc receives the finished reasoning chain for one point.
type ChainFunc func(chain models.ReasoningChain)

// Engine performs the grouping passes.
type Engine struct {
	ont              *ontology.Store
	an               *analyzer.Analyzer
	svc              ai.Service
	instanceStrategy string
	// tokenBudget bounds a single LLM grouping request; larger inputs are
	// split into batches and merged by prefix key.
	tokenBudget int
}

// NewEngine creates a grouping engine. instanceStrategy selects how
// compound numeric ids like "01_25" collapse into an instance id.
func NewEngine(ont *ontology.Store, an *analyzer.Analyzer, svc ai.Service, instanceStrategy string, tokenBudget int) *Engine {
	if tokenBudget <= 0 {
		tokenBudget = 1500
	}
	return &Engine{ont: ont, an: an, svc: svc, instanceStrategy: instanceStrategy, tokenBudget: tokenBudget}
}

// assignment is the intermediate per-point grouping decision.
type assignment struct {
	equipment string
	instance  string
	method    string // explicit | pattern | component | standard_point | llm | unknown
}

// Group runs the three passes over the batch. operationID keys the
// reasoning chains handed to emit; emit may be nil.
func (e *Engine) Group(ctx context.Context, operationID string, points []models.Point, emit ChainFunc) (Result, error) {
	assignments := make(map[string]assignment, len(points))
	chains := make(map[string]*models.ReasoningChain, len(points))
	chainFor := func(p models.Point) *models.ReasoningChain {
		if c, ok := chains[p.PointID]; ok {
			return c
		}
		c := &models.ReasoningChain{OperationID: operationID, PointID: p.PointID, Phase: "grouping"}
		chains[p.PointID] = c
		return c
	}

	// Pass 1: explicit equipment metadata wins outright. Container objects
	// (structured views, device objects) describe no equipment instance and
	// go straight to the unknown group without consulting the LLM.
	var remaining []models.Point
	for _, p := range points {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if p.PointType == models.PointTypeStructuredView || p.PointType == models.PointTypeDevice {
			assignments[p.PointID] = assignment{equipment: models.EquipmentUnknown, method: "container"}
			chainFor(p).Append(models.StepIdentification, "container object",
				"structured view and device objects carry no equipment instance", nil)
			continue
		}
		if equip := explicitEquipment(p); equip != "" {
			d := e.an.Decompose(p.PointName, p.Unit)
			assignments[p.PointID] = assignment{
				equipment: equip,
				instance:  e.instanceID(d),
				method:    "explicit",
			}
			chainFor(p).Append(models.StepIdentification, "explicit equipment type",
				fmt.Sprintf("input carried equipment_type=%s", equip), nil)
			continue
		}
		remaining = append(remaining, p)
	}

	// Pass 2: group the rest by leading prefix and walk the cascade.
	prefixes := groupByPrefix(remaining)
	llmPending := make(map[string][]models.Point)
	for _, prefix := range sortedKeys(prefixes) {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		group := prefixes[prefix]
		equip, method := e.cascade(prefix, group, nil)
		if equip == "" {
			llmPending[prefix] = group
			continue
		}
		e.assignGroup(assignments, chains, operationID, prefix, group, equip, method)
	}

	// Cascade step (d): LLM batch inference over the undecided prefixes.
	if len(llmPending) > 0 {
		e.resolveWithLLM(ctx, llmPending, assignments, chains, operationID)
	}

	// Pass 3: verify groups and reassign contradictory points.
	e.verify(assignments, chains, points)

	// Assemble output.
	res := Result{
		Groups:     make(Groups),
		Confidence: make(map[string]float64),
		Method:     make(map[string]string, len(assignments)),
	}
	byPointID := make(map[string]models.Point, len(points))
	for _, p := range points {
		byPointID[p.PointID] = p
	}
	for id, a := range assignments {
		p := byPointID[id]
		if res.Groups[a.equipment] == nil {
			res.Groups[a.equipment] = make(map[string][]models.Point)
		}
		res.Groups[a.equipment][a.instance] = append(res.Groups[a.equipment][a.instance], p)
		res.Method[id] = a.method
	}
	// Stable point order inside each instance.
	for _, instances := range res.Groups {
		for _, pts := range instances {
			sort.Slice(pts, func(i, j int) bool { return pts[i].PointID < pts[j].PointID })
		}
	}
	for equip, instances := range res.Groups {
		for inst, pts := range instances {
			res.Confidence[equip+"/"+inst] = e.groupConfidence(equip, pts)
		}
	}

	if emit != nil {
		for _, p := range points {
			if c, ok := chains[p.PointID]; ok {
				emit(*c)
			}
		}
	}
	return res, nil
}

func (e *Engine) assignGroup(assignments map[string]assignment, chains map[string]*models.ReasoningChain,
	operationID, prefix string, group []models.Point, equip, method string) {
	for _, p := range group {
		d := e.an.Decompose(p.PointName, p.Unit)
		assignments[p.PointID] = assignment{equipment: equip, instance: e.instanceID(d), method: method}
		c, ok := chains[p.PointID]
		if !ok {
			c = &models.ReasoningChain{OperationID: operationID, PointID: p.PointID, Phase: "grouping"}
			chains[p.PointID] = c
		}
		c.Append(models.StepIdentification, "prefix grouping",
			fmt.Sprintf("prefix %q resolved to %s via %s", prefix, equip, method), nil)
	}
}

// explicitEquipment reads an equipment type already present on the input.
func explicitEquipment(p models.Point) string {
	for _, key := range []string{"equipment_type", "equipmentType"} {
		if v, ok := p.Raw[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

// prefixOf is the leading dot-separated segment of a point name.
func prefixOf(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

func groupByPrefix(points []models.Point) map[string][]models.Point {
	out := make(map[string][]models.Point)
	for _, p := range points {
		out[prefixOf(p.PointName)] = append(out[prefixOf(p.PointName)], p)
	}
	return out
}

// cascade resolves a prefix via (a) ontology direct pattern match,
// (b) component-substring match, (c) standard-point-name match. It returns
// "" when only the LLM can decide. exclude removes candidate equipment
// types during verification reassignment.
func (e *Engine) cascade(prefix string, group []models.Point, exclude map[string]bool) (string, string) {
	candidates := e.ont.AllEquipmentTypes()
	if exclude != nil {
		filtered := candidates[:0:0]
		for _, t := range candidates {
			if !exclude[t] {
				filtered = append(filtered, t)
			}
		}
		candidates = filtered
	}

	// (a) direct pattern match on the prefix, longest pattern first so
	// "CH-SYS" beats "CH".
	base := strings.ToUpper(strings.TrimRight(prefix, "0123456789-_ "))
	type hit struct {
		equip   string
		pattern string
	}
	var hits []hit
	for _, t := range candidates {
		eq, _ := e.ont.EquipmentTypeInfo(t)
		patterns := append(append([]string{}, eq.NamePatterns...), eq.Abbreviations...)
		for _, pat := range patterns {
			up := strings.ToUpper(pat)
			if base == up || strings.HasPrefix(base, up) {
				hits = append(hits, hit{equip: t, pattern: up})
			}
		}
	}
	if len(hits) > 0 {
		sort.Slice(hits, func(i, j int) bool {
			if len(hits[i].pattern) != len(hits[j].pattern) {
				return len(hits[i].pattern) > len(hits[j].pattern)
			}
			return hits[i].equip < hits[j].equip
		})
		return hits[0].equip, "pattern"
	}

	// (b) component-substring match across the group's suffixes.
	if equip := e.bestByScore(candidates, group, e.componentHits); equip != "" {
		return equip, "component"
	}

	// (c) standard-point-name match.
	if equip := e.bestByScore(candidates, group, e.standardPointHits); equip != "" {
		return equip, "standard_point"
	}
	return "", ""
}

func (e *Engine) bestByScore(candidates []string, group []models.Point, score func(string, []models.Point) int) string {
	best, bestScore, tie := "", 0, false
	for _, t := range candidates {
		s := score(t, group)
		switch {
		case s > bestScore:
			best, bestScore, tie = t, s, false
		case s == bestScore && s > 0:
			tie = true
		}
	}
	if bestScore == 0 || tie {
		return ""
	}
	return best
}

func (e *Engine) componentHits(equip string, group []models.Point) int {
	hits := 0
	for _, comp := range e.ont.ComponentsFor(equip) {
		aliases := append([]string{comp.ID, comp.Name}, comp.Aliases...)
		for _, p := range group {
			lower := strings.ToLower(p.PointName)
			for _, a := range aliases {
				a = strings.ToLower(a)
				if len(a) >= 3 && strings.Contains(lower, a) {
					hits++
					break
				}
			}
		}
	}
	return hits
}

func (e *Engine) standardPointHits(equip string, group []models.Point) int {
	hits := 0
	for _, sp := range e.ont.StandardPoints(equip) {
		want := normalize(sp.Name)
		if want == "" {
			continue
		}
		for _, p := range group {
			if strings.Contains(normalize(p.PointName), want) {
				hits++
				break
			}
		}
	}
	return hits
}

func normalize(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '_', '-', ' ':
			return -1
		}
		return r
	}, s)
}

// instanceID applies the configured instance-id strategy to a decomposition.
func (e *Engine) instanceID(d models.Decomposition) string {
	if len(d.InstanceGroups) == 0 {
		return ""
	}
	if e.instanceStrategy == "last_numeric" {
		return d.InstanceGroups[len(d.InstanceGroups)-1]
	}
	return strings.Join(d.InstanceGroups, "_")
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
