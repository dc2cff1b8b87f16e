// Package tagging enriches grouped points with component, function,
// phenomenon/quantity, a stable tag set, and an enhanced description.
package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yourorg/enos-mapper/internal/ai"
	"github.com/yourorg/enos-mapper/internal/analyzer"
	"github.com/yourorg/enos-mapper/internal/models"
	"github.com/yourorg/enos-mapper/internal/ontology"
)

// Engine assigns semantic tags to grouped points.
type Engine struct {
	ont *ontology.Store
	an  *analyzer.Analyzer
	svc ai.Service
}

// NewEngine creates a tagging engine.
func NewEngine(ont *ontology.Store, an *analyzer.Analyzer, svc ai.Service) *Engine {
	return &Engine{ont: ont, an: an, svc: svc}
}

// Tag produces the TaggedPoint for one grouped point. The originating Point
// is embedded via Clone so every field survives byte-for-byte.
func (e *Engine) Tag(ctx context.Context, equip, instance string, p models.Point, chain *models.ReasoningChain) models.TaggedPoint {
	d := e.an.Decompose(p.PointName, p.Unit)
	chain.Append(models.StepAnalysis, "name decomposition",
		fmt.Sprintf("segments=%v measurement=%s device=%s property=%s", d.Segments, d.MeasurementType, d.Device, d.Property), nil)

	tp := models.TaggedPoint{
		Point:         p.Clone(),
		EquipmentType: equip,
		InstanceID:    instance,
	}

	tp.Component, tp.Subcomponent = e.matchComponents(equip, p.PointName, d)
	tp.Function, _ = e.inferFunction(equip, p)
	tp.Phenomenon, tp.Quantity = phenomenonAndQuantity(d, p.Unit)

	// The LLM is consulted only when every deterministic rule fell through
	// and the point carries free-text to reason over.
	if tp.Component == "" && tp.Function == models.FunctionUnknown && tp.Phenomenon == "" && p.Description != "" {
		e.tagWithLLM(ctx, &tp, chain)
	}

	stdName := e.matchedStandardPoint(equip, p.PointName)
	tp.Tags = buildTags(tp, stdName)
	tp.EnhancedDescription = enhancedDescription(tp)

	chain.Append(models.StepIdentification, "semantic tags",
		fmt.Sprintf("component=%s function=%s phenomenon=%s/%s", tp.Component, tp.Function, tp.Phenomenon, tp.Quantity),
		map[string]any{"tags": tp.TagList()})
	return tp
}

// matchComponents finds the component (and a secondary subcomponent) of the
// equipment whose id or alias appears in the point name. A literal id hit
// keeps the id as the component label; alias hits use the display name.
func (e *Engine) matchComponents(equip, pointName string, d models.Decomposition) (string, string) {
	lower := strings.ToLower(pointName)
	var primary, secondary string

	for _, comp := range e.ont.ComponentsFor(equip) {
		label := ""
		if strings.Contains(lower, strings.ToLower(comp.ID)) {
			label = comp.ID
		} else {
			for _, alias := range append([]string{comp.Name}, comp.Aliases...) {
				alias = strings.ToLower(alias)
				if len(alias) >= 3 && strings.Contains(lower, alias) {
					label = comp.Name
					break
				}
			}
		}
		if label == "" && d.Device != "" {
			// The decomposition's device may identify a component whose
			// aliases never appear verbatim ("drive" for VSD).
			for _, alias := range comp.Aliases {
				if strings.EqualFold(alias, d.Device) {
					label = comp.Name
					break
				}
			}
		}
		if label == "" {
			continue
		}
		if primary == "" {
			primary = label
		} else if secondary == "" && label != primary {
			secondary = label
		}
	}
	return primary, secondary
}

// inferFunction applies the precedence chain: transport-type default,
// name-pattern rules, standard-point lookup, unknown.
func (e *Engine) inferFunction(equip string, p models.Point) (models.PointFunction, string) {
	// (a) transport type defaults
	switch {
	case strings.HasSuffix(string(p.PointType), "-input"):
		return models.FunctionSensor, "transport"
	case strings.HasSuffix(string(p.PointType), "-output"):
		return models.FunctionCommand, "transport"
	case strings.HasSuffix(string(p.PointType), "-value"):
		return models.FunctionSetpoint, "transport"
	}

	// (b) name-pattern rules
	lower := strings.ToLower(p.PointName)
	switch {
	case strings.Contains(lower, "setpoint") || strings.Contains(lower, "stpt"):
		return models.FunctionSetpoint, "name_pattern"
	case strings.Contains(lower, "cmd") || strings.Contains(lower, "command") || strings.Contains(lower, "enable"):
		return models.FunctionCommand, "name_pattern"
	case strings.Contains(lower, "status") || strings.Contains(lower, "alarm") || strings.Contains(lower, "fault"):
		return models.FunctionStatus, "name_pattern"
	}

	// (c) standard-point lookup
	for _, sp := range e.ont.StandardPoints(equip) {
		if sp.Function == "" {
			continue
		}
		if strings.Contains(normalize(p.PointName), normalize(sp.Name)) {
			return sp.Function, "standard_point"
		}
	}

	return models.FunctionUnknown, ""
}

func (e *Engine) matchedStandardPoint(equip, pointName string) string {
	for _, sp := range e.ont.StandardPoints(equip) {
		if strings.Contains(normalize(pointName), normalize(sp.Name)) {
			return sp.Name
		}
	}
	return ""
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

// measurementPhenomenon maps the analyzer's measurement type to the
// resource taxonomy's phenomenon name.
var measurementPhenomenon = map[string]string{
	"temperature": "temperature",
	"pressure":    "pressure",
	"flow":        "flow",
	"frequency":   "frequency",
	"power":       "power",
	"energy":      "energy",
	"humidity":    "humidity",
	"speed":       "speed",
	"position":    "position",
	"status":      "status",
}

func phenomenonAndQuantity(d models.Decomposition, unit string) (string, string) {
	phenomenon := measurementPhenomenon[d.MeasurementType]
	if phenomenon == "" && d.MeasurementType == "setpoint" {
		// A setpoint's phenomenon comes from its unit when the name is mute.
		switch strings.ToLower(unit) {
		case "degc", "degf", "k":
			phenomenon = "temperature"
		case "kpa", "pa", "psi", "bar":
			phenomenon = "pressure"
		}
	}

	quantity := ""
	switch d.Property {
	case "supply", "return":
		quantity = d.Property
	case "speed":
		quantity = "output"
	}
	if quantity == "" && phenomenon == "frequency" {
		quantity = "output"
	}
	if quantity == "" && phenomenon == "temperature" {
		for _, seg := range d.Segments {
			l := strings.ToLower(seg)
			if strings.Contains(l, "room") || strings.Contains(l, "zone") || strings.Contains(l, "space") {
				quantity = "room"
				break
			}
		}
	}
	return phenomenon, quantity
}

// tagSuggestion is the envelope accepted from the LLM for ambiguous points.
type tagSuggestion struct {
	Component  string `json:"component"`
	Function   string `json:"function"`
	Phenomenon string `json:"phenomenon"`
}

const tagSystemPrompt = `You classify a building management system point given its name and description.
Respond with exactly one JSON object {"component": "...", "function": "...", "phenomenon": "..."}.
function must be one of sensor, command, setpoint, status, unknown. Use "" for anything you cannot determine.`

func (e *Engine) tagWithLLM(ctx context.Context, tp *models.TaggedPoint, chain *models.ReasoningChain) {
	if e.svc == nil || !e.svc.Enabled() {
		return
	}
	user := fmt.Sprintf("point name: %s\ndescription: %s\nequipment: %s\nunit: %s",
		tp.PointName, tp.Description, tp.EquipmentType, tp.Unit)
	raw, err := e.svc.Complete(ctx, "tag_point", ai.Prompt{System: tagSystemPrompt, User: user})
	if err != nil {
		slog.Warn("llm tagging failed", "point_id", tp.PointID, "err", err)
		return
	}
	var s tagSuggestion
	if err := json.Unmarshal(raw, &s); err != nil {
		return
	}
	if tp.Component == "" {
		tp.Component = s.Component
	}
	switch models.PointFunction(s.Function) {
	case models.FunctionSensor, models.FunctionCommand, models.FunctionSetpoint, models.FunctionStatus:
		tp.Function = models.PointFunction(s.Function)
	}
	if tp.Phenomenon == "" {
		tp.Phenomenon = s.Phenomenon
	}
	chain.Append(models.StepGeneration, "llm tag suggestion",
		fmt.Sprintf("component=%s function=%s phenomenon=%s", s.Component, s.Function, s.Phenomenon), nil)
}

// buildTags assembles the stable key:value tag set.
func buildTags(tp models.TaggedPoint, standardPoint string) map[string]string {
	tags := map[string]string{}
	put := func(k, v string) {
		if v != "" {
			tags[k] = v
		}
	}
	put("equipment", tp.EquipmentType)
	put("instance", tp.InstanceID)
	put("component", tp.Component)
	put("function", string(tp.Function))
	put("unit", tp.Unit)
	put("transport", string(tp.PointType))
	put("standard_point", standardPoint)
	return tags
}

// enhancedDescription renders the deterministic template
// "{equipment} {instance} — {component} — {function} — {phenomenon/quantity} [— in {unit}]"
// with elided parts omitted.
func enhancedDescription(tp models.TaggedPoint) string {
	var parts []string
	head := tp.EquipmentType
	if tp.InstanceID != "" {
		head += " " + tp.InstanceID
	}
	if head != "" && head != models.EquipmentUnknown {
		parts = append(parts, head)
	}
	if tp.Component != "" {
		parts = append(parts, tp.Component)
	}
	if tp.Function != "" && tp.Function != models.FunctionUnknown {
		parts = append(parts, string(tp.Function))
	}
	if tp.Phenomenon != "" {
		pq := tp.Phenomenon
		if tp.Quantity != "" {
			pq += "/" + tp.Quantity
		}
		parts = append(parts, pq)
	}
	out := strings.Join(parts, " — ")
	if tp.Unit != "" && out != "" {
		out += " — in " + tp.Unit
	}
	return out
}
