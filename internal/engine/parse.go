package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Summary is the relationship verdict extracted from a model reply.
type Summary struct {
	Relationship string `json:"relationship"`
	Impression   string `json:"impression"`
}

// Tier names the parser that produced a result.
type Tier string

const (
	TierNone        Tier = ""
	TierWholeJSON   Tier = "whole_json"
	TierSpanJSON    Tier = "span_json"
	TierSpanLiteral Tier = "span_literal"
)

// ParseResult is the outcome of ParseSummary. Summary and Tier are only set
// when OK is true.
type ParseResult struct {
	Summary Summary
	Tier    Tier
	OK      bool
}

// LiteralParser decodes JSON-like text that strict JSON rejects, such as
// single-quoted keys.
type LiteralParser interface {
	ParseLiteral(text string) (any, error)
}

// spanPattern matches the widest {...} or [...] in the text.
var spanPattern = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)

type tier struct {
	name  Tier
	parse func(text string) (any, error)
}

// ParseSummary runs the parser tiers in order and returns the first result
// that is an object with a "relationship" key.
func ParseSummary(text string, lit LiteralParser) ParseResult {
	tiers := []tier{
		{TierWholeJSON, wholeJSON},
		{TierSpanJSON, spanJSON},
	}
	if lit != nil {
		tiers = append(tiers, tier{TierSpanLiteral, func(text string) (any, error) {
			span := spanPattern.FindString(text)
			if span == "" {
				return nil, fmt.Errorf("no object span")
			}
			return lit.ParseLiteral(span)
		}})
	}

	for _, t := range tiers {
		v, err := t.parse(text)
		if err != nil {
			continue
		}
		if s, ok := summaryFrom(v); ok {
			return ParseResult{Summary: s, Tier: t.name, OK: true}
		}
	}
	return ParseResult{}
}

func wholeJSON(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func spanJSON(text string) (any, error) {
	span := spanPattern.FindString(text)
	if span == "" {
		return nil, fmt.Errorf("no object span")
	}
	return wholeJSON(span)
}

func summaryFrom(v any) (Summary, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Summary{}, false
	}
	rel, ok := obj["relationship"]
	if !ok {
		return Summary{}, false
	}
	return Summary{
		Relationship: stringify(rel),
		Impression:   stringify(obj["impression"]),
	}, true
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64, int, int64, bool:
		return fmt.Sprint(x)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

// YAMLLiteral parses with a YAML decoder. YAML flow mappings accept both
// quote styles, which covers the single-quoted dicts models often emit.
type YAMLLiteral struct{}

// ParseLiteral implements LiteralParser.
func (YAMLLiteral) ParseLiteral(text string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("literal parse: %w", err)
	}
	return normalizeLiteral(v), nil
}

// normalizeLiteral maps Python's None onto nil so it stringifies to "".
func normalizeLiteral(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			x[k] = normalizeLiteral(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = normalizeLiteral(val)
		}
		return x
	case string:
		if x == "None" {
			return nil
		}
		return x
	default:
		return x
	}
}
