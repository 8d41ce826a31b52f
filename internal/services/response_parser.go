package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"cvmatcher/backend/internal/llm"
	"cvmatcher/backend/internal/models"
)

const matchResultSchema = `{
  "type": "object",
  "required": ["score", "detailed_scores", "strengths", "weaknesses", "recommendation", "ats_check", "counterfactuals"],
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 1},
    "detailed_scores": {
      "type": "object",
      "additionalProperties": {"type": "number", "minimum": 0, "maximum": 1}
    },
    "strengths": {"type": "array", "items": {"type": "string"}},
    "weaknesses": {"type": "array", "items": {"type": "string"}},
    "recommendation": {"type": "string"},
    "ats_check": {
      "type": "object",
      "required": ["Keywords", "Formatting", "Completeness", "score"],
      "properties": {"score": {"type": "number", "minimum": 0, "maximum": 100}}
    },
    "counterfactuals": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["requirement", "suggested_change", "predicted_score_delta"],
        "properties": {"predicted_score_delta": {"type": "number"}}
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
)

func matchSchema() *gojsonschema.Schema {
	schemaOnce.Do(func() {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(matchResultSchema))
		if err == nil {
			compiledSchema = s
		}
	})
	return compiledSchema
}

// ParseMatchResponse turns raw model text into a MatchResult. It tries a strict
// parse first, then the substring between the first '{' and the last '}'.
// Missing or out-of-range fields are defaulted; only text without any
// recoverable JSON object yields llm.ErrParse.
func ParseMatchResponse(raw string) (*models.MatchResult, error) {
	data, err := decodeJSONObject(raw)
	if err != nil {
		return nil, err
	}

	result := &models.MatchResult{
		Score:              unitScore(data["score"]),
		DetailedScores:     detailedScores(data["detailed_scores"]),
		Strengths:          coerceStringList(data["strengths"]),
		Weaknesses:         coerceStringList(data["weaknesses"]),
		Recommendation:     recommendation(data["recommendation"]),
		AtsCheck:           atsCheck(data["ats_check"]),
		Counterfactuals:    counterfactuals(data["counterfactuals"]),
		SkillsAnalysis:     coerceString(data["skills_analysis"]),
		ExperienceAnalysis: coerceString(data["experience_analysis"]),
		DecisionRationale:  decisionRationale(data["decision_rationale"]),
		Issues:             schemaIssues(data),
	}
	return result, nil
}

// decodeJSONObject is the two-stage extraction shared by every LLM reply parser.
func decodeJSONObject(raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", llm.ErrParse)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err == nil && data != nil {
		return data, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", llm.ErrParse)
	}

	data = nil
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil || data == nil {
		return nil, fmt.Errorf("%w: invalid JSON object: %v", llm.ErrParse, err)
	}
	return data, nil
}

func schemaIssues(data map[string]any) []string {
	schema := matchSchema()
	if schema == nil {
		return nil
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return []string{err.Error()}
	}

	issues := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		issues = append(issues, e.String())
	}
	return issues
}

// unitScore returns v when it is a number in [0,1], else 0.
func unitScore(v any) float64 {
	return inRangeOrZero(coerceFloat(v), 0, 1)
}

func inRangeOrZero(f, lo, hi float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < lo || f > hi {
		return 0
	}
	return f
}

func detailedScores(v any) map[string]float64 {
	scores := map[string]float64{}
	m, ok := v.(map[string]any)
	if !ok {
		return scores
	}
	for name, raw := range m {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		scores[name] = unitScore(raw)
	}
	return scores
}

func recommendation(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "yes"
		}
		return "no"
	case string:
		r := strings.ToLower(strings.TrimSpace(val))
		if r == "" {
			return "no"
		}
		return r
	default:
		return "no"
	}
}

func atsCheck(v any) models.AtsCheck {
	m, ok := v.(map[string]any)
	if !ok {
		return models.AtsCheck{}
	}
	return models.AtsCheck{
		Keywords:     coerceString(lookupFold(m, "Keywords")),
		Formatting:   coerceString(lookupFold(m, "Formatting")),
		Completeness: coerceString(lookupFold(m, "Completeness")),
		Score:        inRangeOrZero(coerceFloat(lookupFold(m, "score")), 0, 100),
	}
}

func counterfactuals(v any) []models.Counterfactual {
	out := []models.Counterfactual{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		cf := models.Counterfactual{
			Requirement:     coerceString(m["requirement"]),
			SuggestedChange: coerceString(m["suggested_change"]),
		}
		if cf.Requirement == "" && cf.SuggestedChange == "" {
			continue
		}
		delta := coerceFloat(m["predicted_score_delta"])
		if !math.IsNaN(delta) && !math.IsInf(delta, 0) {
			cf.PredictedScoreDelta = delta
		}
		out = append(out, cf)
	}
	return out
}

func decisionRationale(v any) *models.DecisionRationale {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &models.DecisionRationale{
		MainReasons:       coerceStringList(m["main_reasons"]),
		KeyMissingFactors: coerceStringList(m["key_missing_factors"]),
	}
}

func lookupFold(m map[string]any, key string) any {
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStringList(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	}
	return out
}
