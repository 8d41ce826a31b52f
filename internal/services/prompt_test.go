package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMatchPromptEmbedsTextsVerbatim(t *testing.T) {
	pb := NewPromptBuilder()
	cv := "5 years Python, Django, AWS\n100% uptime {braces} and %s verbs"
	jd := "Looking for Python backend engineer, AWS required"

	prompt := pb.BuildMatchPrompt(cv, jd)

	assert.Contains(t, prompt, cv)
	assert.Contains(t, prompt, jd)
	assert.Contains(t, prompt, "Return ONLY a single JSON object")
	for _, key := range []string{`"score"`, `"detailed_scores"`, `"strengths"`, `"weaknesses"`, `"recommendation"`, `"ats_check"`, `"counterfactuals"`, `"predicted_score_delta"`} {
		assert.Contains(t, prompt, key)
	}
	assert.Less(t, strings.Index(prompt, jd), strings.Index(prompt, cv))
}

func TestBuildCVExtractionPromptTruncates(t *testing.T) {
	long := strings.Repeat("é", maxExtractionRunes+500)

	prompt := NewPromptBuilder().BuildCVExtractionPrompt(long)

	assert.Contains(t, prompt, strings.Repeat("é", maxExtractionRunes))
	assert.NotContains(t, prompt, strings.Repeat("é", maxExtractionRunes+1))
	assert.Contains(t, prompt, `"full_name"`)
}
