package services

import (
	"fmt"
)

// maxExtractionRunes bounds the CV text sent for metadata extraction.
const maxExtractionRunes = 8000

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildMatchPrompt creates the CV/JD matching prompt. The same instruction
// block is sent to every provider and both texts are embedded verbatim.
func (pb *PromptBuilder) BuildMatchPrompt(cvText, jdText string) string {
	return fmt.Sprintf(`You are an expert technical recruiter and applicant tracking system (ATS) analyst.
Assess how well the candidate's CV fits the job description.

JOB DESCRIPTION:
<<<JD
%s
JD>>>

CANDIDATE CV:
<<<CV
%s
CV>>>

Scoring guidance:
- "score" is the overall fit between 0.0 (no fit) and 1.0 (perfect fit).
- "detailed_scores" holds sub-scores between 0.0 and 1.0, at least: "must_have_skills", "nice_to_have_skills", "experience", "education", "languages".
- "recommendation" is "yes" when the candidate should be shortlisted, otherwise "no".
- "ats_check" rates ATS friendliness: short notes for "Keywords", "Formatting" and "Completeness", and a "score" between 0 and 100.
- "counterfactuals" lists concrete CV changes that would raise the score, each with the job "requirement" it addresses, the "suggested_change", and the "predicted_score_delta" (0.0 to 1.0) on the overall score.

Return ONLY a single JSON object, with no prose, no markdown and no code fences, in exactly this shape:
{
  "score": <0.0-1.0>,
  "detailed_scores": {"must_have_skills": <0.0-1.0>, "nice_to_have_skills": <0.0-1.0>, "experience": <0.0-1.0>, "education": <0.0-1.0>, "languages": <0.0-1.0>},
  "strengths": ["<strength>", "..."],
  "weaknesses": ["<weakness>", "..."],
  "recommendation": "yes" | "no",
  "ats_check": {"Keywords": "<notes>", "Formatting": "<notes>", "Completeness": "<notes>", "score": <0-100>},
  "counterfactuals": [{"requirement": "<requirement>", "suggested_change": "<change>", "predicted_score_delta": <0.0-1.0>}],
  "skills_analysis": "<2-3 sentences>",
  "experience_analysis": "<2-3 sentences>",
  "decision_rationale": {"main_reasons": ["<reason>"], "key_missing_factors": ["<factor>"]}
}`, jdText, cvText)
}

// BuildCVExtractionPrompt asks the model to pull structured fields out of a CV.
func (pb *PromptBuilder) BuildCVExtractionPrompt(cvText string) string {
	runes := []rune(cvText)
	if len(runes) > maxExtractionRunes {
		cvText = string(runes[:maxExtractionRunes])
	}

	return fmt.Sprintf(`Extract structured information from the CV below.

CV:
<<<CV
%s
CV>>>

Return ONLY a single JSON object with these keys (use null or an empty list when the CV does not say):
{
  "full_name": "<string>",
  "email": "<string>",
  "phone": "<string>",
  "location": "<string>",
  "current_position": "<string>",
  "skills": ["<skill>"],
  "education": [{"degree": "<string>", "institution": "<string>", "year": "<string>"}],
  "experience": [{"title": "<string>", "company": "<string>", "start": "<string>", "end": "<string>", "description": "<string>"}],
  "projects": [{"name": "<string>", "description": "<string>"}]
}`, cvText)
}
