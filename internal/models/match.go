package models

// AtsCheck is the applicant-tracking-system friendliness block of an analysis.
type AtsCheck struct {
	Keywords     string  `json:"Keywords"`
	Formatting   string  `json:"Formatting"`
	Completeness string  `json:"Completeness"`
	Score        float64 `json:"score"`
}

type Counterfactual struct {
	Requirement         string  `json:"requirement"`
	SuggestedChange     string  `json:"suggested_change"`
	PredictedScoreDelta float64 `json:"predicted_score_delta"`
}

type DecisionRationale struct {
	MainReasons       []string `json:"main_reasons"`
	KeyMissingFactors []string `json:"key_missing_factors"`
}

// MatchResult is computed per (CV, JD) pair and never stored.
type MatchResult struct {
	Score              float64            `json:"score"`
	DetailedScores     map[string]float64 `json:"detailed_scores"`
	Strengths          []string           `json:"strengths"`
	Weaknesses         []string           `json:"weaknesses"`
	Recommendation     string             `json:"recommendation"`
	AtsCheck           AtsCheck           `json:"ats_check"`
	Counterfactuals    []Counterfactual   `json:"counterfactuals"`
	SkillsAnalysis     string             `json:"skills_analysis,omitempty"`
	ExperienceAnalysis string             `json:"experience_analysis,omitempty"`
	DecisionRationale  *DecisionRationale `json:"decision_rationale,omitempty"`

	// Issues lists the fields that were missing or out of range and got defaulted.
	Issues []string `json:"-"`
}

type MatchRequest struct {
	CVText string `json:"cv_text"`
	JDText string `json:"jd_text"`
}

type MatchScoreResponse struct {
	Score float64 `json:"score"`
}

type MatchDetailedResponse struct {
	Score    float64      `json:"score"`
	Analysis *MatchResult `json:"analysis"`
}

type HRMatchRequest struct {
	CVIDs     []uint `json:"cv_ids"`
	JDText    string `json:"jd_text"`
	Anonymize bool   `json:"anonymize"`
}

type HRMatchItem struct {
	CVID             uint               `json:"cv_id"`
	Filename         string             `json:"filename"`
	Score            float64            `json:"score"`
	DetailedScores   map[string]float64 `json:"detailed_scores"`
	Analysis         *MatchResult       `json:"analysis,omitempty"`
	AnonymizedCVText string             `json:"anonymized_cv_text,omitempty"`
	AnonymizedJDText string             `json:"anonymized_jd_text,omitempty"`
}

type HRMatchResponse struct {
	Results []HRMatchItem `json:"results"`
	Failed  int           `json:"failed"`
}
