package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EvaluationStatus string

const (
	StatusQueued     EvaluationStatus = "queued"
	StatusProcessing EvaluationStatus = "processing"
	StatusCompleted  EvaluationStatus = "completed"
	StatusFailed     EvaluationStatus = "failed"
)

// EvaluationRun scores a labelled CSV dataset with the owner's LLM configuration.
type EvaluationRun struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID      uint             `gorm:"not null;index" json:"owner_id"`
	FileName     string           `gorm:"size:512" json:"file_name"`
	DatasetKey   string           `gorm:"size:1024;not null" json:"-"`
	CVColumn     string           `gorm:"size:255;not null" json:"cv_column"`
	JDColumn     string           `gorm:"size:255;not null" json:"jd_column"`
	LabelColumn  string           `gorm:"size:255;not null" json:"label_column"`
	LabelRules   datatypes.JSON   `json:"label_rules"`
	Threshold    float64          `gorm:"not null" json:"threshold"`
	Status       EvaluationStatus `gorm:"size:32;not null;default:'queued';index" json:"status"`
	Metrics      datatypes.JSON   `json:"metrics,omitempty"`
	ErrorMessage string           `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func (EvaluationRun) TableName() string {
	return "evaluation_runs"
}

func (e *EvaluationRun) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// LabelRules map raw label values of the dataset onto the binary match outcome.
type LabelRules struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
}

type ConfusionMatrix struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

type EvaluationMetrics struct {
	Total     int             `json:"total"`
	Evaluated int             `json:"evaluated"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Accuracy  float64         `json:"accuracy"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	Confusion ConfusionMatrix `json:"confusion"`
}

type DatasetSummary struct {
	FileName  string              `json:"file_name"`
	FileSize  int64               `json:"file_size"`
	Columns   []string            `json:"columns"`
	TotalRows int                 `json:"total_rows"`
	Preview   []map[string]string `json:"preview"`
}

type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type LabelSummary struct {
	Column    string       `json:"label_column"`
	TotalRows int          `json:"total_rows"`
	Labels    []LabelCount `json:"labels"`
}

type StartEvaluationResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
