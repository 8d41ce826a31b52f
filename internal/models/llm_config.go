package models

import "time"

// LLMConfig is the single active LLM configuration of a user.
type LLMConfig struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"-"`
	Provider    string    `gorm:"size:32;not null" json:"provider"`
	APIKey      string    `gorm:"size:512" json:"api_key,omitempty"`
	ModelName   string    `gorm:"size:256;not null" json:"model_name"`
	BaseURL     string    `gorm:"size:512" json:"ollama_base_url,omitempty"`
	Temperature float64   `gorm:"not null" json:"temperature"`
	TopP        float64   `gorm:"not null" json:"top_p"`
	MaxTokens   int       `gorm:"not null" json:"max_tokens"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (LLMConfig) TableName() string {
	return "llm_configs"
}

const (
	DefaultTemperature = 0.2
	DefaultTopP        = 1.0
	DefaultMaxTokens   = 1024
)

type LLMConfigRequest struct {
	Provider      string   `json:"provider"`
	APIKey        string   `json:"api_key"`
	ModelName     string   `json:"model_name"`
	OllamaBaseURL string   `json:"ollama_base_url"`
	Temperature   *float64 `json:"temperature"`
	TopP          *float64 `json:"top_p"`
	MaxTokens     *int     `json:"max_tokens"`
}
