package models

import (
	"time"

	"gorm.io/datatypes"
)

type Collection struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     uint      `gorm:"not null;uniqueIndex:idx_collection_owner_name" json:"owner_id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex:idx_collection_owner_name" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CVCount     int64     `gorm:"-" json:"cv_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Collection) TableName() string {
	return "cv_collections"
}

type CV struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OwnerID        uint           `gorm:"not null;index" json:"owner_id"`
	CollectionID   *uint          `gorm:"index" json:"collection_id"`
	Filename       string         `gorm:"size:512;not null" json:"filename"`
	ObjectKey      string         `gorm:"size:1024;not null" json:"-"`
	ContentText    string         `gorm:"type:text" json:"-"`
	ParsedMetadata datatypes.JSON `json:"parsed_metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (CV) TableName() string {
	return "cvs"
}

type CollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CVContentResponse struct {
	ID             uint           `json:"id"`
	Filename       string         `json:"filename"`
	ContentText    string         `json:"content_text"`
	ParsedMetadata datatypes.JSON `json:"parsed_metadata,omitempty"`
}

type CVSearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type CVSearchHit struct {
	CVID     uint    `json:"cv_id"`
	Filename string  `json:"filename"`
	Score    float32 `json:"score"`
	Snippet  string  `json:"snippet"`
}
