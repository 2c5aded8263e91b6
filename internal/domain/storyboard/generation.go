package storyboard

import (
	"time"

	"gorm.io/datatypes"
)

const (
	GenerationPending  = "PENDING"
	GenerationComplete = "COMPLETE"
	GenerationFailed   = "FAILED"
)

// GenerationRecord mirrors one remote generation job so it can be displayed
// without another round trip once it is terminal.
type GenerationRecord struct {
	GenerationID string         `gorm:"column:generation_id;primaryKey" json:"generation_id"`
	Username     string         `gorm:"column:username;not null;index" json:"username"`
	Prompt       string         `gorm:"column:prompt;type:text" json:"prompt"`
	ImageCount   int            `gorm:"column:image_count;not null" json:"image_count"`
	SeedImageID  string         `gorm:"column:seed_image_id" json:"seed_image_id,omitempty"`
	ModelID      string         `gorm:"column:model_id" json:"model_id,omitempty"`
	Status       string         `gorm:"column:status;not null;index" json:"status"`
	Images       datatypes.JSON `gorm:"column:images;type:jsonb" json:"images"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (GenerationRecord) TableName() string { return "generation_record" }

func (r *GenerationRecord) Terminal() bool {
	return r.Status == GenerationComplete || r.Status == GenerationFailed
}
