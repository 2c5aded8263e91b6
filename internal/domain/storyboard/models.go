package storyboard

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Training statuses as reported by the remote training service.
const (
	TrainingPending  = "PENDING"
	TrainingTraining = "TRAINING"
	TrainingComplete = "COMPLETE"
	TrainingFailed   = "FAILED"
)

// CustomModel is the one trained model a user currently renders with.
// A new training run for the same username replaces the row.
type CustomModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username      string    `gorm:"column:username;not null;uniqueIndex" json:"username"`
	ModelID       string    `gorm:"column:model_id;not null;index" json:"model_id"`
	TrainingJobID string    `gorm:"column:training_job_id" json:"training_job_id,omitempty"`
	DatasetID     string    `gorm:"column:dataset_id" json:"dataset_id,omitempty"`
	Description   string    `gorm:"column:description;type:text" json:"description,omitempty"`
	Status        string    `gorm:"column:status;not null;index" json:"status"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (CustomModel) TableName() string { return "custom_model" }

func (m *CustomModel) Ready() bool { return m != nil && m.Status == TrainingComplete }

type DiaryEntry struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username      string         `gorm:"column:username;not null;index" json:"username"`
	ImageKey      string         `gorm:"column:image_key;not null" json:"image_key"`
	ImageURL      string         `gorm:"column:image_url" json:"image_url"`
	ExtractedText string         `gorm:"column:extracted_text;type:text" json:"extracted_text"`
	Scenes        datatypes.JSON `gorm:"column:scenes;type:jsonb" json:"scenes"`
	SheetURL      string         `gorm:"column:sheet_url" json:"sheet_url,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

func (DiaryEntry) TableName() string { return "diary_entry" }

const (
	ImageKindCharacter = "character"
	ImageKindScene     = "scene"
)

// GeneratedImage is one image produced for a user, either a seed character
// candidate or a rendered diary scene.
type GeneratedImage struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DiaryEntryID *uuid.UUID `gorm:"type:uuid;column:diary_entry_id;index" json:"diary_entry_id,omitempty"`
	Username     string     `gorm:"column:username;not null;index" json:"username"`
	JobRunID     *uuid.UUID `gorm:"type:uuid;column:job_run_id;index" json:"job_run_id,omitempty"`
	GenerationID string     `gorm:"column:generation_id;not null;index" json:"generation_id"`
	ImageID      string     `gorm:"column:image_id;not null" json:"image_id"`
	ImageURL     string     `gorm:"column:image_url;not null" json:"image_url"`
	Description  string     `gorm:"column:description;type:text" json:"description,omitempty"`
	Kind         string     `gorm:"column:kind;not null;index" json:"kind"`
	SceneIndex   int        `gorm:"column:scene_index;not null;default:0" json:"scene_index"`
	CreatedAt    time.Time  `gorm:"not null;index" json:"created_at"`
}

func (GeneratedImage) TableName() string { return "generated_image" }
