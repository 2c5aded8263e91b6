package leonardo

import "strings"

type GenerationStatus string

const (
	GenerationPending  GenerationStatus = "PENDING"
	GenerationComplete GenerationStatus = "COMPLETE"
	GenerationFailed   GenerationStatus = "FAILED"
)

func (s GenerationStatus) Terminal() bool {
	return s == GenerationComplete || s == GenerationFailed
}

func normalizeGenerationStatus(raw string) GenerationStatus {
	switch GenerationStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case GenerationComplete:
		return GenerationComplete
	case GenerationFailed:
		return GenerationFailed
	default:
		return GenerationPending
	}
}

type TrainingStatus string

const (
	TrainingPending  TrainingStatus = "PENDING"
	TrainingTraining TrainingStatus = "TRAINING"
	TrainingComplete TrainingStatus = "COMPLETE"
	TrainingFailed   TrainingStatus = "FAILED"
)

func (s TrainingStatus) Terminal() bool {
	return s == TrainingComplete || s == TrainingFailed
}

func normalizeTrainingStatus(raw string) TrainingStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TRAINING", "PROCESSING":
		return TrainingTraining
	case "COMPLETE", "COMPLETED":
		return TrainingComplete
	case "FAILED":
		return TrainingFailed
	default:
		return TrainingPending
	}
}

// SeedStrength controls how closely output follows the seed image.
type SeedStrength string

const (
	SeedHigh SeedStrength = "High"
	SeedLow  SeedStrength = "Low"
)

type SeedReference struct {
	ImageID  string
	Strength SeedStrength
}

type GenerationRequest struct {
	Prompt     string
	ImageCount int
	Seed       *SeedReference
	// ModelID overrides the configured base model, e.g. with a trained custom model.
	ModelID string
}

type Image struct {
	ImageID string `json:"image_id"`
	URL     string `json:"url"`
}

type DatasetSpec struct {
	Name        string
	Description string
	SeedImageID string
}

type Dataset struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

type TrainingRequest struct {
	DatasetID      string
	Name           string
	Description    string
	InstancePrompt string
	ModelType      string
}

type TrainingSubmission struct {
	ModelID    string `json:"model_id"`
	TrainingID string `json:"training_id"`
	// Attempts is how many submissions were made, including the successful one.
	Attempts int `json:"attempts"`
}

// Wire shapes.

type controlnet struct {
	InitImageID    string `json:"initImageId"`
	InitImageType  string `json:"initImageType"`
	PreprocessorID int    `json:"preprocessorId"`
	StrengthType   string `json:"strengthType"`
}

type generationBody struct {
	Prompt      string       `json:"prompt"`
	NumImages   int          `json:"num_images"`
	ModelID     string       `json:"modelId,omitempty"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Alchemy     bool         `json:"alchemy"`
	PresetStyle string       `json:"presetStyle,omitempty"`
	Controlnets []controlnet `json:"controlnets,omitempty"`
}

type sdGenerationJob struct {
	GenerationID string `json:"generationId"`
	Status       string `json:"status,omitempty"`
}

type submitGenerationResponse struct {
	SDGenerationJob *sdGenerationJob `json:"sdGenerationJob"`
}

type wireImage struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type generationResponse struct {
	GenerationsByPK *struct {
		ID              string      `json:"id"`
		Status          string      `json:"status"`
		GeneratedImages []wireImage `json:"generated_images"`
	} `json:"generations_by_pk"`
	SDGenerationJob *sdGenerationJob `json:"sdGenerationJob"`
}

type createDatasetBody struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SeedImageID string `json:"seedImageId,omitempty"`
}

type createDatasetResponse struct {
	DatasetID         string `json:"datasetId"`
	InsertDatasetsOne *struct {
		ID string `json:"id"`
	} `json:"insert_datasets_one"`
}

type uploadImageBody struct {
	ImageID string `json:"imageId"`
}

type datasetResponse struct {
	DatasetsByPK *struct {
		ID            string      `json:"id"`
		Name          string      `json:"name"`
		DatasetImages []wireImage `json:"dataset_images"`
	} `json:"datasets_by_pk"`
}

type trainingBody struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	DatasetID      string `json:"datasetId"`
	InstancePrompt string `json:"instance_prompt"`
	ModelType      string `json:"modelType"`
	Resolution     int    `json:"resolution"`
	SDVersion      string `json:"sd_Version"`
	Strength       string `json:"strength"`
}

type trainingResponse struct {
	SDTrainingJob *struct {
		ID            string `json:"id"`
		CustomModelID string `json:"customModelId"`
	} `json:"sdTrainingJob"`
}

type modelResponse struct {
	CustomModelsByPK *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"custom_models_by_pk"`
}

func toImages(in []wireImage) []Image {
	out := make([]Image, 0, len(in))
	for _, w := range in {
		if w.ID == "" {
			continue
		}
		out = append(out, Image{ImageID: w.ID, URL: w.URL})
	}
	return out
}
