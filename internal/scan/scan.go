package scan

import (
	"time"

	"github.com/zombor/labelcheck/internal/vision"
)

// Status is the pipeline state of a scan record.
type Status string

const (
	// StatusProcessing means the record exists and ingredient extraction is pending.
	StatusProcessing Status = "processing"
	// StatusAnalyzing means ingredients are extracted and the health analysis is pending.
	StatusAnalyzing Status = "analyzing"
	// StatusComplete means the analysis result is persisted.
	StatusComplete Status = "complete"
	// StatusError means a stage failed; the record carries the failure message.
	StatusError Status = "error"
)

// Record tracks one ingredient-label scan through the pipeline.
//
// AnalysisResult is set exactly when Status is complete, and ErrorMessage
// exactly when Status is error. ExtractedIngredients is written once, together
// with the analyzing transition, and deliberately survives a later error so a
// retry can re-enter at the analysis stage without another vision call.
type Record struct {
	ScanID               string                 `json:"scanId"`
	OwnerID              string                 `json:"ownerId"`
	CreatedAt            time.Time              `json:"createdAt"`
	Status               Status                 `json:"status"`
	ImageURL             string                 `json:"imageUrl"`
	ExtractedIngredients []string               `json:"extractedIngredients"`
	AnalysisResult       *vision.AnalysisResult `json:"analysisResult"`
	ErrorMessage         string                 `json:"errorMessage,omitempty"`
}
