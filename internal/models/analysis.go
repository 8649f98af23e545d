package models

import (
	"time"
)

// Status is the lifecycle state of an analysis
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Statistics summarizes a finished displacement analysis
type Statistics struct {
	// Displacement magnitude statistics over the reliable points, in pixels
	MeanDisplacement   float64 `json:"mean_displacement"`
	MaxDisplacement    float64 `json:"max_displacement"`
	MedianDisplacement float64 `json:"median_displacement"`
	StdDisplacement    float64 `json:"std_displacement"`

	// CorrelationQuality is the mean ZNCC over all grid points
	CorrelationQuality float64 `json:"correlation_quality"`

	// ReliablePointsPercentage is the share of grid points with ZNCC > 0.5
	ReliablePointsPercentage float64 `json:"reliable_points_percentage"`

	// AnalysisPoints is the number of grid points
	AnalysisPoints int `json:"analysis_points"`

	// ValidPoints is the number of points left after filtering
	ValidPoints int `json:"valid_points"`

	// ImageShape is the common image size as [height, width]
	ImageShape [2]int `json:"image_shape"`

	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`

	WindowSize int `json:"window_size"`
	StepSize   int `json:"step_size"`
}

// Parameters are the correlation parameters an analysis ran with
type Parameters struct {
	SubsetSize     int     `json:"subset_size"`
	Step           int     `json:"step"`
	MaxIter        int     `json:"max_iter"`
	MinCorrelation float64 `json:"min_correlation"`
}

// ImagePaths lists the artifacts rendered for an analysis. Empty entries
// were not written.
type ImagePaths struct {
	Original        string `json:"original,omitempty"`
	Deformed        string `json:"deformed,omitempty"`
	Displacement    string `json:"displacement,omitempty"`
	DisplacementPDF string `json:"displacement_pdf,omitempty"`
}

// Analysis is the record of one reference/deformed image comparison
type Analysis struct {
	TestID string `json:"test_id"`
	Status Status `json:"status"`

	// Error holds the failure message when Status is error or cancelled
	Error string `json:"error,omitempty"`

	ImagePaths *ImagePaths `json:"image_paths,omitempty"`
	Statistics *Statistics `json:"statistics,omitempty"`
	Parameters *Parameters `json:"parameters,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// ResultsJSONPath is where this record was written
	ResultsJSONPath string `json:"results_json_path,omitempty"`
}

// Failed reports whether the analysis ended without a usable result
func (a *Analysis) Failed() bool {
	return a.Status == StatusError || a.Status == StatusCancelled
}

// Summary is the short listing entry of a stored analysis
type Summary struct {
	TestID           string
	Status           Status
	Timestamp        time.Time
	MeanDisplacement float64
	Path             string
}
