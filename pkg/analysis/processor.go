// Package analysis runs displacement analyses on image files and manages the
// per-test result folders: rendered images, the displacement map and a
// results JSON document.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"dicfield/internal/models"
	"dicfield/pkg/correlation"
	"dicfield/pkg/logging"
	"dicfield/pkg/visualization"
)

// Processor runs analyses and stores their results under ResultsDir, one
// sub-directory per test ID.
type Processor struct {
	// ResultsDir is the root of the per-test result folders.
	ResultsDir string

	// SaveImages enables the preprocessed image and displacement map PNGs.
	SaveImages bool

	// SavePDF additionally renders the displacement map as PDF.
	// Only used when SaveImages is true.
	SavePDF bool

	// Logger receives progress and diagnostic records. Nil discards them.
	Logger *slog.Logger

	// Progress, if set, is forwarded to the field computation.
	Progress correlation.ProgressCallback
}

// NewProcessor creates a processor writing images (PNG only) to resultsDir.
func NewProcessor(resultsDir string) *Processor {
	return &Processor{
		ResultsDir: resultsDir,
		SaveImages: true,
	}
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger == nil {
		return logging.Discard()
	}
	return p.Logger
}

// LoadImage decodes a PNG, JPEG, GIF, TIFF, BMP or WebP file.
func LoadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("image %s (%s) is empty", path, format)
	}
	return img, nil
}

// LoadImages loads the reference and deformed images and crops both to
// their common top-left region when the sizes differ.
//
// Parameters:
//   - path1: reference image file
//   - path2: deformed image file
//
// Returns:
//   - the two frames with identical dimensions, or an error if either file
//     cannot be read or decoded
func (p *Processor) LoadImages(path1, path2 string) (*correlation.Frame, *correlation.Frame, error) {
	img1, err := LoadImage(path1)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load reference image: %w", err)
	}
	img2, err := LoadImage(path2)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load deformed image: %w", err)
	}

	a := correlation.FrameFromImage(img1)
	b := correlation.FrameFromImage(img2)
	if a.Width != b.Width || a.Height != b.Height {
		p.logger().Warn("image sizes differ, cropping to common bounds",
			"reference", fmt.Sprintf("%dx%d", a.Width, a.Height),
			"deformed", fmt.Sprintf("%dx%d", b.Width, b.Height))
		a, b = correlation.CropToCommon(a, b)
	}
	return a, b, nil
}

// ValidateTestID rejects IDs that cannot be used as a directory name.
func ValidateTestID(testID string) error {
	if testID == "" || testID == "." || testID == ".." {
		return fmt.Errorf("invalid test id %q", testID)
	}
	if strings.ContainsAny(testID, `/\`) || filepath.Base(testID) != testID {
		return fmt.Errorf("test id %q must not contain path separators", testID)
	}
	return nil
}

// NewTestID returns a timestamp based test ID.
func NewTestID(now time.Time) string {
	return "test_" + now.Format("20060102_150405")
}

func (p *Processor) testDir(testID string) string {
	return filepath.Join(p.ResultsDir, testID)
}

func (p *Processor) resultsPath(testID string) string {
	return filepath.Join(p.testDir(testID), testID+"_results.json")
}

// Process computes the displacement field between two frames of equal size,
// renders the configured artifacts and writes the results JSON.
//
// Failures never panic or return an error: the returned record carries
// StatusError or StatusCancelled and the message instead.
func (p *Processor) Process(ctx context.Context, testID string, a, b *correlation.Frame, params correlation.Params) *models.Analysis {
	log := p.logger().With("test", testID)
	record := &models.Analysis{TestID: testID, Status: models.StatusProcessing}

	if err := ValidateTestID(testID); err != nil {
		return fail(record, err)
	}
	testDir := p.testDir(testID)
	if err := os.MkdirAll(testDir, 0755); err != nil {
		return fail(record, fmt.Errorf("failed to create test directory: %w", err))
	}

	log.Info("analysis started", "width", a.Width, "height", a.Height)
	opts := []correlation.Option{correlation.WithLogger(log)}
	if p.Progress != nil {
		opts = append(opts, correlation.WithProgress(p.Progress))
	}
	res := correlation.Run(ctx, a, b, params, opts...)

	record.Parameters = &models.Parameters{
		SubsetSize:     res.Params.SubsetSize,
		Step:           res.Params.Step,
		MaxIter:        res.Params.MaxIter,
		MinCorrelation: res.Params.MinCorrelation,
	}

	if res.Status == correlation.StatusCancelled {
		record.Status = models.StatusCancelled
		record.Error = res.Message
		record.Timestamp = time.Now()
		log.Warn("analysis cancelled", "reason", res.Message)
		p.store(record)
		return record
	}
	if res.Status == correlation.StatusNoValidPoints {
		log.Warn("no reliable points", "threshold", res.Params.MinCorrelation, "points", res.Stats.TotalPoints)
	}

	if p.SaveImages {
		record.ImagePaths = p.saveImages(log, testID, res)
	}

	record.Statistics = &models.Statistics{
		MeanDisplacement:         res.Stats.Mean,
		MaxDisplacement:          res.Stats.Max,
		MedianDisplacement:       res.Stats.Median,
		StdDisplacement:          res.Stats.Std,
		CorrelationQuality:       res.Quality.MeanCorrelation,
		ReliablePointsPercentage: res.Quality.ReliablePercentage,
		AnalysisPoints:           res.Stats.TotalPoints,
		ValidPoints:              res.Stats.ValidPoints,
		ImageShape:               [2]int{a.Height, a.Width},
		ProcessingTimeSeconds:    res.Elapsed.Seconds(),
		WindowSize:               res.Params.SubsetSize,
		StepSize:                 res.Params.Step,
	}
	record.Status = models.StatusCompleted
	record.Timestamp = time.Now()

	if err := p.store(record); err != nil {
		return fail(record, err)
	}
	log.Info("analysis completed",
		"meanDisplacement", res.Stats.Mean,
		"validPoints", res.Stats.ValidPoints,
		"elapsed", res.Elapsed)
	return record
}

// ProcessFiles loads both images and runs Process. A load failure is stored
// as an error record.
func (p *Processor) ProcessFiles(ctx context.Context, testID, path1, path2 string, params correlation.Params) *models.Analysis {
	a, b, err := p.LoadImages(path1, path2)
	if err != nil {
		record := fail(&models.Analysis{TestID: testID}, err)
		p.logger().Error("failed to load images", "test", testID, "error", err)
		if ValidateTestID(testID) == nil {
			p.store(record)
		}
		return record
	}
	return p.Process(ctx, testID, a, b, params)
}

func fail(record *models.Analysis, err error) *models.Analysis {
	record.Status = models.StatusError
	record.Error = err.Error()
	record.Statistics = nil
	record.ImagePaths = nil
	record.Timestamp = time.Now()
	return record
}

// saveImages renders the artifacts of res. Rendering failures are logged and
// the corresponding path is left empty.
func (p *Processor) saveImages(log *slog.Logger, testID string, res correlation.Result) *models.ImagePaths {
	dir := p.testDir(testID)
	paths := &models.ImagePaths{}

	save := func(name string, write func(string) error) string {
		path := filepath.Join(dir, testID+"_"+name)
		if err := write(path); err != nil {
			log.Warn("failed to save image", "file", path, "error", err)
			return ""
		}
		return path
	}

	paths.Original = save("original.png", func(path string) error {
		return visualization.SaveGrayPNG(path, res.Field.Ref)
	})
	paths.Deformed = save("deformed.png", func(path string) error {
		return visualization.SaveGrayPNG(path, res.Field.Def)
	})

	rows, cols := res.Field.Dims()
	if rows < 2 || cols < 2 {
		log.Warn("grid too small for a displacement map", "rows", rows, "cols", cols)
		return paths
	}
	renderMap := func(path string) error {
		return visualization.SaveDisplacementMap(path, res.Filtered, res.Field.X, res.Field.Y, res.Stats)
	}
	paths.Displacement = save("displacement.png", renderMap)
	if p.SavePDF {
		paths.DisplacementPDF = save("displacement.pdf", renderMap)
	}
	return paths
}

// store writes record as <ResultsDir>/<id>/<id>_results.json.
func (p *Processor) store(record *models.Analysis) error {
	path := p.resultsPath(record.TestID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create test directory: %w", err)
	}
	record.ResultsJSONPath = path

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// ErrNotFound is returned by GetResults for an unknown test ID.
var ErrNotFound = errors.New("test results not found")

// GetResults reads the stored record of testID.
func (p *Processor) GetResults(testID string) (*models.Analysis, error) {
	if err := ValidateTestID(testID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p.resultsPath(testID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", testID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	record := &models.Analysis{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to decode results of %s: %w", testID, err)
	}
	return record, nil
}

// ListTests returns a summary of every stored test, newest first. Folders
// without a readable results document are skipped. A missing ResultsDir
// yields an empty list.
func (p *Processor) ListTests() ([]models.Summary, error) {
	entries, err := os.ReadDir(p.ResultsDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results directory: %w", err)
	}

	var tests []models.Summary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := p.resultsPath(entry.Name())
		data, err := os.ReadFile(path)
		if err != nil || !gjson.ValidBytes(data) {
			p.logger().Debug("skipping result folder", "dir", entry.Name())
			continue
		}

		doc := gjson.ParseBytes(data)
		summary := models.Summary{
			TestID:           doc.Get("test_id").String(),
			Status:           models.Status(doc.Get("status").String()),
			MeanDisplacement: doc.Get("statistics.mean_displacement").Float(),
			Path:             path,
		}
		if summary.TestID == "" {
			summary.TestID = entry.Name()
		}
		if ts, err := time.Parse(time.RFC3339Nano, doc.Get("timestamp").String()); err == nil {
			summary.Timestamp = ts
		}
		tests = append(tests, summary)
	}

	sort.SliceStable(tests, func(i, j int) bool {
		return tests[i].Timestamp.After(tests[j].Timestamp)
	})
	return tests, nil
}
