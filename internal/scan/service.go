package scan

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/labelcheck/internal/vision"
)

// IDGenerator generates unique IDs for scans
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs the scan pipeline: it is the ingestion trigger's entry point,
// the orchestrator that advances records through their statuses, and the
// retry handler. All status writes go through DB.UpdateScan's
// compare-and-swap so a retry racing an in-flight run loses at the store.
type Service struct {
	db          DB
	storage     Storage
	gen         vision.Generator
	analyzer    *vision.Analyzer
	watcher     *watcher
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage, gen vision.Generator) *Service {
	return NewServiceWithDeps(db, storage, gen, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, gen vision.Generator, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		gen:         gen,
		analyzer:    vision.NewAnalyzer(gen),
		watcher:     newWatcher(),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// StartScan stores an uploaded scan image under the scan-image path
// convention and kicks off processing in the background. It returns the new
// scan id immediately; the caller observes progress through the record.
func (s *Service) StartScan(ownerID, fileName string, data []byte, contentType string) (string, error) {
	if ownerID == "" {
		return "", ErrUnauthenticated
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image upload", ErrInvalidArgument)
	}

	scanID := s.idGenerator.Generate()

	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		ext = ".jpg"
	}
	path := uploadPath(ownerID, scanID, s.timeSource.Now(), ext)

	if _, err := s.storage.Save(path, data); err != nil {
		return "", fmt.Errorf("saving scan image: %w", err)
	}

	// The upload is finalized once Save returns; hand off to the trigger.
	go s.HandleUpload(context.Background(), path, contentType)

	return scanID, nil
}

// HandleUpload is the ingestion trigger, invoked once per finalized upload.
// Uploads outside the scan-image path convention are ignored without error.
// Failures after record creation are recorded on the scan itself; the record
// is never left in processing or analyzing after an unrecoverable fault.
func (s *Service) HandleUpload(ctx context.Context, path string, contentType string) {
	ref, ok := parseUploadPath(path)
	if !ok {
		slog.Debug("Not a scan image, skipping", "path", path)
		return
	}

	slog.Info("Processing scan upload", "scan_id", ref.scanID, "owner_id", ref.ownerID)

	rec := &Record{
		ScanID:               ref.scanID,
		OwnerID:              ref.ownerID,
		CreatedAt:            s.timeSource.Now(),
		Status:               StatusProcessing,
		ImageURL:             "/files/" + path,
		ExtractedIngredients: []string{},
	}

	// The record must exist, in processing, before any model call so a
	// concurrent subscriber immediately observes it.
	if err := s.db.CreateScan(rec); err != nil {
		// No record to report the failure against
		slog.Error("Failed to create scan record", "scan_id", ref.scanID, "error", err)
		return
	}
	s.watcher.publish(rec)

	data, err := s.storage.Get(path)
	if err != nil {
		s.failScan(ref.scanID, StatusProcessing, fmt.Errorf("downloading scan image: %w", err))
		return
	}

	ingredients, err := vision.ExtractIngredients(ctx, s.gen, data, contentType)
	if err != nil {
		s.failScan(ref.scanID, StatusProcessing, err)
		return
	}

	// Ingredients and the analyzing transition land in one write; a reader
	// never sees one without the other.
	updated, err := s.db.UpdateScan(ref.scanID, StatusProcessing, func(r *Record) {
		r.Status = StatusAnalyzing
		r.ExtractedIngredients = ingredients
	})
	if err != nil {
		slog.Error("Failed to advance scan to analyzing", "scan_id", ref.scanID, "error", err)
		return
	}
	s.watcher.publish(updated)

	if _, err := s.runAnalysis(ctx, ref.scanID, ingredients); err != nil {
		slog.Error("Scan analysis failed", "scan_id", ref.scanID, "error", err)
		return
	}

	slog.Info("Scan processing complete", "scan_id", ref.scanID)
}

// Retry re-enters the analysis stage for a failed scan, reusing the
// ingredients extracted before the failure. Unlike the ingestion path it is a
// direct request/response call and returns the result to the caller.
func (s *Service) Retry(ctx context.Context, scanID, userID string) (*vision.AnalysisResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	rec, err := s.db.GetScan(scanID)
	if err != nil {
		return nil, err
	}

	if rec.OwnerID != userID {
		return nil, fmt.Errorf("%w: scan belongs to another user", ErrPermissionDenied)
	}
	if rec.Status != StatusError {
		return nil, fmt.Errorf("%w: only failed scans can be retried", ErrFailedPrecondition)
	}
	if len(rec.ExtractedIngredients) == 0 {
		return nil, fmt.Errorf("%w: no ingredients to analyze", ErrFailedPrecondition)
	}

	updated, err := s.db.UpdateScan(scanID, StatusError, func(r *Record) {
		r.Status = StatusAnalyzing
		r.ErrorMessage = ""
	})
	if err != nil {
		return nil, err
	}
	s.watcher.publish(updated)

	result, err := s.runAnalysis(ctx, scanID, updated.ExtractedIngredients)
	if err != nil {
		return nil, fmt.Errorf("retrying analysis: %w", err)
	}
	return result, nil
}

// AnalyzeIngredients scores an ingredient list directly, outside the image
// pipeline. The caller must be authenticated and the list non-empty.
func (s *Service) AnalyzeIngredients(ctx context.Context, userID string, ingredients []string) (*vision.AnalysisResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if len(ingredients) == 0 {
		return nil, fmt.Errorf("%w: ingredients array is required and must not be empty", ErrInvalidArgument)
	}

	return s.analyzer.Analyze(ctx, ingredients)
}

// GetScan returns a single scan, scoped to its owner.
func (s *Service) GetScan(scanID, userID string) (*Record, error) {
	rec, err := s.db.GetScan(scanID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != userID {
		return nil, fmt.Errorf("%w: scan belongs to another user", ErrPermissionDenied)
	}
	return rec, nil
}

// ListScans returns the owner's scan history, newest first.
func (s *Service) ListScans(userID string) ([]*Record, error) {
	scans, err := s.db.ListScansByOwner(userID)
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return scans, nil
}

// WatchScan subscribes to record updates for one scan. The full record is
// delivered after every committed write until cancel is called.
func (s *Service) WatchScan(scanID string) (<-chan *Record, func()) {
	return s.watcher.subscribe(scanID)
}

// ScanImage returns the stored image bytes for a scan-image path, scoped to
// the owner encoded in the path.
func (s *Service) ScanImage(path, userID string) ([]byte, error) {
	ref, ok := parseUploadPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if ref.ownerID != userID {
		return nil, fmt.Errorf("%w: image belongs to another user", ErrPermissionDenied)
	}
	return s.storage.Get(path)
}

// runAnalysis is the shared analysis stage: it moves an analyzing record to
// complete or error and publishes the outcome. Both the automatic pipeline
// and retry end here.
func (s *Service) runAnalysis(ctx context.Context, scanID string, ingredients []string) (*vision.AnalysisResult, error) {
	result, err := s.analyzer.Analyze(ctx, ingredients)
	if err != nil {
		s.failScan(scanID, StatusAnalyzing, err)
		return nil, err
	}

	updated, err := s.db.UpdateScan(scanID, StatusAnalyzing, func(r *Record) {
		r.Status = StatusComplete
		r.AnalysisResult = result
		r.ErrorMessage = ""
	})
	if err != nil {
		return nil, fmt.Errorf("recording analysis result: %w", err)
	}
	s.watcher.publish(updated)

	return result, nil
}

// failScan rolls a record forward to error with a descriptive message.
// ExtractedIngredients is left untouched so retry can reuse it.
func (s *Service) failScan(scanID string, from Status, cause error) {
	rec, err := s.db.UpdateScan(scanID, from, func(r *Record) {
		r.Status = StatusError
		r.ErrorMessage = cause.Error()
		r.AnalysisResult = nil
	})
	if err != nil {
		slog.Error("Failed to record scan failure", "scan_id", scanID, "cause", cause, "error", err)
		return
	}
	slog.Error("Scan failed", "scan_id", scanID, "error", cause)
	s.watcher.publish(rec)
}
