// Package pipeline is the Pipeline Orchestrator: the single place that
// turns one source-tree path into a persisted Image. It runs a fixed
// seven-step contract — hash probe, fan-out, barrier, derive, place,
// persist, finalize — decoding each file's pixels exactly once and
// sharing that decode across every fan-out stage.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photovault/internal/config"
	"github.com/your-org/photovault/internal/faces"
	"github.com/your-org/photovault/internal/geo"
	"github.com/your-org/photovault/internal/hashing"
	pvimaging "github.com/your-org/photovault/internal/imaging"
	"github.com/your-org/photovault/internal/layout"
	"github.com/your-org/photovault/internal/metadata"
	"github.com/your-org/photovault/internal/models"
	"github.com/your-org/photovault/internal/objects"
	"github.com/your-org/photovault/internal/observability"
	"github.com/your-org/photovault/internal/screenshot"
	"github.com/your-org/photovault/internal/storage"
)

// Outcome summarizes how Process handled one file, for the caller
// (typically the Job Queue's handler) to log and for metrics.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDegraded  Outcome = "degraded"
)

// Result is Process's return value: the persisted Image plus how it got
// there.
type Result struct {
	Image   *models.Image
	Outcome Outcome
}

// Pipeline wires together every component a single file's processing
// touches. Detector, Embedder, and GeoIndex are optional: their absence
// puts the corresponding stage in degraded mode rather than failing the
// whole file, per the external ML model contract.
type Pipeline struct {
	store      *storage.Store
	layoutMgr  *layout.Manager
	faceClient *faces.Client
	detector   *objects.Detector
	embedder   *objects.Embedder
	geoIdx     *geo.Index

	screenshotThreshold float64
	minSimilarity       float64
	reviewSimilarity    float64
}

// New builds a Pipeline. detector, embedder, and geoIdx may be nil.
func New(cfg *config.Config, store *storage.Store, layoutMgr *layout.Manager, faceClient *faces.Client,
	detector *objects.Detector, embedder *objects.Embedder, geoIdx *geo.Index) *Pipeline {
	return &Pipeline{
		store:               store,
		layoutMgr:           layoutMgr,
		faceClient:          faceClient,
		detector:            detector,
		embedder:            embedder,
		geoIdx:              geoIdx,
		screenshotThreshold: cfg.Screenshot.ScoreThreshold,
		minSimilarity:       cfg.Faces.MinSimilarity,
		reviewSimilarity:    cfg.Faces.ReviewSimilarity,
	}
}

func stageTimer(stage string) func() {
	start := time.Now()
	return func() {
		observability.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// Process runs the full seven-step contract on one source path.
func (p *Pipeline) Process(ctx context.Context, path string) (*Result, error) {
	// 1. Hash probe.
	probeDone := stageTimer("hash_probe")
	sum, err := hashing.File(path)
	probeDone()
	if err != nil {
		observability.ImagesProcessed.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}

	existing, err := p.store.GetImageByHash(ctx, sum.Hash)
	if err != nil {
		observability.ImagesProcessed.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("probe hash %s: %w", sum.Hash, err)
	}
	if existing != nil {
		observability.ImagesProcessed.WithLabelValues("duplicate").Inc()
		return &Result{Image: existing, Outcome: OutcomeDuplicate}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		observability.ImagesProcessed.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	meta, metaErr := metadata.Extract(bytes.NewReader(data), modTime(path))
	if metaErr != nil {
		slog.Debug("no usable exif segment, using fallback metadata", "path", path, "error", metaErr)
	}

	decodeDone := stageTimer("decode")
	img, err := pvimaging.Decode(bytes.NewReader(data), meta.Orientation, path)
	decodeDone()
	if err != nil {
		observability.ImagesProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}
	analysis := pvimaging.Summarize(img)
	mimeType := http.DetectContentType(data)

	draft := &models.Image{
		OriginalPath:  path,
		SizeBytes:     sum.Size,
		MimeType:      mimeType,
		Width:         analysis.Width,
		Height:        analysis.Height,
		DominantColor: analysis.DominantColor,
	}

	// 2/3. Fan-out + barrier: object detection and face recognition run
	// concurrently over the same decoded image; both must finish before
	// the derive step, since screenshot classification needs the object
	// labels.
	var (
		wg          sync.WaitGroup
		objDets     []objects.Detection
		faceResults []faces.FaceResult
		mu          sync.Mutex
		degraded    bool
	)
	markDegraded := func() {
		mu.Lock()
		degraded = true
		mu.Unlock()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		if p.detector == nil {
			return
		}
		defer stageTimer("object_detect")()
		inputW, inputH := p.detector.InputSize()
		letterboxed, scale, padX, padY := objects.Letterbox(img, inputW, inputH)
		chw := objects.ToCHW(letterboxed)
		dets, err := p.detector.Detect(chw, analysis.Width, analysis.Height, scale, padX, padY)
		if err != nil {
			slog.Warn("object detection failed, continuing in degraded mode", "path", path, "error", err)
			markDegraded()
			return
		}
		objDets = dets
		observability.ObjectsDetected.Add(float64(len(dets)))
	}()
	go func() {
		defer wg.Done()
		if p.faceClient == nil {
			return
		}
		defer stageTimer("face_recognize")()
		jpegBytes, err := encodeJPEG(img)
		if err != nil {
			slog.Warn("encode image for face service failed", "path", path, "error", err)
			markDegraded()
			return
		}
		resp, err := p.faceClient.RecognizeFaces(ctx, jpegBytes, filepath.Base(path))
		if err != nil {
			if _, ok := err.(*faces.RejectedError); ok {
				slog.Warn("face service rejected image", "path", path, "error", err)
			} else {
				slog.Warn("face service unavailable, continuing in degraded mode", "path", path, "error", err)
				markDegraded()
			}
			return
		}
		faceResults = resp.Result
		observability.FacesDetected.Add(float64(len(faceResults)))
	}()
	wg.Wait()

	var objectLabels []string
	for _, d := range objDets {
		objectLabels = append(objectLabels, d.Label)
	}

	// 4. Derive: screenshot classification and geolocation, both computed
	// from already-fetched data with no further I/O.
	verdict := screenshot.ClassifyImage(*draft, meta, objectLabels, p.screenshotThreshold)
	draft.IsScreenshot = verdict.IsScreenshot
	draft.ScreenshotConf = verdict.Score
	draft.Reasons = verdict.Reasons

	var cityLink *models.ImageCity
	if p.geoIdx != nil && meta.GPSLatitude != nil && meta.GPSLongitude != nil {
		match := p.geoIdx.Resolve(*meta.GPSLatitude, *meta.GPSLongitude, geo.MethodEXIFGPS)
		if match.Matched {
			cityLink = &models.ImageCity{
				CityID:        match.City.ID,
				Confidence:    match.Confidence,
				DistanceMiles: match.DistanceMiles,
				Method:        string(match.Method),
			}
		}
	}

	// 5. Place: copy into the canonical, content-addressed tree.
	takenAt := time.Now()
	if meta.TakenAt != nil {
		takenAt = *meta.TakenAt
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		ext = "jpg"
	}
	canonicalPath := p.layoutMgr.MediaPath(sum.Hash, takenAt, ext)
	if _, err := p.layoutMgr.Place(path, canonicalPath); err != nil {
		observability.ImagesProcessed.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("place %s: %w", path, err)
	}
	draft.Hash = sum.Hash
	draft.CanonicalPath = canonicalPath

	// 6. Persist.
	stored, created, err := p.store.UpsertImage(ctx, draft)
	if err != nil {
		observability.ImagesProcessed.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("upsert image: %w", err)
	}
	if !created {
		observability.ImagesProcessed.WithLabelValues("duplicate").Inc()
		return &Result{Image: stored, Outcome: OutcomeDuplicate}, nil
	}

	meta.ImageID = stored.ID
	if err := p.store.UpsertMetadata(ctx, &meta); err != nil {
		slog.Error("persist metadata", "image_id", stored.ID, "error", err)
		degraded = true
	}

	if len(objDets) > 0 {
		objs := make([]models.DetectedObject, 0, len(objDets))
		for _, d := range objDets {
			objs = append(objs, models.DetectedObject{ImageID: stored.ID, Label: d.Label, Confidence: d.Confidence, BBox: d.BBox})
		}
		if err := p.store.InsertObjects(ctx, objs); err != nil {
			slog.Error("persist objects", "image_id", stored.ID, "error", err)
			degraded = true
		}
	}

	for i, fr := range faceResults {
		face, err := p.buildFace(ctx, img, stored.ID, sum.Hash, fr, i)
		if err != nil {
			slog.Error("build face", "image_id", stored.ID, "error", err)
			degraded = true
			continue
		}
		if err := p.store.InsertFace(ctx, face); err != nil {
			slog.Error("insert face", "image_id", stored.ID, "error", err)
			degraded = true
		}
	}

	if cityLink != nil {
		cityLink.ImageID = stored.ID
		if err := p.store.LinkImageCity(ctx, *cityLink); err != nil {
			slog.Error("link image city", "image_id", stored.ID, "error", err)
			degraded = true
		}
	}

	// 7. Finalize.
	outcome := OutcomeCreated
	if degraded {
		outcome = OutcomeDegraded
	}
	observability.ImagesProcessed.WithLabelValues(string(outcome)).Inc()
	return &Result{Image: stored, Outcome: outcome}, nil
}

// buildFace crops the face region, places the crop under the canonical
// faces/ tree, computes the internal clustering embedding when an
// Embedder is configured, and resolves a matched Person from the
// recognition service's top subject candidate, which this module enrolls
// under the Person's id (see internal/training).
func (p *Pipeline) buildFace(ctx context.Context, img image.Image, imageID uuid.UUID, hash string, fr faces.FaceResult, index int) (*models.DetectedFace, error) {
	cropBytes, err := faces.Crop(img, fr.Box)
	if err != nil {
		return nil, fmt.Errorf("crop face %d: %w", index, err)
	}

	dstPath := p.layoutMgr.FacePath(hash, index, "jpg")
	if _, err := p.layoutMgr.PlaceBytes(cropBytes, dstPath); err != nil {
		return nil, fmt.Errorf("place face crop %d: %w", index, err)
	}

	face := &models.DetectedFace{
		ImageID:         imageID,
		BBox:            [4]float32{float32(fr.Box.XMin), float32(fr.Box.YMin), float32(fr.Box.XMax), float32(fr.Box.YMax)},
		CropKey:         dstPath,
		IsTrainingImage: true,
	}
	if fr.Box.Probability > 0 {
		face.Confidence = float32(fr.Box.Probability)
	}
	if fr.Age != nil {
		face.AgeLow = fr.Age.Low
		face.AgeHigh = fr.Age.High
		face.AgeConfidence = float32(fr.Age.Probability)
	}
	if fr.Gender != nil {
		face.Gender = fr.Gender.Value
		face.GenderConfidence = float32(fr.Gender.Probability)
	}
	for _, lm := range fr.Landmarks {
		face.Landmarks = append(face.Landmarks, models.FaceLandmark{X: lm.X, Y: lm.Y})
	}

	if p.embedder != nil {
		embW, embH := p.embedder.InputSize()
		faceImg := objects.CropFace(img, face.BBox, embW, embH)
		embedding, err := p.embedder.Extract(objects.ToCHW(faceImg))
		if err != nil {
			slog.Warn("internal face embedding failed", "error", err)
		} else {
			face.Embedding = embedding
		}
	}

	if len(fr.Subjects) > 0 && fr.Subjects[0].Similarity >= p.minSimilarity {
		if pid, err := uuid.Parse(fr.Subjects[0].Subject); err == nil {
			if person, err := p.store.GetPerson(ctx, pid); err == nil && person != nil {
				face.PersonID = &pid
				face.MatchScore = float32(fr.Subjects[0].Similarity)
				face.RecognitionMethod = models.RecognitionMethodCompreFace
				face.NeedsReview = fr.Subjects[0].Similarity < p.reviewSimilarity
				now := time.Now()
				face.AssignedAt = &now
			}
		}
	}

	return face, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Now()
	}
	return info.ModTime()
}
