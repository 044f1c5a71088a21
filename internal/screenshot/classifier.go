// Package screenshot scores an image against a set of weighted heuristic
// rules to decide whether it is a UI screenshot rather than a photograph.
// Deterministic and offline: no ML model, no network call.
package screenshot

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/your-org/photovault/internal/models"
)

// Input is everything the classifier needs to score one image. Fields the
// caller could not determine should be left at their zero value; the
// corresponding rule simply contributes nothing.
type Input struct {
	Filename     string
	MimeType     string
	Width        int
	Height       int
	CameraMake   string
	CameraModel  string
	Software     string
	ExposureTime string
	FNumber      float64
	ISO          int
	ObjectLabels []string // from the Object Detector, e.g. "person", "text"
}

// Result is the classifier's verdict plus the accumulated score, so
// callers can log why a borderline image landed where it did.
type Result struct {
	IsScreenshot bool
	Score        float64
	Reasons      []string
}

var screenshotFilenamePattern = regexp.MustCompile(`(?i)(screenshot|screen[_-]?shot|scrnshot|capture)`)

// commonScreenRatios holds device/display aspect ratios (width:height,
// expressed as width/height) that skew toward UI captures rather than
// camera sensors.
var commonScreenRatios = []float64{16.0 / 9, 16.0 / 10, 4.0 / 3, 3.0 / 2, 1}

const ratioTolerance = 0.02

// Classify scores in against the rule set and returns a verdict. The
// threshold is the minimum accumulated score (roughly 0-1 scale, rules can
// push it past 1) to call the image a screenshot.
func Classify(in Input, threshold float64) Result {
	var score float64
	var reasons []string

	add := func(weight float64, reason string) {
		score += weight
		reasons = append(reasons, reason)
	}

	if screenshotFilenamePattern.MatchString(filepath.Base(in.Filename)) {
		add(0.6, "filename-pattern")
	}

	if in.MimeType == "image/png" {
		add(0.15, "png-format")
	}

	if in.CameraMake == "" && in.CameraModel == "" {
		add(0.25, "no-camera-tags")
	}

	if in.Software != "" && looksLikeOSOrBrowser(in.Software) {
		add(0.2, "software-os-or-browser")
	}

	if in.ExposureTime == "" && in.FNumber == 0 && in.ISO == 0 {
		add(0.2, "missing-exposure-triad")
	}

	if in.Width > 0 && in.Height > 0 && matchesScreenRatio(in.Width, in.Height) {
		add(0.1, "screen-aspect-ratio")
	}

	for _, label := range in.ObjectLabels {
		if label == "text" || label == "icon" || label == "ui" {
			add(0.15, "ui-object-detected")
			break
		}
	}

	return Result{
		IsScreenshot: score >= threshold,
		Score:        score,
		Reasons:      reasons,
	}
}

// ClassifyImage is a convenience wrapper that reads the rule inputs off an
// Image/Metadata pair and a set of already-detected object labels.
func ClassifyImage(img models.Image, meta models.Metadata, objectLabels []string, threshold float64) Result {
	return Classify(Input{
		Filename:     img.OriginalPath,
		MimeType:     img.MimeType,
		Width:        img.Width,
		Height:       img.Height,
		CameraMake:   meta.CameraMake,
		CameraModel:  meta.CameraModel,
		Software:     meta.Software,
		ExposureTime: meta.ExposureTime,
		FNumber:      meta.FNumber,
		ISO:          meta.ISO,
		ObjectLabels: objectLabels,
	}, threshold)
}

func looksLikeOSOrBrowser(software string) bool {
	s := strings.ToLower(software)
	for _, marker := range []string{"windows", "macos", "mac os", "chrome", "firefox", "safari", "android", "ios", "gimp", "paint"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func matchesScreenRatio(w, h int) bool {
	ratio := float64(w) / float64(h)
	for _, r := range commonScreenRatios {
		if abs(ratio-r) <= ratioTolerance {
			return true
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
