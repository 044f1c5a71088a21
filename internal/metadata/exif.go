// Package metadata extracts EXIF attributes from image files and projects
// them into the domain's typed Metadata record. Extraction failures are
// never fatal to the pipeline: a missing or corrupt EXIF segment yields a
// fallback Metadata (orientation 1, TakenAt set from the file's
// modification time, DateInferred true) plus ErrUnavailable.
package metadata

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/your-org/photovault/internal/models"
)

// ErrUnavailable indicates the file carried no usable EXIF segment. The
// caller should proceed with filesystem-derived fallbacks.
var ErrUnavailable = errors.New("metadata unavailable")

const exifDateLayout = "2006:01:02 15:04:05"

// Extract reads EXIF tags from r and projects them into a models.Metadata.
// fallbackModTime is used for TakenAt when no EXIF timestamp is present.
func Extract(r io.Reader, fallbackModTime time.Time) (models.Metadata, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return fallbackMetadata(fallbackModTime), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m := models.Metadata{Orientation: 1}

	if v, err := x.Get(exif.Orientation); err == nil {
		if o, err := v.Int(0); err == nil {
			m.Orientation = o
		}
	}

	if t, err := x.DateTime(); err == nil {
		taken := t
		m.TakenAt = &taken
	} else if v, err := x.Get(exif.DateTimeOriginal); err == nil {
		if s, err := v.StringVal(); err == nil {
			if t, err := time.Parse(exifDateLayout, s); err == nil {
				m.TakenAt = &t
			}
		}
	}
	if m.TakenAt == nil {
		m.TakenAt = &fallbackModTime
		m.DateInferred = true
	}

	m.CameraMake = stringTag(x, exif.Make)
	m.CameraModel = stringTag(x, exif.Model)
	m.LensModel = stringTag(x, exif.LensModel)
	m.Software = stringTag(x, exif.Software)
	m.Artist = stringTag(x, exif.Artist)
	m.Copyright = stringTag(x, exif.Copyright)
	m.ExposureTime = ratioString(x, exif.ExposureTime)

	if v, err := x.Get(exif.FNumber); err == nil {
		m.FNumber = ratioFloat(v)
	}
	if v, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if iso, err := v.Int(0); err == nil {
			m.ISO = iso
		}
	}
	if v, err := x.Get(exif.FocalLength); err == nil {
		m.FocalLength = ratioFloat(v)
	}
	if v, err := x.Get(exif.Rating); err == nil {
		if r, err := v.Int(0); err == nil {
			m.Rating = r
		}
	}

	if lat, lon, err := x.LatLong(); err == nil {
		m.GPSLatitude = &lat
		m.GPSLongitude = &lon
	}

	return m, nil
}

// ExtractFile opens path and extracts its EXIF metadata, falling back to
// the file's own modification time when the image carries none.
func ExtractFile(path string) (models.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Metadata{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return models.Metadata{}, fmt.Errorf("stat %s: %w", path, err)
	}

	return Extract(f, info.ModTime())
}

func fallbackMetadata(modTime time.Time) models.Metadata {
	return models.Metadata{
		Orientation:  1,
		TakenAt:      &modTime,
		DateInferred: true,
	}
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	v, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := v.StringVal()
	if err != nil {
		return ""
	}
	return s
}

func ratioString(x *exif.Exif, name exif.FieldName) string {
	v, err := x.Get(name)
	if err != nil {
		return ""
	}
	num, den, err := v.Rat2(0)
	if err != nil || den == 0 {
		return ""
	}
	if num == 1 {
		return fmt.Sprintf("1/%d", den)
	}
	return fmt.Sprintf("%d/%d", num, den)
}

func ratioFloat(v *tiff.Tag) float64 {
	num, den, err := v.Rat2(0)
	if err != nil || den == 0 {
		return 0
	}
	return math.Round(float64(num)/float64(den)*100) / 100
}
