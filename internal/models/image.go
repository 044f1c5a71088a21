package models

import (
	"time"

	"github.com/google/uuid"
)

// Image is the canonical record for a single ingested media file.
type Image struct {
	ID             uuid.UUID
	Hash           string
	OriginalPath   string
	CanonicalPath  string
	SizeBytes      int64
	MimeType       string
	Width          int
	Height         int
	IsScreenshot   bool
	ScreenshotConf float64
	// Reasons is the short, stable-tagged set of signals the Screenshot
	// Classifier accumulated toward IsScreenshot/ScreenshotConf, e.g.
	// "filename-pattern", "no-camera-tags" — kept for querying why an
	// image landed where it did.
	Reasons       []string
	DominantColor string // hex, e.g. "#a1b2c3"
	DeletedAt     *time.Time
	DeletedBy     string
	DeleteReason  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Metadata holds the EXIF-derived attributes for an Image, projected into
// typed fields. All fields are optional; absence means the tag was not
// present or not parseable.
type Metadata struct {
	ImageID      uuid.UUID
	Orientation  int
	TakenAt      *time.Time
	CameraMake   string
	CameraModel  string
	LensModel    string
	Software     string
	Artist       string
	Copyright    string
	Rating       int
	ExposureTime string
	FNumber      float64
	ISO          int
	FocalLength  float64
	GPSLatitude  *float64
	GPSLongitude *float64
	DateInferred bool // true when TakenAt fell back to filesystem mtime
}

// Recognition method tags a DetectedFace's person assignment carries,
// recording how the assignment was made.
const (
	RecognitionMethodManual     = "manual"
	RecognitionMethodAuto       = "auto"
	RecognitionMethodCompreFace = "compreface"
	RecognitionMethodClustering = "clustering"
)

// FaceLandmark is one point of a DetectedFace's landmark set, in the
// coordinate space of the image submitted to the recognition service.
type FaceLandmark struct {
	X int
	Y int
}

// FacePose is a DetectedFace's head orientation in degrees. The recognition
// service client parses no pose data, so the pipeline leaves it zero.
type FacePose struct {
	Pitch float32
	Roll  float32
	Yaw   float32
}

// DetectedFace is one face found by the external recognition service.
type DetectedFace struct {
	ID         uuid.UUID
	ImageID    uuid.UUID
	PersonID   *uuid.UUID
	BBox       [4]float32 // x1, y1, x2, y2 in original-image pixel space, post-orientation
	Confidence float32
	CropKey    string
	Embedding  []float32 // internal only, see SPEC_FULL.md §4.4a

	AgeLow        int
	AgeHigh       int
	AgeConfidence float32

	Gender           string
	GenderConfidence float32

	Pose      FacePose
	Landmarks []FaceLandmark

	// MatchScore is the similarity of this face to its assigned Person's
	// centroid, whether that assignment came from the recognition
	// service's top subject candidate or a clustering suggestion.
	MatchScore float32

	// RecognitionMethod records how PersonID came to be set: "manual" (a
	// user assigned it), "auto" (the recognition service's own subject
	// match), "compreface" (an explicit CompreFace recognition call), or
	// "clustering" (a clustering suggestion accepted via C9). Empty when
	// PersonID is nil.
	RecognitionMethod string
	// NeedsReview is true when the assignment is a suggestion rather
	// than a confirmed identification — a face in this state does not
	// count toward its Person's face_count.
	NeedsReview bool
	AssignedAt  *time.Time
	AssignedBy  string

	// IsTrainingImage marks this face as eligible for the Training
	// Coordinator's enrollment queue.
	IsTrainingImage bool
	// ExternalSynced is true once this face has been uploaded to the
	// external recognition service's subject store.
	ExternalSynced   bool
	ExternalSyncedAt *time.Time

	CreatedAt time.Time
}

// DetectedObject is one object label found by the local ML model.
type DetectedObject struct {
	ID         uuid.UUID
	ImageID    uuid.UUID
	Label      string
	Confidence float32
	BBox       [4]float32
	CreatedAt  time.Time
}

// Person recognition lifecycle states, tracked through the Training
// Coordinator (C17).
const (
	RecognitionStatusUntrained = "untrained"
	RecognitionStatusTraining  = "training"
	RecognitionStatusTrained   = "trained"
	RecognitionStatusFailed    = "failed"
)

// Person is a named identity a user has curated from clustered or
// individually-assigned faces.
type Person struct {
	ID                 uuid.UUID
	Name               string
	AggregateEmbedding []float32
	// FaceCount is the count of faces assigned to this Person with
	// NeedsReview=false — faces still awaiting confirmation (e.g. an
	// unconfirmed clustering suggestion) are excluded.
	FaceCount int

	RecognitionStatus string
	LastTrainedTime   *time.Time
	TrainingFaceCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FaceSimilarity is a cached pairwise similarity score between two faces,
// computed during a clustering pass.
type FaceSimilarity struct {
	FaceAID uuid.UUID
	FaceBID uuid.UUID
	Score   float32
	Method  string // "embedding_distance" | "compreface_api"
}

// FaceCluster is a group of faces the clustering pass believes belong to
// the same unidentified person.
type FaceCluster struct {
	ID                   uuid.UUID
	RepresentativeFaceID uuid.UUID
	SuggestedPersonID    *uuid.UUID
	PersonConfidence     float64
	MemberCount          int
	CreatedAt            time.Time
}

// FaceClusterMember is the join row between a FaceCluster and its member
// faces.
type FaceClusterMember struct {
	ClusterID uuid.UUID
	FaceID    uuid.UUID
}

// TrainingHistory records one enrollment attempt of a face into the
// external recognition service's subject store.
type TrainingHistory struct {
	ID        uuid.UUID
	PersonID  uuid.UUID
	FaceID    uuid.UUID
	Status    string // "pending" | "succeeded" | "failed"
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GeoCountry/GeoState/GeoCity form the reverse-geocoding reference table
// hierarchy used by the Geolocator.
type GeoCountry struct {
	ID   int
	Code string
	Name string
}

type GeoState struct {
	ID        int
	CountryID int
	Name      string
}

type GeoCity struct {
	ID        int
	StateID   int
	Name      string
	Latitude  float64
	Longitude float64
}

// Geolocation method tags recording how an ImageCity link was resolved.
const (
	GeoMethodEXIFGPS      = "EXIF_GPS"
	GeoMethodManual       = "MANUAL"
	GeoMethodClosestMatch = "CLOSEST_MATCH"
)

// ImageCity links an Image to its resolved GeoCity with the confidence
// and distance the Geolocator assigned.
type ImageCity struct {
	ImageID       uuid.UUID
	CityID        int
	Confidence    float64 // 0..1
	DistanceMiles float64
	Method        string // EXIF_GPS | MANUAL | CLOSEST_MATCH
}

// Album is a user-curated named set of images.
type Album struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
