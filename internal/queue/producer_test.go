package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/photovault/internal/models"
)

func TestSubjectSuffix_MapsEveryPriority(t *testing.T) {
	assert.Equal(t, "urgent", subjectSuffix(models.PriorityCritical))
	assert.Equal(t, "high", subjectSuffix(models.PriorityHigh))
	assert.Equal(t, "normal", subjectSuffix(models.PriorityNormal))
	assert.Equal(t, "low", subjectSuffix(models.PriorityLow))
}

func TestSubjectSuffix_UnknownPriorityDefaultsToNormal(t *testing.T) {
	assert.Equal(t, "normal", subjectSuffix(models.JobPriority(99)))
}

func TestStreamName(t *testing.T) {
	assert.Equal(t, "JOBS_image_processing", streamName(models.JobImageProcessing))
}

func TestSubjectBase(t *testing.T) {
	assert.Equal(t, "jobs.image_processing", subjectBase(models.JobImageProcessing))
}

func TestPrioritySuffixes_HighestFirst(t *testing.T) {
	assert.Equal(t, []string{"urgent", "high", "normal", "low"}, prioritySuffixes)
}
