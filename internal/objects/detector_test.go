package objects

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIOU_IdenticalBoxes(t *testing.T) {
	box := [4]float32{0, 0, 10, 10}
	assert.InDelta(t, 1.0, iou(box, box), 0.001)
}

func TestIOU_NonOverlappingBoxes(t *testing.T) {
	a := [4]float32{0, 0, 10, 10}
	b := [4]float32{20, 20, 30, 30}
	assert.Equal(t, float32(0), iou(a, b))
}

func TestIOU_PartialOverlap(t *testing.T) {
	a := [4]float32{0, 0, 10, 10}
	b := [4]float32{5, 5, 15, 15}
	// intersection 5x5=25, union 100+100-25=175
	assert.InDelta(t, 25.0/175.0, iou(a, b), 0.001)
}

func TestNMS_SuppressesOverlappingSameLabel(t *testing.T) {
	dets := []Detection{
		{Label: "person", Confidence: 0.9, BBox: [4]float32{0, 0, 10, 10}},
		{Label: "person", Confidence: 0.8, BBox: [4]float32{1, 1, 11, 11}},
	}

	out := nms(dets, 0.45)

	assert.Len(t, out, 1)
	assert.Equal(t, float32(0.9), out[0].Confidence)
}

func TestNMS_KeepsDifferentLabels(t *testing.T) {
	dets := []Detection{
		{Label: "person", Confidence: 0.9, BBox: [4]float32{0, 0, 10, 10}},
		{Label: "dog", Confidence: 0.8, BBox: [4]float32{1, 1, 11, 11}},
	}

	out := nms(dets, 0.45)

	assert.Len(t, out, 2)
}

func TestNMS_KeepsNonOverlappingSameLabel(t *testing.T) {
	dets := []Detection{
		{Label: "person", Confidence: 0.9, BBox: [4]float32{0, 0, 10, 10}},
		{Label: "person", Confidence: 0.8, BBox: [4]float32{100, 100, 110, 110}},
	}

	out := nms(dets, 0.45)

	assert.Len(t, out, 2)
}

func TestNMS_EmptyInput(t *testing.T) {
	assert.Empty(t, nms(nil, 0.45))
}

func TestClampF(t *testing.T) {
	assert.Equal(t, float32(0), clampF(-5, 0, 100))
	assert.Equal(t, float32(100), clampF(150, 0, 100))
	assert.Equal(t, float32(50), clampF(50, 0, 100))
}
