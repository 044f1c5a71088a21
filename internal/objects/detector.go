// Package objects runs the local ML object-detection model and the
// internal face-embedding model via ONNX Runtime. Both are optional:
// failure to load either puts the caller in degraded mode rather than
// failing the process, per the external ML model contract.
package objects

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Detection is one labeled object found in an image.
type Detection struct {
	Label      string
	Confidence float32
	BBox       [4]float32 // x1, y1, x2, y2 in original-image pixel space
}

// Detector runs a single-shot object detector (YOLO-family ONNX export:
// one output tensor of [1, N, 5+numClasses] box/objectness/class-score
// rows) and post-filters by a confidence floor before returning labels.
type Detector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	labels       []string
	inputW       int
	inputH       int
	numBoxes     int
	confFloor    float32
}

// NewDetector loads an ONNX object-detection model. labels must list the
// class names in the order the model's class-score columns are laid out.
// opts may be nil (ORT defaults) or a pre-configured SessionOptions
// carrying the intra/inter-op thread caps.
func NewDetector(modelPath string, labels []string, numBoxes int, confFloor float32, opts *ort.SessionOptions) (*Detector, error) {
	inputW, inputH := 640, 640
	numClasses := len(labels)

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(numBoxes), int64(5+numClasses))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &Detector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		labels:       labels,
		inputW:       inputW,
		inputH:       inputH,
		numBoxes:     numBoxes,
		confFloor:    confFloor,
	}, nil
}

// Detect runs object detection on a preprocessed, letterboxed image.
// imgData is CHW format [3, inputH, inputW], normalized to [0,1].
// origW/origH/scale/padX/padY describe how to map model-space boxes back
// to the original image, per the letterbox that produced imgData.
func (d *Detector) Detect(imgData []float32, origW, origH int, scale, padX, padY float32) ([]Detection, error) {
	inputSlice := d.inputTensor.GetData()
	copy(inputSlice, imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	dets := d.parseDetections(origW, origH, scale, padX, padY)
	dets = nms(dets, 0.45)
	return dets, nil
}

func (d *Detector) parseDetections(origW, origH int, scale, padX, padY float32) []Detection {
	data := d.outputTensor.GetData()
	numClasses := len(d.labels)
	stride := 5 + numClasses

	var dets []Detection
	for i := 0; i < d.numBoxes; i++ {
		row := data[i*stride : (i+1)*stride]
		objectness := row[4]
		if objectness < d.confFloor {
			continue
		}

		bestClass := 0
		bestScore := float32(0)
		for c := 0; c < numClasses; c++ {
			s := row[5+c]
			if s > bestScore {
				bestScore = s
				bestClass = c
			}
		}
		conf := objectness * bestScore
		if conf < d.confFloor {
			continue
		}

		cx, cy, w, h := row[0], row[1], row[2], row[3]
		x1 := (cx - w/2 - padX) / scale
		y1 := (cy - h/2 - padY) / scale
		x2 := (cx + w/2 - padX) / scale
		y2 := (cy + h/2 - padY) / scale

		x1 = clampF(x1, 0, float32(origW))
		y1 = clampF(y1, 0, float32(origH))
		x2 = clampF(x2, 0, float32(origW))
		y2 = clampF(y2, 0, float32(origH))

		dets = append(dets, Detection{
			Label:      d.labels[bestClass],
			Confidence: conf,
			BBox:       [4]float32{x1, y1, x2, y2},
		})
	}
	return dets
}

// InputSize returns the model's expected letterboxed input dimensions.
func (d *Detector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
}

func nms(dets []Detection, iouThreshold float32) []Detection {
	if len(dets) == 0 {
		return dets
	}
	sort.Slice(dets, func(i, j int) bool { return dets[i].Confidence > dets[j].Confidence })

	keep := make([]bool, len(dets))
	for i := range keep {
		keep[i] = true
	}
	for i := 0; i < len(dets); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(dets); j++ {
			if !keep[j] || dets[i].Label != dets[j].Label {
				continue
			}
			if iou(dets[i].BBox, dets[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var out []Detection
	for i, d := range dets {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out
}

func iou(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	inter := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))
	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
