package inference

// MinKeypointConfidence is the threshold below which a landmark is not usable.
const MinKeypointConfidence = 0.5

// ClassPerson is the detector class id of a person box.
const ClassPerson = 0

// COCO keypoint indices used by the metric engine.
const (
	cocoNose          = 0
	cocoLeftEye       = 1
	cocoRightEye      = 2
	cocoLeftShoulder  = 5
	cocoRightShoulder = 6
	cocoLeftHip       = 11
	cocoRightHip      = 12
)

type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

func (k Keypoint) Usable() bool { return k.Confidence >= MinKeypointConfidence }

// Pose holds the landmarks of one detected person that the metrics read.
// Coordinates are in inference-input pixels (416x416).
type Pose struct {
	Nose          Keypoint `json:"nose"`
	LeftEye       Keypoint `json:"left_eye"`
	RightEye      Keypoint `json:"right_eye"`
	LeftShoulder  Keypoint `json:"left_shoulder"`
	RightShoulder Keypoint `json:"right_shoulder"`
	LeftHip       Keypoint `json:"left_hip"`
	RightHip      Keypoint `json:"right_hip"`
}

// PoseFromCOCO maps a 17-point COCO keypoint array onto named landmarks.
// Missing trailing points are left at zero confidence.
func PoseFromCOCO(points [][3]float64) Pose {
	at := func(i int) Keypoint {
		if i >= len(points) {
			return Keypoint{}
		}
		p := points[i]
		return Keypoint{X: p[0], Y: p[1], Confidence: p[2]}
	}
	return Pose{
		Nose:          at(cocoNose),
		LeftEye:       at(cocoLeftEye),
		RightEye:      at(cocoRightEye),
		LeftShoulder:  at(cocoLeftShoulder),
		RightShoulder: at(cocoRightShoulder),
		LeftHip:       at(cocoLeftHip),
		RightHip:      at(cocoRightHip),
	}
}

type Box struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	Class      int     `json:"class"`
}

// PersonDetection is the pose model output for one frame.
type PersonDetection struct {
	Poses []Pose `json:"poses"`
	Boxes []Box  `json:"boxes"`
}

// Subject returns the first detected pose, which the metrics score.
func (d PersonDetection) Subject() (Pose, bool) {
	if len(d.Poses) == 0 {
		return Pose{}, false
	}
	return d.Poses[0], true
}

func (d PersonDetection) PersonBoxes() []Box {
	var out []Box
	for _, b := range d.Boxes {
		if b.Class == ClassPerson {
			out = append(out, b)
		}
	}
	return out
}
