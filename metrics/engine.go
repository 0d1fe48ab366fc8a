// Package metrics turns per-frame pose detections into behavioural metrics
// and reduces a session's metrics into one weighted score.
package metrics

import (
	"math"

	"github.com/maastricht-university/session-analysis/inference"
)

// Expensive metrics are only recomputed on frames whose original index is a
// multiple of ExpensiveEvery. Other frames report the fixed defaults.
const (
	ExpensiveEvery = 10

	DefaultAttention  = 60.0
	DefaultEngagement = 70.0
	DefaultEyeContact = 50.0

	// ColdStartMovement is reported until a previous position exists.
	ColdStartMovement = 50.0

	referenceDistance = 100.0
)

type HeadOrientation struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

type FrameMetrics struct {
	FrameIndex        int             `json:"frame_index"`
	Timestamp         float64         `json:"timestamp"`
	Attention         float64         `json:"attention"`
	Confidence        float64         `json:"confidence"`
	Posture           float64         `json:"posture"`
	Engagement        float64         `json:"engagement"`
	MovementStability float64         `json:"movement_stability"`
	HeadOrientation   HeadOrientation `json:"head_orientation"`
	EyeContactQuality float64         `json:"eye_contact_quality"`
	PersonCount       int             `json:"person_count"`
}

// Engine computes FrameMetrics for one session. The movement history makes
// it stateful: use one Engine per session and never share it between
// goroutines.
type Engine struct {
	history *History
}

func NewEngine(history *History) *Engine {
	if history == nil {
		history = NewHistory(HistorySize)
	}
	return &Engine{history: history}
}

func (e *Engine) History() *History { return e.history }

// Frame scores one detection. index is the frame's position in the decoded
// stream, not its position among sampled frames.
func (e *Engine) Frame(index int, timestamp float64, det inference.PersonDetection) FrameMetrics {
	pose, ok := det.Subject()
	head, headOK := headOrientation(pose, ok)

	m := FrameMetrics{
		FrameIndex:        index,
		Timestamp:         timestamp,
		Confidence:        confidence(det),
		Posture:           posture(pose, ok),
		MovementStability: e.movement(pose, ok),
		HeadOrientation:   head,
		PersonCount:       len(det.PersonBoxes()),
	}

	if index%ExpensiveEvery == 0 {
		m.Attention = attention(head, ok && headOK)
		m.Engagement = engagement(pose, ok, head, headOK)
		m.EyeContactQuality = eyeContact(head, ok && headOK)
	} else {
		m.Attention = DefaultAttention
		m.Engagement = DefaultEngagement
		m.EyeContactQuality = DefaultEyeContact
	}
	return m
}

func headOrientation(p inference.Pose, ok bool) (HeadOrientation, bool) {
	if !ok || !p.Nose.Usable() || !p.LeftEye.Usable() || !p.RightEye.Usable() {
		return HeadOrientation{}, false
	}
	cx := (p.LeftEye.X + p.RightEye.X) / 2
	cy := (p.LeftEye.Y + p.RightEye.Y) / 2

	yaw := degrees(math.Atan2(p.Nose.X-cx, referenceDistance))
	pitch := degrees(math.Atan2(p.Nose.Y-cy, referenceDistance))
	roll := degrees(math.Atan2(p.RightEye.Y-p.LeftEye.Y, p.RightEye.X-p.LeftEye.X))

	return HeadOrientation{Pitch: round2(pitch), Yaw: round2(yaw), Roll: round2(roll)}, true
}

func attention(h HeadOrientation, ok bool) float64 {
	if !ok {
		return 0
	}
	deviation := math.Sqrt(h.Yaw*h.Yaw + h.Pitch*h.Pitch)
	return math.Max(0, 100-deviation*2.2)
}

func posture(p inference.Pose, ok bool) float64 {
	if !ok || !p.LeftShoulder.Usable() || !p.RightShoulder.Usable() {
		return 0
	}
	diff := math.Abs(p.LeftShoulder.Y-p.RightShoulder.Y) / 100
	return math.Min(100, math.Max(0, 1-diff)*100)
}

func (e *Engine) movement(p inference.Pose, ok bool) float64 {
	if !ok || !p.Nose.Usable() {
		return ColdStartMovement
	}
	curr := Point{X: p.Nose.X, Y: p.Nose.Y}
	prev, seen := e.history.Last()
	e.history.Push(curr)
	if !seen {
		return ColdStartMovement
	}
	move := math.Hypot(curr.X-prev.X, curr.Y-prev.Y)
	return clamp(100-move*2, 0, 100)
}

func confidence(det inference.PersonDetection) float64 {
	boxes := det.PersonBoxes()
	if len(boxes) == 0 {
		return 0
	}
	best := 0.0
	for _, b := range boxes {
		best = math.Max(best, b.Confidence)
	}
	return math.Min(100, best*100)
}

func engagement(p inference.Pose, ok bool, h HeadOrientation, headOK bool) float64 {
	if !ok {
		return 0
	}
	visible := 0
	for _, kp := range []inference.Keypoint{p.LeftShoulder, p.RightShoulder, p.LeftHip, p.RightHip} {
		if kp.Usable() {
			visible++
		}
	}
	presence := float64(visible) / 4

	facing := 0.5
	if p.LeftShoulder.Usable() && p.RightShoulder.Usable() && headOK {
		switch yaw := math.Abs(h.Yaw); {
		case yaw < 20:
			facing = 1.0
		case yaw < 45:
			facing = 0.7
		default:
			facing = 0.3
		}
	}
	return math.Min(100, (presence*0.5+facing*0.5)*100)
}

func eyeContact(h HeadOrientation, ok bool) float64 {
	if !ok {
		return 0
	}
	yaw, pitch := math.Abs(h.Yaw), math.Abs(h.Pitch)
	if yaw < 15 && pitch < 15 {
		return math.Max(0, 100-(yaw+pitch)*2)
	}
	return 20
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func clamp(v, lo, hi float64) float64 { return math.Min(hi, math.Max(lo, v)) }
