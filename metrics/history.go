package metrics

// HistorySize is the number of trailing nose positions kept for movement
// smoothing.
const HistorySize = 10

type Point struct{ X, Y float64 }

// History is a bounded FIFO of recent nose positions. It belongs to one
// analysis session and must not be shared between concurrent sessions.
type History struct {
	buf   []Point
	start int
	n     int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = HistorySize
	}
	return &History{buf: make([]Point, capacity)}
}

func (h *History) Len() int { return h.n }

// Last returns the most recently pushed position.
func (h *History) Last() (Point, bool) {
	if h.n == 0 {
		return Point{}, false
	}
	return h.buf[(h.start+h.n-1)%len(h.buf)], true
}

// Push appends p, evicting the oldest entry once full.
func (h *History) Push(p Point) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = p
		h.n++
		return
	}
	h.buf[h.start] = p
	h.start = (h.start + 1) % len(h.buf)
}

// Points returns the stored positions oldest first.
func (h *History) Points() []Point {
	out := make([]Point, 0, h.n)
	for i := 0; i < h.n; i++ {
		out = append(out, h.buf[(h.start+i)%len(h.buf)])
	}
	return out
}

func (h *History) Reset() {
	h.start, h.n = 0, 0
}
