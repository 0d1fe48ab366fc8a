package metrics

import "testing"

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(HistorySize)
	if _, ok := h.Last(); ok {
		t.Fatalf("empty history has no last point")
	}
	for i := 0; i < 13; i++ {
		h.Push(Point{X: float64(i)})
	}
	if h.Len() != HistorySize {
		t.Fatalf("expected %d entries, got %d", HistorySize, h.Len())
	}
	pts := h.Points()
	if pts[0].X != 3 || pts[len(pts)-1].X != 12 {
		t.Fatalf("expected window 3..12, got %v..%v", pts[0].X, pts[len(pts)-1].X)
	}
	if last, _ := h.Last(); last.X != 12 {
		t.Fatalf("expected last 12, got %v", last.X)
	}

	h.Reset()
	if h.Len() != 0 {
		t.Fatalf("reset should empty the history")
	}
}
