package dots

import (
	"reflect"
	"testing"
)

func TestNewBoardClampsSize(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 2},
		{1, 2},
		{2, 2},
		{5, 5},
		{12, 12},
		{13, 12},
		{-3, 2},
	}
	for _, tc := range cases {
		b := NewBoard(tc.in)
		if b.Size != tc.want {
			t.Errorf("NewBoard(%d).Size = %d, want %d", tc.in, b.Size, tc.want)
		}
	}
}

func TestNewBoardShape(t *testing.T) {
	b := NewBoard(3)

	if len(b.Edges.H) != 4 {
		t.Fatalf("expected 4 horizontal edge rows, got %d", len(b.Edges.H))
	}
	for _, row := range b.Edges.H {
		if len(row) != 3 {
			t.Fatalf("expected 3 horizontal edge cols, got %d", len(row))
		}
	}
	if len(b.Edges.V) != 3 {
		t.Fatalf("expected 3 vertical edge rows, got %d", len(b.Edges.V))
	}
	for _, row := range b.Edges.V {
		if len(row) != 4 {
			t.Fatalf("expected 4 vertical edge cols, got %d", len(row))
		}
	}
	if len(b.Boxes) != 3 || len(b.Boxes[0]) != 3 {
		t.Fatal("expected 3x3 box grid")
	}
}

func TestEdgeTakenFailClosed(t *testing.T) {
	b := NewBoard(3)

	outOfBounds := []Edge{
		{Row: -1, Col: 0, Dir: Horizontal},
		{Row: 4, Col: 0, Dir: Horizontal},
		{Row: 0, Col: 3, Dir: Horizontal},
		{Row: 0, Col: -1, Dir: Horizontal},
		{Row: 3, Col: 0, Dir: Vertical},
		{Row: 0, Col: 4, Dir: Vertical},
		{Row: -1, Col: 0, Dir: Vertical},
		{Row: 0, Col: 0, Dir: "diagonal"},
		{Row: 0, Col: 0, Dir: ""},
	}
	for _, e := range outOfBounds {
		if !b.EdgeTaken(e) {
			t.Errorf("out-of-bounds edge %+v should read as taken", e)
		}
	}

	if b.EdgeTaken(Edge{Row: 0, Col: 0, Dir: Horizontal}) {
		t.Error("fresh in-bounds edge should not be taken")
	}
}

func TestApplyTakenEdgeIsNoOp(t *testing.T) {
	b := NewBoard(2)
	b, _ = b.Apply(Edge{Row: 0, Col: 0, Dir: Horizontal}, "p1")

	again, completed := b.Apply(Edge{Row: 0, Col: 0, Dir: Horizontal}, "p2")
	if len(completed) != 0 {
		t.Errorf("re-applying a taken edge completed %d boxes", len(completed))
	}
	if !reflect.DeepEqual(b, again) {
		t.Error("re-applying a taken edge changed the board")
	}
	if b.Edges.H[0][0] != "p1" {
		t.Errorf("owner changed to %q", b.Edges.H[0][0])
	}
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	b := NewBoard(2)
	next, _ := b.Apply(Edge{Row: 1, Col: 1, Dir: Vertical}, "p1")

	if b.Edges.V[1][1] != "" {
		t.Error("Apply mutated the input board")
	}
	if next.Edges.V[1][1] != "p1" {
		t.Error("Apply did not claim the edge on the result")
	}
}

func TestApplyCompletesSingleBox(t *testing.T) {
	b := NewBoard(2)
	for _, e := range []Edge{
		{Row: 0, Col: 0, Dir: Horizontal},
		{Row: 1, Col: 0, Dir: Horizontal},
		{Row: 0, Col: 0, Dir: Vertical},
	} {
		b, _ = b.Apply(e, "p1")
	}

	next, completed := b.Apply(Edge{Row: 0, Col: 1, Dir: Vertical}, "p2")
	if len(completed) != 1 || completed[0] != (BoxRef{Row: 0, Col: 0}) {
		t.Fatalf("expected box (0,0) completed, got %v", completed)
	}
	if next.Boxes[0][0] != "p2" {
		t.Errorf("box owner = %q, want p2", next.Boxes[0][0])
	}
}

func TestApplyCompletesTwoBoxesLeftBeforeRight(t *testing.T) {
	b := NewBoard(2)
	// Everything around boxes (0,0) and (0,1) except the shared edge v[0][1].
	for _, e := range []Edge{
		{Row: 0, Col: 0, Dir: Horizontal},
		{Row: 0, Col: 1, Dir: Horizontal},
		{Row: 1, Col: 0, Dir: Horizontal},
		{Row: 1, Col: 1, Dir: Horizontal},
		{Row: 0, Col: 0, Dir: Vertical},
		{Row: 0, Col: 2, Dir: Vertical},
	} {
		b, _ = b.Apply(e, "p1")
	}

	next, completed := b.Apply(Edge{Row: 0, Col: 1, Dir: Vertical}, "p2")
	want := []BoxRef{{Row: 0, Col: 0}, {Row: 0, Col: 1}}
	if !reflect.DeepEqual(completed, want) {
		t.Fatalf("completed = %v, want %v", completed, want)
	}
	if next.Boxes[0][0] != "p2" || next.Boxes[0][1] != "p2" {
		t.Error("both boxes should belong to p2")
	}
}

func TestCompletedBoxIsNeverReassigned(t *testing.T) {
	b := NewBoard(2)
	for _, e := range []Edge{
		{Row: 0, Col: 0, Dir: Horizontal},
		{Row: 0, Col: 0, Dir: Vertical},
		{Row: 0, Col: 1, Dir: Vertical},
	} {
		b, _ = b.Apply(e, "p1")
	}
	// h[1][0] borders boxes (0,0) and (1,0); it finishes only (0,0).
	b, completed := b.Apply(Edge{Row: 1, Col: 0, Dir: Horizontal}, "p1")
	if len(completed) != 1 || b.Boxes[0][0] != "p1" {
		t.Fatalf("setup failed: completed=%v owner=%q", completed, b.Boxes[0][0])
	}

	// p2 finishes box (1,0); box (0,0) must stay with p1.
	for _, e := range []Edge{
		{Row: 1, Col: 0, Dir: Vertical},
		{Row: 1, Col: 1, Dir: Vertical},
	} {
		b, _ = b.Apply(e, "p2")
	}
	b, completed = b.Apply(Edge{Row: 2, Col: 0, Dir: Horizontal}, "p2")
	if len(completed) != 1 || completed[0] != (BoxRef{Row: 1, Col: 0}) {
		t.Fatalf("expected box (1,0) completed, got %v", completed)
	}
	if b.Boxes[0][0] != "p1" {
		t.Errorf("box (0,0) reassigned to %q", b.Boxes[0][0])
	}
	if b.Boxes[1][0] != "p2" {
		t.Errorf("box (1,0) owner = %q, want p2", b.Boxes[1][0])
	}
}

func TestFullBoardImpliesAllBoxesOwned(t *testing.T) {
	b := NewBoard(2)

	// Claim every edge in scan order; ownership alternates.
	owner := func(i int) string {
		if i%2 == 0 {
			return "p1"
		}
		return "p2"
	}
	i := 0
	for r := 0; r <= b.Size; r++ {
		for c := 0; c < b.Size; c++ {
			b, _ = b.Apply(Edge{Row: r, Col: c, Dir: Horizontal}, owner(i))
			i++
		}
	}
	for r := 0; r < b.Size; r++ {
		for c := 0; c <= b.Size; c++ {
			b, _ = b.Apply(Edge{Row: r, Col: c, Dir: Vertical}, owner(i))
			i++
		}
	}

	if !b.Full() {
		t.Fatal("board with every edge applied should be full")
	}
	for r := range b.Boxes {
		for c := range b.Boxes[r] {
			if b.Boxes[r][c] == "" {
				t.Errorf("box (%d,%d) unowned on a full board", r, c)
			}
		}
	}
}

func TestFullIsFalseWhileEdgesRemain(t *testing.T) {
	b := NewBoard(2)
	if b.Full() {
		t.Fatal("empty board reported full")
	}
	b, _ = b.Apply(Edge{Row: 0, Col: 0, Dir: Horizontal}, "p1")
	if b.Full() {
		t.Fatal("board with one edge reported full")
	}
}
