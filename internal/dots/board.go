package dots

// Board geometry follows the frontend convention: for a board of size N
// there are (N+1)xN horizontal edges, Nx(N+1) vertical edges and NxN
// boxes. A cell holds the owning player id, or "" while unclaimed.

const (
	MinBoardSize = 2
	MaxBoardSize = 12
)

type Orientation string

const (
	Horizontal Orientation = "h"
	Vertical   Orientation = "v"
)

// Edge identifies one drawable segment on the grid.
type Edge struct {
	Row int         `json:"r"`
	Col int         `json:"c"`
	Dir Orientation `json:"dir"`
}

// BoxRef addresses a box completed by a move.
type BoxRef struct {
	Row int `json:"r"`
	Col int `json:"c"`
}

type BoardEdges struct {
	H [][]string `json:"h"`
	V [][]string `json:"v"`
}

type Board struct {
	Size  int        `json:"boardSize"`
	Edges BoardEdges `json:"edges"`
	Boxes [][]string `json:"boxes"`
}

func ClampBoardSize(n int) int {
	if n < MinBoardSize {
		return MinBoardSize
	}
	if n > MaxBoardSize {
		return MaxBoardSize
	}
	return n
}

// NewBoard returns an empty board, clamping size to [2,12].
func NewBoard(size int) Board {
	n := ClampBoardSize(size)
	return Board{
		Size: n,
		Edges: BoardEdges{
			H: makeGrid(n+1, n),
			V: makeGrid(n, n+1),
		},
		Boxes: makeGrid(n, n),
	}
}

func makeGrid(rows, cols int) [][]string {
	grid := make([][]string, rows)
	for i := range grid {
		grid[i] = make([]string, cols)
	}
	return grid
}

func (b Board) EdgeInBounds(e Edge) bool {
	switch e.Dir {
	case Horizontal:
		return e.Row >= 0 && e.Row <= b.Size && e.Col >= 0 && e.Col < b.Size
	case Vertical:
		return e.Row >= 0 && e.Row < b.Size && e.Col >= 0 && e.Col <= b.Size
	default:
		return false
	}
}

// EdgeTaken reports whether an edge is unavailable. Out-of-bounds edges
// read as taken so illegal writes are impossible.
func (b Board) EdgeTaken(e Edge) bool {
	if !b.EdgeInBounds(e) {
		return true
	}
	if e.Dir == Horizontal {
		return b.Edges.H[e.Row][e.Col] != ""
	}
	return b.Edges.V[e.Row][e.Col] != ""
}

func (b Board) boxComplete(r, c int) bool {
	return b.Edges.H[r][c] != "" &&
		b.Edges.H[r+1][c] != "" &&
		b.Edges.V[r][c] != "" &&
		b.Edges.V[r][c+1] != ""
}

// Apply claims an edge for ownerID and returns the resulting board plus
// any boxes the move completed, in evaluation order (above/left first).
// The receiver is never mutated; applying a taken edge returns the input
// board unchanged.
func (b Board) Apply(e Edge, ownerID string) (Board, []BoxRef) {
	if b.EdgeTaken(e) {
		return b, nil
	}

	next := b.clone()
	if e.Dir == Horizontal {
		next.Edges.H[e.Row][e.Col] = ownerID
	} else {
		next.Edges.V[e.Row][e.Col] = ownerID
	}

	var candidates []BoxRef
	if e.Dir == Horizontal {
		if e.Row > 0 {
			candidates = append(candidates, BoxRef{Row: e.Row - 1, Col: e.Col})
		}
		if e.Row < b.Size {
			candidates = append(candidates, BoxRef{Row: e.Row, Col: e.Col})
		}
	} else {
		if e.Col > 0 {
			candidates = append(candidates, BoxRef{Row: e.Row, Col: e.Col - 1})
		}
		if e.Col < b.Size {
			candidates = append(candidates, BoxRef{Row: e.Row, Col: e.Col})
		}
	}

	completed := []BoxRef{}
	for _, box := range candidates {
		if next.Boxes[box.Row][box.Col] != "" {
			continue
		}
		if next.boxComplete(box.Row, box.Col) {
			next.Boxes[box.Row][box.Col] = ownerID
			completed = append(completed, box)
		}
	}

	return next, completed
}

// Full reports whether every edge is taken. Full edge coverage implies
// full box coverage, so this is the sole end-of-game trigger.
func (b Board) Full() bool {
	for _, row := range b.Edges.H {
		for _, cell := range row {
			if cell == "" {
				return false
			}
		}
	}
	for _, row := range b.Edges.V {
		for _, cell := range row {
			if cell == "" {
				return false
			}
		}
	}
	return true
}

func (b Board) clone() Board {
	return Board{
		Size: b.Size,
		Edges: BoardEdges{
			H: cloneGrid(b.Edges.H),
			V: cloneGrid(b.Edges.V),
		},
		Boxes: cloneGrid(b.Boxes),
	}
}

func cloneGrid(grid [][]string) [][]string {
	out := make([][]string, len(grid))
	for i, row := range grid {
		out[i] = make([]string, len(row))
		copy(out[i], row)
	}
	return out
}
