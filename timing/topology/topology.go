// Package topology places nodes on a near-square 2-D grid and decides which
// requesters may coalesce onto a home node's directory entries.
package topology

// Coord is a position on the grid.
type Coord struct {
	X int
	Y int
}

// Grid embeds node ids row-major on a side x side grid, where side is the
// smallest integer whose square covers every node.
type Grid struct {
	nodeCount int
	side      int
}

// NewGrid creates the grid embedding for nodeCount nodes.
func NewGrid(nodeCount int) Grid {
	side := 1
	for side*side < nodeCount {
		side++
	}

	return Grid{nodeCount: nodeCount, side: side}
}

// NodeCount returns the number of nodes placed on the grid.
func (g Grid) NodeCount() int {
	return g.nodeCount
}

// Side returns the grid width.
func (g Grid) Side() int {
	return g.side
}

// Coord returns the position of node id.
func (g Grid) Coord(id int) Coord {
	return Coord{X: id % g.side, Y: id / g.side}
}

// Distance returns the Manhattan hop count between nodes a and b.
func (g Grid) Distance(a, b int) int {
	ca, cb := g.Coord(a), g.Coord(b)
	return abs(ca.X-cb.X) + abs(ca.Y-cb.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
