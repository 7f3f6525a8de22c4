package parking

// Layout describes the grid a lot is drawn on. Cells on a lane column
// that also sit on a lane row are driving lanes and hold no slot.
type Layout struct {
	Columns     int
	Rows        int
	Floor       int
	LaneColumns []int
	LaneRows    []int
}

func DefaultLayout() Layout {
	return Layout{
		Columns:     10,
		Rows:        8,
		Floor:       1,
		LaneColumns: []int{2, 5, 7},
		LaneRows:    []int{2, 5},
	}
}

func (l Layout) IsLane(p Position) bool {
	return contains(l.LaneColumns, p.X) && contains(l.LaneRows, p.Y)
}

func (l Layout) Contains(p Position) bool {
	return p.X >= 0 && p.X < l.Columns && p.Y >= 0 && p.Y < l.Rows
}

// SlotCount is the number of non-lane cells.
func (l Layout) SlotCount() int {
	count := 0
	for y := 0; y < l.Rows; y++ {
		for x := 0; x < l.Columns; x++ {
			if !l.IsLane(Position{X: x, Y: y}) {
				count++
			}
		}
	}
	return count
}

func contains(values []int, v int) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
