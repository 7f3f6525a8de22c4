package parking

import (
	"fmt"
	"math"
)

type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionLeft     Direction = "left"
	DirectionRight    Direction = "right"
	DirectionStraight Direction = "straight"
)

// Fixed route figures. No distance is computed over the grid.
const (
	RouteEstimatedSeconds = 120
	RouteDistanceMeters   = 50
	secondsPerStep        = 30
	metersPerStep         = 10
)

type Waypoint struct {
	Position    Position  `json:"position"`
	Floor       int       `json:"floor"`
	Instruction string    `json:"instruction"`
	Direction   Direction `json:"direction"`
}

type Route struct {
	ID               string     `json:"id"`
	SessionID        string     `json:"session_id"`
	Waypoints        []Waypoint `json:"waypoints"`
	EstimatedSeconds int        `json:"estimated_seconds"`
	DistanceMeters   int        `json:"distance_meters"`
}

// BuildRoute lays out the four-step walk from a start position to a
// slot: two cells along x, across to the slot's column, then in. It
// ignores lanes and obstacles.
func BuildRoute(id, sessionID string, from Position, slot Slot) Route {
	return Route{
		ID:        id,
		SessionID: sessionID,
		Waypoints: []Waypoint{
			{Position: from, Floor: slot.Floor, Instruction: "Start walking forward", Direction: DirectionForward},
			{Position: from.Offset(2, 0), Floor: slot.Floor, Instruction: "Continue straight", Direction: DirectionStraight},
			{Position: Position{X: slot.Position.X, Y: from.Y}, Floor: slot.Floor, Instruction: "Turn right towards your slot", Direction: DirectionRight},
			{Position: slot.Position, Floor: slot.Floor, Instruction: fmt.Sprintf("You have arrived at slot %s", slot.Number), Direction: DirectionForward},
		},
		EstimatedSeconds: RouteEstimatedSeconds,
		DistanceMeters:   RouteDistanceMeters,
	}
}

func (r Route) Destination() Waypoint {
	return r.Waypoints[len(r.Waypoints)-1]
}

func (r Route) RemainingSeconds(step int) int {
	return max(0, r.EstimatedSeconds-step*secondsPerStep)
}

// RemainingMeters never reports less than one metre, even on arrival.
func (r Route) RemainingMeters(step int) int {
	return max(1, r.DistanceMeters-step*metersPerStep)
}

// Progress is the share of waypoints reached, counting the current one.
func (r Route) Progress(step int) int {
	if len(r.Waypoints) == 0 {
		return 0
	}
	return int(math.Round(float64(step+1) / float64(len(r.Waypoints)) * 100))
}

type WalkEstimate struct {
	DistanceMeters int `json:"distance_meters"`
	WalkMinutes    int `json:"walk_minutes"`
}

// EstimateWalk is a straight-line estimate at ten metres per grid cell.
// Standing on the slot gives no estimate.
func EstimateWalk(from Position, slot Slot) (WalkEstimate, bool) {
	dx := float64(slot.Position.X - from.X)
	dy := float64(slot.Position.Y - from.Y)
	meters := int(math.Round(math.Sqrt(dx*dx+dy*dy) * 10))
	if meters == 0 {
		return WalkEstimate{}, false
	}
	return WalkEstimate{
		DistanceMeters: meters,
		WalkMinutes:    max(1, int(math.Round(float64(meters)/50))),
	}, true
}
