package game

import (
	"encoding/json"
	"fmt"
)

// Seat identifies one of the four fixed positions around the table.
// The declaration order is the clockwise play rotation.
type Seat int

const (
	Top Seat = iota
	Right
	Bottom
	Left
)

// Seats lists all four seats in play order.
var Seats = []Seat{Top, Right, Bottom, Left}

// String returns the string representation of a seat
func (s Seat) String() string {
	switch s {
	case Top:
		return "top"
	case Right:
		return "right"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	default:
		return "?"
	}
}

// MarshalJSON encodes the seat by name.
func (s Seat) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a seat name.
func (s *Seat) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	seat, ok := ParseSeat(name)
	if !ok {
		return fmt.Errorf("unknown seat %q", name)
	}
	*s = seat
	return nil
}

// Next returns the seat that plays after s (clockwise rotation).
func (s Seat) Next() Seat {
	return (s + 1) % 4
}

// GiftRecipient returns the seat that receives s's gifted cards.
// Gifting runs counterclockwise (top→left→bottom→right→top), the
// opposite of the play rotation. This asymmetry is part of the rules.
func (s Seat) GiftRecipient() Seat {
	return (s + 3) % 4
}

// Team returns the team the seat belongs to.
func (s Seat) Team() Team {
	if s == Top || s == Bottom {
		return TeamA
	}
	return TeamB
}

// ParseSeat converts a seat name to a Seat.
func ParseSeat(name string) (Seat, bool) {
	switch name {
	case "top":
		return Top, true
	case "right":
		return Right, true
	case "bottom":
		return Bottom, true
	case "left":
		return Left, true
	default:
		return 0, false
	}
}

// Team identifies one of the two fixed partnerships: TeamA is top and
// bottom, TeamB is left and right.
type Team int

const (
	TeamA Team = iota
	TeamB
)

// String returns the string representation of a team
func (t Team) String() string {
	switch t {
	case TeamA:
		return "A"
	case TeamB:
		return "B"
	default:
		return "?"
	}
}

// Other returns the opposing team.
func (t Team) Other() Team {
	return 1 - t
}
