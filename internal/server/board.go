package server

import (
	"fmt"
	"strings"

	"github.com/wara2/li5a/internal/game"
)

// RenderBoard draws the current trick as a text cross: top seat above,
// left and right on their sides, bottom below. Unplayed seats show an
// empty slot. An empty string is returned when the board is hidden.
func RenderBoard(state game.PublicState) string {
	if !state.BoardVisible {
		return ""
	}

	cards := map[game.Seat]string{}
	for _, p := range state.Trick.Plays {
		cards[p.Seat] = p.Card.String()
	}
	slot := func(seat game.Seat) string {
		if c, ok := cards[seat]; ok {
			return c
		}
		return "--"
	}

	names := map[game.Seat]string{}
	for _, p := range state.Players {
		names[p.Seat] = p.Name
	}
	name := func(seat game.Seat) string {
		if n, ok := names[seat]; ok {
			return n
		}
		s := seat.String()
		return strings.ToUpper(s[:1]) + s[1:]
	}

	lines := []string{
		fmt.Sprintf("         %s (top)", name(game.Top)),
		fmt.Sprintf("            %s", slot(game.Top)),
		"",
		fmt.Sprintf("%s %s           %s %s", name(game.Left), slot(game.Left), slot(game.Right), name(game.Right)),
		"(left)                       (right)",
		"",
		fmt.Sprintf("            %s", slot(game.Bottom)),
		fmt.Sprintf("         %s (bottom)", name(game.Bottom)),
		"",
		fmt.Sprintf("trick %d of %d    scores %d : %d", state.TricksPlayed+1, game.TricksPerRound, state.Scores[game.TeamA], state.Scores[game.TeamB]),
	}
	return strings.Join(lines, "\n")
}
