package ai

import rand "math/rand/v2"

// Names are the display names given to seat-filling bots.
var Names = []string{
	"Card Shark", "Poker Face", "Royal Flush", "Wild Card",
	"Ace", "Dealer", "HighCard", "CleverBot",
	"CardMaster", "GameBot", "Lucky Draw", "Full House",
}

// pickName draws a random unused name. With more bots than names it
// falls back to reuse rather than failing.
func pickName(rng *rand.Rand, used map[string]bool) string {
	var free []string
	for _, n := range Names {
		if !used[n] {
			free = append(free, n)
		}
	}
	if len(free) == 0 {
		return Names[rng.IntN(len(Names))]
	}
	return free[rng.IntN(len(free))]
}
