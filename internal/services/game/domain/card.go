// Package domain implements the cooperative fireworks game: entities, the
// deterministic card dealer, the turn engine, the heartbeat reconciler, and
// the viewer-scoped state projection.
package domain

// CardType identifies one card kind by colour and rank value.
type CardType struct {
	Colour int
	Value  int
}

// MaxCardValue is the highest rank in a colour's run.
const MaxCardValue = 5

// MaxHeldCards bounds the configurable hand size.
const MaxHeldCards = 5

// MaxPlayers bounds the session roster.
const MaxPlayers = 5

// CardDistPerColour is the fixed number of copies per rank within one
// colour: three ones, two each of twos through fours, one five. Shared by
// all sessions.
var CardDistPerColour = [MaxCardValue]int{3, 2, 2, 2, 1}

// ColourNames maps low colour indexes to display names for clients.
var ColourNames = []string{"red", "yellow", "green", "blue", "white"}

// CardsPerColour returns the total card copies within one colour.
func CardsPerColour() int {
	total := 0
	for _, count := range CardDistPerColour {
		total += count
	}
	return total
}

// TotalCards returns the full deck size for a colour count.
func TotalCards(colours int) int {
	return colours * CardsPerColour()
}

// MaxScore returns the theoretical maximum score for a colour count: every
// colour's stack completed to the top rank.
func MaxScore(colours int) int {
	return colours * MaxCardValue
}
