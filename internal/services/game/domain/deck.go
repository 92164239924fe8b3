package domain

import (
	"math/rand/v2"
	"sort"

	perrors "github.com/louisbranch/hanabi.space/internal/platform/errors"
)

// Deck is an in-memory view over the persisted reserve counts, supporting
// weighted sampling without replacement. It is reconstructed from reserve
// rows on every request and discarded afterwards; decrements accumulate in a
// dirty-set until the caller flushes them as one batch of point updates.
type Deck struct {
	types  []CardType
	counts map[CardType]int
	total  int
	drawn  map[CardType]bool
}

// NewDeck builds a deck from persisted reserve rows. Negative counts are
// clamped to zero. Card types are ordered by (colour, value) ascending; the
// draw mapping below depends on this order, so it must stay stable across
// processes.
func NewDeck(reserves []Reserve) *Deck {
	deck := &Deck{
		counts: make(map[CardType]int, len(reserves)),
		drawn:  make(map[CardType]bool),
	}
	for _, reserve := range reserves {
		count := reserve.CardsLeft
		if count < 0 {
			count = 0
		}
		deck.types = append(deck.types, reserve.Card)
		deck.counts[reserve.Card] = count
		deck.total += count
	}
	sort.Slice(deck.types, func(i, j int) bool {
		if deck.types[i].Colour != deck.types[j].Colour {
			return deck.types[i].Colour < deck.types[j].Colour
		}
		return deck.types[i].Value < deck.types[j].Value
	})
	return deck
}

// Remaining returns the number of undrawn cards.
func (d *Deck) Remaining() int {
	return d.total
}

// Draw removes one uniformly random card from the deck using the provided
// deterministic generator. The selected index is mapped to a card type via
// cumulative-count ranges: the first type whose cumulative count exceeds the
// index wins.
func (d *Deck) Draw(rng *rand.Rand) (CardType, error) {
	if d.total <= 0 {
		return CardType{}, perrors.New(perrors.CodeGameStateCorrupt, "draw from empty deck")
	}

	selected := rng.IntN(d.total)
	cumulative := 0
	for _, cardType := range d.types {
		cumulative += d.counts[cardType]
		if selected < cumulative {
			d.counts[cardType]--
			d.total--
			d.drawn[cardType] = true
			return cardType, nil
		}
	}

	// Unreachable while counts and total agree.
	return CardType{}, perrors.New(perrors.CodeGameStateCorrupt, "deck counts diverged from total")
}

// Drawn returns the reserve counts touched since construction, ordered by
// (colour, value), ready to be persisted as point updates.
func (d *Deck) Drawn() []Reserve {
	updates := make([]Reserve, 0, len(d.drawn))
	for _, cardType := range d.types {
		if d.drawn[cardType] {
			updates = append(updates, Reserve{Card: cardType, CardsLeft: d.counts[cardType]})
		}
	}
	return updates
}
