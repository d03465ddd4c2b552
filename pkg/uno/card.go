// Package uno holds the card-token domain: colors, ranks, string tokens and
// the match rules used for the client-side play hint. The server re-validates
// every play; nothing here is authoritative.
package uno

import (
	"fmt"
	"strings"
)

// Color is one of the four playable colors, or Wild for uncolored cards.
type Color string

const (
	Red    Color = "RED"
	Blue   Color = "BLUE"
	Green  Color = "GREEN"
	Yellow Color = "YELLOW"
	Wild   Color = "WILD"
)

// Rank is the face of a card: a numeral, an action, or a wild kind.
type Rank string

const (
	Zero  Rank = "ZERO"
	One   Rank = "ONE"
	Two   Rank = "TWO"
	Three Rank = "THREE"
	Four  Rank = "FOUR"
	Five  Rank = "FIVE"
	Six   Rank = "SIX"
	Seven Rank = "SEVEN"
	Eight Rank = "EIGHT"
	Nine  Rank = "NINE"

	Skip    Rank = "SKIP"
	Reverse Rank = "REVERSE"
	DrawTwo Rank = "DRAW_TWO"

	RankWild         Rank = "WILD"
	RankWildDrawFour Rank = "WILD_DRAW_FOUR"
)

// ChoosableColors are the colors a player may declare for a wild card.
var ChoosableColors = []Color{Red, Blue, Green, Yellow}

var validColors = map[Color]bool{
	Red: true, Blue: true, Green: true, Yellow: true, Wild: true,
}

var validRanks = map[Rank]bool{
	Zero: true, One: true, Two: true, Three: true, Four: true,
	Five: true, Six: true, Seven: true, Eight: true, Nine: true,
	Skip: true, Reverse: true, DrawTwo: true,
	RankWild: true, RankWildDrawFour: true,
}

// Valid reports whether the color is one the protocol knows about.
func (c Color) Valid() bool { return validColors[c] }

// Choosable reports whether the color may be declared for a wild card.
func (c Color) Choosable() bool { return c.Valid() && c != Wild }

// Valid reports whether the rank is one the protocol knows about.
func (r Rank) Valid() bool { return validRanks[r] }

// Card is an opaque token as the server sends it. A wild that has been played
// arrives re-colored by the server, so Color alone does not imply the rank.
type Card struct {
	Color Color
	Rank  Rank
}

// String renders the wire token, e.g. "RED_FIVE" or "WILD_WILD_DRAW_FOUR".
func (c Card) String() string {
	return string(c.Color) + "_" + string(c.Rank)
}

// IsWild reports whether playing the card requires a color declaration.
func (c Card) IsWild() bool {
	return c.Rank == RankWild || c.Rank == RankWildDrawFour
}

// CanPlayOn mirrors the server's match rule: same color, same rank, or wild.
func (c Card) CanPlayOn(top Card) bool {
	if c.IsWild() {
		return true
	}
	return c.Color == top.Color || c.Rank == top.Rank
}

// Parse decodes a wire token of the form COLOR_RANK. Colors never contain an
// underscore, so the first one always separates the two halves.
func Parse(token string) (Card, error) {
	color, rank, ok := strings.Cut(token, "_")
	if !ok {
		return Card{}, fmt.Errorf("uno: malformed card token %q", token)
	}
	c := Card{Color: Color(color), Rank: Rank(rank)}
	if !c.Color.Valid() || !c.Rank.Valid() {
		return Card{}, fmt.Errorf("uno: unknown card token %q", token)
	}
	return c, nil
}

// Playable computes, for every hand position, whether the card is presentable
// against the given top of discard. A nil top fails open: the server is the
// real gatekeeper, so every card is offered.
func Playable(hand []Card, top *Card) []bool {
	out := make([]bool, len(hand))
	for i, c := range hand {
		out[i] = top == nil || c.CanPlayOn(*top)
	}
	return out
}
