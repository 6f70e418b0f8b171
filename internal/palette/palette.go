// Package palette validates category colors and maps them onto the emoji
// squares a chat message can show.
package palette

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var ErrInvalidColor = errors.New("invalid color")

// Defaults are handed out round-robin to categories created without a color.
var Defaults = []string{
	"#3b82f6",
	"#ef4444",
	"#22c55e",
	"#f59e0b",
	"#a855f7",
	"#14b8a6",
	"#ec4899",
	"#64748b",
}

// Default picks the color for the n-th category of a user.
func Default(n int) string {
	if n < 0 {
		n = -n
	}
	return Defaults[n%len(Defaults)]
}

// Normalize parses "#rgb", "#rrggbb" or the same without "#" and returns
// the lower-case "#rrggbb" form.
func Normalize(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", ErrInvalidColor
	}
	if !strings.HasPrefix(value, "#") {
		value = "#" + value
	}
	if len(value) != 4 && len(value) != 7 {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, raw)
	}
	c, err := colorful.Hex(value)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, raw)
	}
	return c.Hex(), nil
}

type square struct {
	emoji string
	color colorful.Color
}

var squares = mustSquares(map[string]string{
	"🟥": "#dd2e44",
	"🟧": "#f4900c",
	"🟨": "#fdcb58",
	"🟩": "#78b159",
	"🟦": "#55acee",
	"🟪": "#aa8ed6",
	"🟫": "#c1694f",
	"⬛": "#31373d",
	"⬜": "#e6e7e8",
})

func mustSquares(src map[string]string) []square {
	out := make([]square, 0, len(src))
	for emoji, hex := range src {
		c, err := colorful.Hex(hex)
		if err != nil {
			panic(err)
		}
		out = append(out, square{emoji: emoji, color: c})
	}
	return out
}

// Empty marks timeline cells with nothing tracked.
const Empty = "▫️"

// Swatch returns the emoji square perceptually closest to hex. Unparsable
// colors render as a black square.
func Swatch(hex string) string {
	c, err := colorful.Hex(hex)
	if err != nil {
		return "⬛"
	}
	best := ""
	bestDist := 0.0
	for _, sq := range squares {
		d := c.DistanceCIEDE2000(sq.color)
		if best == "" || d < bestDist || (d == bestDist && sq.emoji < best) {
			best, bestDist = sq.emoji, d
		}
	}
	return best
}
