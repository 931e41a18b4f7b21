package conversation

import "math/rand/v2"

// markers identify turns in logs. Picked at random per turn so concurrent
// log streams from different clients stay readable.
var markers = []string{
	"🐶", "🐱", "🐭", "🐹", "🐰", "🦊", "🐻", "🐼", "🐨", "🐯",
	"🦁", "🐮", "🐷", "🐸", "🐵", "🐔", "🐧", "🐦", "🐤", "🦆",
	"🦅", "🦉", "🦇", "🐺", "🐗", "🐴", "🦄", "🐝", "🌵", "🌲",
}

func pickMarker() string {
	return markers[rand.IntN(len(markers))]
}
