package pipeline

import (
	"regexp"
	"strings"
)

// EmotionDetector extracts avatar expression names from sentence text.
// Implementations must be safe for concurrent use.
type EmotionDetector interface {
	Detect(text string) []string
}

type noopDetector struct{}

func (noopDetector) Detect(string) []string { return nil }

var bracketTokenRe = regexp.MustCompile(`\[(\w+)\]`)

// BracketDetector finds bracketed expression cues such as "[joy]" in
// sentence text. When built with a non-empty expression list only those
// names are reported; otherwise every bracketed token counts.
type BracketDetector struct {
	known map[string]struct{}
}

// NewBracketDetector builds a detector for the given expression names.
// Matching is case-insensitive.
func NewBracketDetector(expressions []string) *BracketDetector {
	d := &BracketDetector{}
	if len(expressions) > 0 {
		d.known = make(map[string]struct{}, len(expressions))
		for _, e := range expressions {
			d.known[strings.ToLower(e)] = struct{}{}
		}
	}
	return d
}

// Detect returns the expression names found in text, in order of
// appearance, without duplicates.
func (d *BracketDetector) Detect(text string) []string {
	var found []string
	seen := make(map[string]struct{})
	for _, m := range bracketTokenRe.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(m[1])
		if d.known != nil {
			if _, ok := d.known[name]; !ok {
				continue
			}
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		found = append(found, name)
	}
	return found
}
