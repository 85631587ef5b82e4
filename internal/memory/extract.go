// Package memory holds the pure text heuristics of the memory engine:
// candidate extraction from chat turns and duplicate matching strategies.
package memory

import (
	"regexp"
	"strings"

	"github.com/quietriver/sage/internal/model"
)

// MaxCandidates caps how many memories a single turn may produce,
// bounding per-turn store pressure.
const MaxCandidates = 3

// firstPersonMarkers select sentences that plausibly state a durable fact
// about the speaker.
var firstPersonMarkers = []string{
	"i am",
	"i'm",
	"my goal",
	"i need",
	"i prefer",
	"i struggle",
	"i feel",
	"i want",
}

// sentenceEnd splits on terminal punctuation followed by whitespace.
var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// bulletPrefix strips leading list markers and numbering.
var bulletPrefix = regexp.MustCompile(`^[-*\d.)\s]+`)

var spaceRun = regexp.MustCompile(`\s+`)

// Extract returns up to MaxCandidates normalized candidate memories from a
// raw utterance, in original order. It is deterministic, never errors, and
// returns nil when nothing in the text reads as first-person.
func Extract(text string) []string {
	var out []string
	for _, chunk := range splitSentences(text) {
		if !firstPerson(chunk) {
			continue
		}
		norm := Normalize(chunk)
		if norm == "" {
			continue
		}
		out = append(out, norm)
		if len(out) == MaxCandidates {
			break
		}
	}
	return out
}

// Normalize trims, collapses whitespace runs, strips a leading
// bullet/numbering prefix, and truncates to the content length bound.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = spaceRun.ReplaceAllString(s, " ")
	s = bulletPrefix.ReplaceAllString(s, "")
	if len(s) > model.MaxContentLength {
		s = s[:model.MaxContentLength]
	}
	return strings.TrimSpace(s)
}

func splitSentences(text string) []string {
	// Keep the terminal punctuation with its sentence.
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	var out []string
	for _, part := range strings.Split(marked, "\x00") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstPerson(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range firstPersonMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
