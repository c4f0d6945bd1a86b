package recorder

import "strings"

// Blocklist filters transcripts that contain known hallucinated or
// unwanted phrases. Matching is case-insensitive substring.
type Blocklist struct {
	phrases []string
}

// NewBlocklist creates a blocklist from the given phrases. Empty phrases
// are ignored.
func NewBlocklist(phrases []string) *Blocklist {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return &Blocklist{phrases: out}
}

// Blocked reports whether the transcript contains any blocked phrase.
func (b *Blocklist) Blocked(transcript string) bool {
	if len(b.phrases) == 0 {
		return false
	}
	lower := strings.ToLower(transcript)
	for _, p := range b.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
