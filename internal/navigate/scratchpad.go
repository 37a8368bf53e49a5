package navigate

import (
	"fmt"
	"strings"
)

// Scratchpad is the append-only reasoning trail the router accumulates
// across recursion depths. It is a value: WithEntry returns an extended
// copy, so concurrent questions never share state.
type Scratchpad struct {
	entries []string
}

// WithEntry returns a Scratchpad extended with a depth-tagged entry.
func (s Scratchpad) WithEntry(depth int, text string) Scratchpad {
	entries := make([]string, len(s.entries), len(s.entries)+1)
	copy(entries, s.entries)
	entries = append(entries, fmt.Sprintf("DEPTH %d REASONING:\n%s", depth, text))
	return Scratchpad{entries: entries}
}

// String joins all entries with blank-line separators.
func (s Scratchpad) String() string {
	return strings.Join(s.entries, "\n\n")
}

func (s Scratchpad) IsEmpty() bool { return len(s.entries) == 0 }

func (s Scratchpad) Len() int { return len(s.entries) }
