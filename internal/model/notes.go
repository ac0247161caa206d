package model

import "strings"

// NoteSeparator joins decision tags in AddressResult.Note.
const NoteSeparator = ";"

// Notes is the ordered log of decision tags recorded while a row is
// reconciled. Tags can only be appended.
type Notes struct {
	tags []string
}

// Append records a decision tag. Empty tags are ignored.
func (n *Notes) Append(tag string) {
	if tag == "" {
		return
	}
	n.tags = append(n.tags, tag)
}

// Tags returns a copy of the recorded tags in order.
func (n *Notes) Tags() []string {
	out := make([]string, len(n.tags))
	copy(out, n.tags)
	return out
}

// Len returns the number of recorded tags.
func (n *Notes) Len() int { return len(n.tags) }

// String returns the tags joined by NoteSeparator.
func (n *Notes) String() string {
	return strings.Join(n.tags, NoteSeparator)
}
