package posts

import "time"

// Raw is the record shape every acquisition strategy produces before
// normalization. Each strategy maps its own field names into this struct.
type Raw struct {
	Title   string
	Link    string
	Summary string

	// Published is set when the source already parsed the date (feeds).
	Published *time.Time

	// Dates holds candidate date strings in priority order. The first one
	// that parses wins.
	Dates []string

	// Source names the strategy that produced the record.
	Source string
}

// DedupeRaws drops records whose canonical link was already seen, keeping
// the first occurrence. Records without a usable link are dropped. Links
// are rewritten to their canonical form.
func DedupeRaws(raws []Raw, base string) []Raw {
	seen := make(map[string]bool, len(raws))
	out := make([]Raw, 0, len(raws))
	for _, raw := range raws {
		link := CanonicalLink(raw.Link, base)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		raw.Link = link
		out = append(out, raw)
	}
	return out
}
