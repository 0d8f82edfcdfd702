package site

import (
	"html"
	"html/template"
	"strings"
)

const tabWidth = 4

// PoemHTML renders a poem as stanza paragraphs. Lines within a stanza are
// joined with <br>, leading indentation is kept as non-breaking spaces and
// every blank line beyond a stanza separator becomes an empty paragraph.
func PoemHTML(poem string) template.HTML {
	poem = strings.ReplaceAll(poem, "\r\n", "\n")
	poem = strings.ReplaceAll(poem, "\r", "\n")
	poem = strings.TrimPrefix(poem, "\n")

	lines := strings.Split(poem, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	var b strings.Builder
	var stanza []string
	flush := func() {
		b.WriteString("<p>")
		b.WriteString(strings.Join(stanza, "<br>"))
		b.WriteString("</p>")
		stanza = stanza[:0]
	}

	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			stanza = append(stanza, poemLine(line))
			continue
		}
		if len(stanza) > 0 {
			// The first blank line only closes the stanza
			flush()
			continue
		}
		b.WriteString("<p><br></p>")
	}
	if len(stanza) > 0 {
		flush()
	}

	return template.HTML(b.String())
}

func poemLine(line string) string {
	line = strings.TrimRight(line, " \t")

	var indent strings.Builder
	i := 0
	for ; i < len(line); i++ {
		switch line[i] {
		case ' ':
			indent.WriteString("&nbsp;")
		case '\t':
			indent.WriteString(strings.Repeat("&nbsp;", tabWidth))
		default:
			return indent.String() + html.EscapeString(line[i:])
		}
	}
	return indent.String()
}
