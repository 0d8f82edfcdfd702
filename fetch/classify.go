package fetch

import (
	"bytes"
	"strings"
)

const sniffLen = 200

// IsHTMLPayload reports whether a payload is an HTML document (a real page
// or a block page) rather than a feed candidate.
func IsHTMLPayload(body []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}

	head := body
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	// A UTF-8 byte order mark would hide the doctype
	head = bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))
	head = bytes.ToLower(bytes.TrimSpace(head))

	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}
