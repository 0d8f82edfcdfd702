package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIsHTMLPayload covers content-type and content sniffing
func TestIsHTMLPayload(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		want        bool
	}{
		{"html content type", "<rss></rss>", "text/html; charset=utf-8", true},
		{"xhtml content type", "", "application/xhtml+xml", true},
		{"uppercase content type", "", "TEXT/HTML", true},
		{"doctype sniffed", "<!DOCTYPE html><html></html>", "application/xml", true},
		{"mixed case doctype", "  \n<!DocType HTML>", "", true},
		{"html tag sniffed", "<html lang=\"en\">", "text/plain", true},
		{"bom then doctype", "\xef\xbb\xbf<!doctype html>", "", true},
		{"rss feed", "<?xml version=\"1.0\"?><rss></rss>", "application/rss+xml", false},
		{"atom feed", "<feed xmlns=\"http://www.w3.org/2005/Atom\"></feed>", "application/atom+xml", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHTMLPayload([]byte(tt.body), tt.contentType))
		})
	}
}

// TestIsHTMLPayload_SniffWindow verifies only the head of the body is
// inspected
func TestIsHTMLPayload_SniffWindow(t *testing.T) {
	body := make([]byte, 0, 400)
	for i := 0; i < 250; i++ {
		body = append(body, ' ')
	}
	body = append(body, []byte("<html>")...)

	assert.False(t, IsHTMLPayload(body, ""), "doctype past the sniff window should not count")
}
