package thread

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// renderer converts assistant markdown to HTML with syntax-highlighted
// code blocks.
var renderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(highlighting.WithStyle("github")),
	),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// ExportMarkdown renders a thread history as a markdown transcript.
func ExportMarkdown(h History) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Conversation %s\n\n", h.ThreadID))
	for _, t := range h.Turns {
		sb.WriteString(fmt.Sprintf("## %s\n\n", t.Role))
		sb.WriteString(t.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// ExportHTML renders a thread history as a standalone HTML transcript.
func ExportHTML(h History) (string, error) {
	md := ExportMarkdown(h)

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	buf.WriteString(fmt.Sprintf("<title>Conversation %s</title></head><body>\n", h.ThreadID))
	if err := renderer.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("rendering transcript: %w", err)
	}
	buf.WriteString("\n</body></html>\n")
	return buf.String(), nil
}
