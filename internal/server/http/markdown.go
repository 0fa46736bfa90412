package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// One converter is shared across requests. The configuration never changes
// and goldmark converters are safe for concurrent use.
var (
	markdownConverter goldmark.Markdown
	markdownOnce      sync.Once
)

func converter() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownConverter = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
			),
			goldmark.WithRendererOptions(
				// Clients render into sandboxed views; raw HTML in
				// transcripts passes through.
				html.WithUnsafe(),
			),
		)
	})
	return markdownConverter
}

// RenderMarkdown converts GitHub-flavored markdown to HTML.
func RenderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := converter().Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// handleMarkdown handles POST /api/markdown.
func (s *Server) handleMarkdown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Markdown string `json:"markdown"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	rendered, err := RenderMarkdown(req.Markdown)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"html": rendered})
}
