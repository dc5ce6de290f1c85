package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"feed2podcast/internal/logging"
)

//go:embed assets/templates/*.html
var templateFS embed.FS

//go:embed assets/openapi.json
var openAPISpec []byte

type pageData struct {
	Title       string
	Description string
	Voices      []string
	APIBase     string
	Docs        bool
}

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFS, "assets/templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("server: parse templates: %w", err)
	}
	return tmpl, nil
}

// openAPIDocument returns the embedded document with its server URL set to
// publicURL.
func openAPIDocument(publicURL string) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(openAPISpec, &doc); err != nil {
		return nil, fmt.Errorf("server: decode openapi document: %w", err)
	}
	doc["servers"] = []map[string]string{{"url": publicURL}}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("server: encode openapi document: %w", err)
	}
	return out, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "index", "Feed2Podcast WebUI", "Convert RSS feeds to podcasts with TTS.")
}

func (s *Server) handleDemoPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, "demo", "Feed2Podcast Voice Demo", "Demonstrate available TTS voices.")
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, name, title, description string) {
	voices, err := s.episodes.Voices(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	err = s.pages.ExecuteTemplate(&buf, name, pageData{
		Title:       title,
		Description: description,
		Voices:      voices,
		APIBase:     s.opts.PublicURL + "/api",
		Docs:        !s.opts.DisableDocs,
	})
	if err != nil {
		s.logger.Error("render page failed", logging.String("page", name), logging.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "render page"})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(s.docs)
}
