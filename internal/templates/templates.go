package templates

import (
	_ "embed"
	"html/template"
	"log"
	"net/http"
	"sync"
)

//go:embed game.html
var gameHTML string

var (
	mu     sync.RWMutex
	commit = "dev"

	gameTemplate = template.Must(LoadTemplate("game", gameHTML))
)

type pageData struct {
	Commit    string
	Transport string
}

// SetCommit sets the build commit shown in the page footer
func SetCommit(c string) {
	if c == "" {
		return
	}
	mu.Lock()
	commit = c
	mu.Unlock()
}

// WriteGameHTML serves the game page for the given transport
func WriteGameHTML(w http.ResponseWriter, transport string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	mu.RLock()
	data := pageData{Commit: commit, Transport: transport}
	mu.RUnlock()
	if err := gameTemplate.Execute(w, data); err != nil {
		log.Printf("render game page: %v", err)
	}
}

// LoadTemplate loads and parses an HTML template
func LoadTemplate(name, content string) (*template.Template, error) {
	return template.New(name).Parse(content)
}
