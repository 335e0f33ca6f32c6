package wiki

import (
	"embed"
	"html/template"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/mzivkovic/wikibin/pkg"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

func renderTemplate(w http.ResponseWriter, name string, statusCode int, data any) {
	w.Header().Set("Content-Type", pkg.ContentType.HTML)
	w.WriteHeader(statusCode)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		log.Errorf("render template %s: %s", name, err)
	}
}
