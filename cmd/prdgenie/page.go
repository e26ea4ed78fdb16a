package main

import (
	"embed"
	"html/template"

	"github.com/princehaifan/prdgenie/internal/models"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

type pageData struct {
	View      models.View
	Document  template.HTML
	ArticleID string
	Accept    string
}
