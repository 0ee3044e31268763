package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var listTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/list.html")
	if err != nil {
		// Fallback to built-in template if file not found
		listTemplate = template.Must(template.New("list").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	listTemplate = template.Must(template.New("list").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for list template rendering.
type TemplateData struct {
	Title       string
	List        string
	AsOf        *time.Time
	GeneratedAt time.Time
	Levels      []Level
}

// RenderListHTML renders the list template with provided data.
func RenderListHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := listTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load.
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { width: 100%; border-collapse: collapse; }
    th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid #ddd; }
    .historic { color: #999; font-style: italic; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.List}}{{if .AsOf}} | as of {{.AsOf.Format "Jan 2, 2006 15:04 MST"}}{{end}} | generated {{formatDate .GeneratedAt "Jan 2, 2006"}}</div>
  <table>
    <tr><th>#</th><th>Level</th><th>Creator</th><th>Verifier</th></tr>
    {{range .Levels}}
    <tr{{if .Historic}} class="historic"{{end}}><td>{{.Placement}}</td><td>{{.Name}}</td><td>{{.Creator}}</td><td>{{.Verifier}}</td></tr>
    {{end}}
  </table>
</body>
</html>`
