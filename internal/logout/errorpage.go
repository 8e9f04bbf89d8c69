package logout

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jermoo/tokencore/internal/hooks"
)

// sanitizer strips all HTML tags from hook-supplied error text before it
// is embedded in the built-in error page, the same strict policy the
// teacher applies to free-text user input (internal/handlers/overwintering.go).
var sanitizer = bluemonday.StrictPolicy()

const errorPageTemplate = `<!DOCTYPE html>
<html>
<head><title>Logout error</title></head>
<body>
<h1>Logout failed</h1>
<p><strong>{{.Error}}</strong></p>
{{if .Description}}<p>{{.Description}}</p>{{end}}
</body>
</html>
`

var errorPage = template.Must(template.New("logout-error").Parse(errorPageTemplate))

// renderErrorPage builds the built-in HTML error page used when the host
// sets application_can_display_errors = false (§4.9 Apply). Free-text
// fields are stripped of HTML before templating; the template's own
// escaping handles everything else.
func renderErrorPage(r *hooks.Rejection) []byte {
	if r == nil {
		r = &hooks.Rejection{Error: "server_error"}
	}
	data := struct{ Error, Description string }{
		Error:       sanitizer.Sanitize(r.Error),
		Description: sanitizer.Sanitize(r.Description),
	}

	var b strings.Builder
	if err := errorPage.Execute(&b, data); err != nil {
		return []byte(fmt.Sprintf("logout failed: %s", data.Error))
	}
	return []byte(b.String())
}
