// Package templates holds the HTML fragments returned to HTMX clients.
package templates

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"
)

var errorAlertTmpl = template.Must(template.New("error-alert").Parse(
	`<div class="alert alert-error" role="alert" data-code="{{.Code}}">` +
		`<p class="alert-message">{{.Message}}</p>` +
		`{{if .Action}}<p class="alert-action">{{.Action}}</p>{{end}}` +
		`<p class="alert-code">Code: {{.Code}}</p>` +
		`</div>`))

var noticeTmpl = template.Must(template.New("notice").Parse(
	`<div class="alert alert-{{.Level}}" role="status">` +
		`<p class="alert-title">{{.Title}}</p>` +
		`<p class="alert-message">{{.Message}}</p>` +
		`</div>`))

// ErrorAlert renders a user-facing error with its suggested action and
// support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return errorAlertTmpl.Execute(w, struct {
			Message, Action, Code string
		}{message, action, code})
	})
}

// Notice renders a short status message, for example a commit summary.
// level is one of success, info or error.
func Notice(level, title, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return noticeTmpl.Execute(w, struct {
			Level, Title, Message string
		}{level, title, message})
	})
}
