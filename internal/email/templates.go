package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/agency-backoffice/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template is one rendered message kind.
type Template struct {
	Name    string
	subject func(e domain.NotificationEvent) string
	body    *template.Template
}

func parse(name string) *template.Template {
	return template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
}

var (
	verifiedTemplate = Template{
		Name:    "verified",
		subject: func(e domain.NotificationEvent) string { return "Your request for " + e.ServiceName + " has been approved" },
		body:    parse("verified"),
	}
	rejectedTemplate = Template{
		Name:    "rejected",
		subject: func(e domain.NotificationEvent) string { return "Update on your request for " + e.ServiceName },
		body:    parse("rejected"),
	}
	receivedTemplate = Template{
		Name:    "received",
		subject: func(e domain.NotificationEvent) string { return "We received your request for " + e.ServiceName },
		body:    parse("received"),
	}
	genericTemplate = Template{
		Name:    "generic",
		subject: func(e domain.NotificationEvent) string { return e.Title },
		body:    parse("generic"),
	}
)

// templates must have an entry for every domain.EventType.
var templates = map[domain.EventType]Template{
	domain.EventRequestVerified:     verifiedTemplate,
	domain.EventRequestRejected:     rejectedTemplate,
	domain.EventPendingVerification: receivedTemplate,
	domain.EventNewClient:           genericTemplate,
	domain.EventTest:                genericTemplate,
}

// Message is a rendered email.
type Message struct {
	Template string
	Subject  string
	HTML     string
}

type templateData struct {
	Subject     string
	Title       string
	Body        string
	ClientName  string
	ServiceName string
	Note        string
}

// Render selects the template for e.Type and renders subject and body.
func Render(e domain.NotificationEvent) (*Message, error) {
	tpl, ok := templates[e.Type]
	if !ok {
		return nil, fmt.Errorf("no email template for %q: %w", e.Type, domain.ErrBadRequest)
	}
	subject := tpl.subject(e)
	data := templateData{
		Subject:     subject,
		Title:       e.Title,
		Body:        e.Body,
		ClientName:  e.ClientName,
		ServiceName: e.ServiceName,
		Note:        e.Note,
	}
	var buf bytes.Buffer
	if err := tpl.body.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("render %s email: %w", tpl.Name, err)
	}
	return &Message{Template: tpl.Name, Subject: subject, HTML: buf.String()}, nil
}
