package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
)

// mailData is the view passed to every template.
type mailData struct {
	Name   string
	Title  string
	Link   string
	Status string
}

type mailTemplate struct {
	subject string
	html    *template.Template
	text    *texttemplate.Template
}

const layout = `<!doctype html><html><body style="font-family:sans-serif">
<p>Hello {{.Name}},</p>
{{template "body" .}}
<p><a href="{{.Link}}">Open {{.Title}}</a></p>
</body></html>`

var templates = map[Kind]mailTemplate{
	KindSignatureRequest: newTemplate(
		"Signature requested: %s",
		`<p>It is your turn to review and sign <strong>{{.Title}}</strong>.</p>`,
		"It is your turn to review and sign {{.Title}}.\n\n{{.Link}}\n",
	),
	KindReminder: newTemplate(
		"Reminder: %s is waiting for your signature",
		`<p><strong>{{.Title}}</strong> is still waiting for your signature.</p>`,
		"{{.Title}} is still waiting for your signature.\n\n{{.Link}}\n",
	),
	KindDocumentCompleted: newTemplate(
		"Completed: %s",
		`<p>Every participant has signed <strong>{{.Title}}</strong>.</p>`,
		"Every participant has signed {{.Title}}.\n\n{{.Link}}\n",
	),
	KindDocumentRejected: newTemplate(
		"Rejected: %s",
		`<p><strong>{{.Title}}</strong> was rejected and the signing process has stopped.</p>`,
		"{{.Title}} was rejected and the signing process has stopped.\n\n{{.Link}}\n",
	),
}

func newTemplate(subject, body, text string) mailTemplate {
	html := template.Must(template.New("mail").Parse(layout))
	template.Must(html.New("body").Parse(body))
	return mailTemplate{
		subject: subject,
		html:    html,
		text:    texttemplate.Must(texttemplate.New("text").Parse("Hello {{.Name}},\n\n" + text)),
	}
}

// render builds the message for a recipient.
func render(kind Kind, to Recipient, data mailData) (Message, error) {
	t, ok := templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("no template for %s", kind)
	}

	var html, text bytes.Buffer
	if err := t.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", kind, err)
	}
	if err := t.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", kind, err)
	}

	return Message{
		To:      to.Email,
		ToName:  to.Name,
		Subject: fmt.Sprintf(t.subject, strings.TrimSpace(data.Title)),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
