package mailer

import (
	"bytes"
	"fmt"
	htmpl "html/template"
	texttpl "text/template"
)

// Template names carried in EmailJob.Template.
const (
	Welcome         = "welcome"
	PasswordChanged = "password_changed"
)

type tplSet struct {
	subject string
	text    *texttpl.Template
	html    *htmpl.Template
}

var templates = map[string]tplSet{
	Welcome: {
		subject: "Welcome to {{.AppName}}",
		text: texttpl.Must(texttpl.New("welcome.text").Parse(
			"Hi {{.Name}},\n\nYour {{.AppName}} account ({{.Email}}) is ready.\n\nIf this wasn't you, contact support.\n")),
		html: htmpl.Must(htmpl.New("welcome.html").Parse(
			"<p>Hi {{.Name}},</p><p>Your {{.AppName}} account (<b>{{.Email}}</b>) is ready.</p><p>If this wasn't you, contact support.</p>")),
	},
	PasswordChanged: {
		subject: "Your {{.AppName}} password was changed",
		text: texttpl.Must(texttpl.New("password_changed.text").Parse(
			"Hi {{.Name}},\n\nThe password for {{.Email}} was just changed.\n\nIf this wasn't you, contact support immediately.\n")),
		html: htmpl.Must(htmpl.New("password_changed.html").Parse(
			"<p>Hi {{.Name}},</p><p>The password for <b>{{.Email}}</b> was just changed.</p><p>If this wasn't you, contact support immediately.</p>")),
	},
}

// Render produces subject, text, and html bodies for the named template.
func Render(name string, data map[string]any) (subject, text, html string, err error) {
	set, ok := templates[name]
	if !ok {
		return "", "", "", fmt.Errorf("unknown email template %q", name)
	}

	st, err := texttpl.New(name + ".subject").Parse(set.subject)
	if err != nil {
		return "", "", "", err
	}
	var sb, tb, hb bytes.Buffer
	if err = st.Execute(&sb, data); err != nil {
		return "", "", "", fmt.Errorf("exec %s subject: %w", name, err)
	}
	if err = set.text.Execute(&tb, data); err != nil {
		return "", "", "", fmt.Errorf("exec %s text: %w", name, err)
	}
	if err = set.html.Execute(&hb, data); err != nil {
		return "", "", "", fmt.Errorf("exec %s html: %w", name, err)
	}
	return sb.String(), tb.String(), hb.String(), nil
}
