package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

// SubjectWebinarStarted is the subject of the go-live email.
const SubjectWebinarStarted = "Webinar Has Started"

var webinarStartedHTML = template.Must(template.New("webinar_started").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:Arial,sans-serif;background:#0b0b0f;color:#f5f5f5;padding:24px">
  <h1 style="font-size:22px">{{.Title}} is live now</h1>
  <p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}}, the webinar you registered for has just started.</p>
  <p><a href="{{.JoinURL}}" style="display:inline-block;padding:12px 20px;background:#6d28d9;color:#fff;border-radius:8px;text-decoration:none">Join the webinar</a></p>
  <p style="font-size:12px;color:#9ca3af">If the button does not work, paste this link into your browser: {{.JoinURL}}</p>
</body>
</html>`))

// WebinarStarted is the data of the go-live email.
type WebinarStarted struct {
	Name    string
	Title   string
	JoinURL string
}

// Render builds the message for to.
func (d WebinarStarted) Render(to string) (Message, error) {
	var buf bytes.Buffer
	if err := webinarStartedHTML.Execute(&buf, d); err != nil {
		return Message{}, fmt.Errorf("render webinar_started: %w", err)
	}
	return Message{
		To:      to,
		Subject: SubjectWebinarStarted,
		HTML:    buf.String(),
		Text:    fmt.Sprintf("%s is live now. Join here: %s", d.Title, d.JoinURL),
	}, nil
}

// JoinURL is the attendee link to a webinar page. token authenticates the attendee.
func JoinURL(publicURL, webinarID, token string) string {
	u := publicURL + "/live-webinar/" + webinarID
	if token != "" {
		u += "?token=" + token
	}
	return u
}
