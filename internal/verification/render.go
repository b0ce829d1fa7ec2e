// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"
)

// emailData feeds both bodies of a verification mail.
type emailData struct {
	AppName  string
	Username string
	Purpose  Purpose
	Link     string
	Expiry   string
}

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hi{{if .Username}} {{.Username}}{{end}},</p>
{{if eq .Purpose "signup"}}<p>Thanks for signing up for {{.AppName}}! Open the link below to get the code that verifies your email address.</p>
{{else}}<p>Someone (hopefully you) is trying to log in to {{.AppName}}. Open the link below to get your login code.</p>
{{end}}<p><a href="{{.Link}}">Get my verification code</a></p>
<p>The code expires in {{.Expiry}}. If you did not request it, you can ignore this email.</p>
</body>
</html>
`))

var textBody = texttemplate.Must(texttemplate.New("text").Parse(`Hi{{if .Username}} {{.Username}}{{end}},

{{if eq .Purpose "signup"}}Thanks for signing up for {{.AppName}}! Open the link below to get the code that verifies your email address.
{{else}}Someone (hopefully you) is trying to log in to {{.AppName}}. Open the link below to get your login code.
{{end}}
{{.Link}}

The code expires in {{.Expiry}}. If you did not request it, you can ignore this email.
`))

// subject returns the mail subject for purpose.
func subject(appName string, purpose Purpose) string {
	if purpose == PurposeSignUp {
		return fmt.Sprintf("Verify your email to sign up for %s", appName)
	}
	return fmt.Sprintf("%s login verification", appName)
}

// codeLink points at the page that reveals the code for codeTicket.
func codeLink(origin, codeTicket string) string {
	return strings.TrimRight(origin, "/") + "/email-verification-code?code_ticket=" + url.QueryEscape(codeTicket)
}

// expiry renders ttl as "1 hour" or "30 minutes".
func expiry(ttl time.Duration) string {
	if ttl >= time.Hour && ttl%time.Hour == 0 {
		return plural(int(ttl/time.Hour), "hour")
	}
	return plural(int(ttl.Round(time.Minute)/time.Minute), "minute")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// render produces the rich and plain bodies.
func render(data emailData) (string, string, error) {
	var html, text bytes.Buffer

	if err := htmlBody.Execute(&html, data); err != nil {
		return "", "", fmt.Errorf("verification: render html: %w", err)
	}
	if err := textBody.Execute(&text, data); err != nil {
		return "", "", fmt.Errorf("verification: render text: %w", err)
	}
	return html.String(), text.String(), nil
}
