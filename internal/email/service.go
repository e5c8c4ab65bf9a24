// Package email sends review notifications via SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"trailcms/api/internal/gitrepo"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) fromHeader() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	return s.config.From
}

// SendHTMLEmail sends a multipart message with a plain-text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("send email: no recipients")
	}

	boundary := "boundary-trailcms"
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", textBody)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	if err := s.send(s.server, s.auth, s.config.From, to, msg.Bytes()); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// ReviewNotifier mails the configured reviewers whenever the engine opens a
// pull request.
type ReviewNotifier struct {
	mail       *Service
	recipients []string
}

func NewReviewNotifier(mail *Service, recipients []string) *ReviewNotifier {
	return &ReviewNotifier{mail: mail, recipients: recipients}
}

// Enabled reports whether notifications would actually be sent.
func (n *ReviewNotifier) Enabled() bool {
	return n != nil && n.mail != nil && n.mail.IsConfigured() && len(n.recipients) > 0
}

type reviewData struct {
	Title  string
	Number int
	URL    string
	Branch string
	Body   string
}

func (n *ReviewNotifier) PullRequestOpened(_ context.Context, pr gitrepo.PullRequest) error {
	if !n.Enabled() {
		return nil
	}
	data := reviewData{Title: pr.Title, Number: pr.Number, URL: pr.HTMLURL, Branch: pr.Head.Ref, Body: pr.Body}
	html, err := renderTemplate(reviewTemplate, data)
	if err != nil {
		return fmt.Errorf("render review template: %w", err)
	}
	text := fmt.Sprintf("%s\n\nPull request #%d (%s) is waiting for review:\n%s\n\n%s", pr.Title, pr.Number, pr.Head.Ref, pr.HTMLURL, pr.Body)
	subject := fmt.Sprintf("Review requested: %s", pr.Title)
	return n.mail.SendHTMLEmail(n.recipients, subject, text, html)
}

var reviewTemplate = template.Must(template.New("review").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #2f6b3a; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .body { white-space: pre-wrap; background: #f6f6f6; padding: 12px; border-radius: 4px; }
    </style>
</head>
<body>
    <h2>{{.Title}}</h2>
    <p>Pull request #{{.Number}} from branch <code>{{.Branch}}</code> is waiting for review.</p>
    <div class="body">{{.Body}}</div>
    <p><a href="{{.URL}}" class="button">Open pull request</a></p>
</body>
</html>`))

func renderTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
