// internal/workers/application/send-notification/payload.go
package sendnotification

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"candidate-notifier/internal/common/contact"
	"candidate-notifier/internal/common/errors"
	"candidate-notifier/internal/models"
	smssend "candidate-notifier/internal/workers/communication/sms-send"
)

const (
	maxDescriptionLength = 250
	applicationStatus    = "APPLIED"
	appliedAtLayout      = "Jan 02, 2006 at 03:04 PM"
)

// emailData feeds emailTmpl; every field is auto-escaped by html/template.
type emailData struct {
	Subject     string
	FirstName   string
	Title       string
	Client      string
	Location    string
	Duration    string
	PayRate     string
	MatchScore  int
	Description string
	Status      string
	AppliedAt   string
}

var emailTmpl = template.Must(template.New("application-email").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1.0">
  <title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:0;background-color:#f4f4f5;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Arial,sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0" role="presentation" style="background-color:#f4f4f5;padding:40px 16px;">
    <tr>
      <td align="center">
        <table width="600" cellpadding="0" cellspacing="0" role="presentation" style="max-width:600px;width:100%;background-color:#ffffff;border-radius:12px;">
          <tr>
            <td style="padding:32px 40px 8px 40px;">
              <p style="margin:0 0 16px 0;font-size:16px;color:#111827;">Hi {{.FirstName}},</p>
              <p style="margin:0 0 24px 0;font-size:15px;line-height:1.6;color:#374151;">
                We've applied to the following position on your behalf.
              </p>
            </td>
          </tr>
          <tr>
            <td style="padding:0 40px;">
              <h2 style="margin:0 0 4px 0;font-size:20px;color:#111827;">{{.Title}}</h2>
              <p style="margin:0 0 16px 0;font-size:14px;color:#6b7280;">{{.Client}}{{if .Location}} &middot; {{.Location}}{{end}}</p>
              <table cellpadding="0" cellspacing="0" role="presentation" style="font-size:14px;color:#374151;">
                <tr><td style="padding:2px 16px 2px 0;color:#6b7280;">Match</td><td>{{.MatchScore}}%</td></tr>
                {{if .Duration}}<tr><td style="padding:2px 16px 2px 0;color:#6b7280;">Duration</td><td>{{.Duration}}</td></tr>{{end}}
                {{if .PayRate}}<tr><td style="padding:2px 16px 2px 0;color:#6b7280;">Pay rate</td><td>{{.PayRate}}</td></tr>{{end}}
                <tr><td style="padding:2px 16px 2px 0;color:#6b7280;">Status</td><td>{{.Status}}</td></tr>
                <tr><td style="padding:2px 16px 2px 0;color:#6b7280;">Applied</td><td>{{.AppliedAt}}</td></tr>
              </table>
              {{if .Description}}<p style="margin:24px 0 0 0;font-size:14px;line-height:1.6;color:#374151;">{{.Description}}</p>{{end}}
            </td>
          </tr>
          <tr>
            <td style="padding:32px 40px;font-size:12px;color:#9ca3af;">
              You are receiving this because you enabled automatic applications.
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`))

func newEmailData(view *models.ApplicationView, now time.Time) emailData {
	req := view.Requirement
	return emailData{
		Subject:     emailSubject(req),
		FirstName:   firstName(view.Candidate),
		Title:       req.Title,
		Client:      req.Client,
		Location:    req.Location,
		Duration:    req.Duration,
		PayRate:     req.PayRate,
		MatchScore:  req.MatchPercent(),
		Description: truncate(req.Description, maxDescriptionLength),
		Status:      applicationStatus,
		AppliedAt:   now.Format(appliedAtLayout),
	}
}

func emailSubject(req models.Requirement) string {
	return fmt.Sprintf("Applied: %s at %s (%d%% match)", req.Title, req.Client, req.MatchPercent())
}

func firstName(c models.Candidate) string {
	if c.FirstName != "" {
		return c.FirstName
	}
	return contact.FirstName(c.Name)
}

// truncate cuts s to limit runes and appends "..." when anything was dropped.
func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func renderEmailHTML(data emailData) (string, error) {
	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderEmailText(data emailData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", data.FirstName)
	b.WriteString("We've applied to the following position on your behalf.\n\n")
	fmt.Fprintf(&b, "%s\n%s", data.Title, data.Client)
	if data.Location != "" {
		fmt.Fprintf(&b, " - %s", data.Location)
	}
	fmt.Fprintf(&b, "\nMatch: %d%%\nStatus: %s\nApplied: %s\n", data.MatchScore, data.Status, data.AppliedAt)
	if data.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", data.Description)
	}
	return b.String()
}

// buildEmail renders the email for view. A missing or malformed address is a
// permanent error.
func buildEmail(view *models.ApplicationView, now time.Time) (*models.Message, error) {
	addr := strings.TrimSpace(view.Candidate.Email)
	if addr == "" {
		return nil, errors.NewNoContactError(string(models.ChannelEmail))
	}
	if !contact.ValidEmail(addr) {
		return nil, errors.NewInvalidEmailError(addr)
	}

	data := newEmailData(view, now)
	html, err := renderEmailHTML(data)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("render email: %v", err))
	}

	return &models.Message{
		Channel:     models.ChannelEmail,
		To:          addr,
		Subject:     data.Subject,
		Body:        html,
		TextBody:    renderEmailText(data),
		Application: view.ApplicationID,
	}, nil
}

func smsBody(view *models.ApplicationView) string {
	req := view.Requirement
	return fmt.Sprintf("Hi %s, you've been applied to %s at %s (%d%% match). Check your email for details.",
		firstName(view.Candidate), req.Title, req.Client, req.MatchPercent())
}

// buildSMS picks the first non-empty phone (mobile, work, home), normalises it
// and renders the body. No phone, an unusable phone and an oversized body are
// all permanent errors.
func buildSMS(view *models.ApplicationView, formatter *contact.Formatter) (*models.Message, error) {
	c := view.Candidate
	raw := contact.FirstPhone(c.MobilePhone, c.WorkPhone, c.HomePhone)
	if raw == "" {
		return nil, errors.NewNoContactError(string(models.ChannelSMS))
	}

	phone, ok := formatter.Resolve(raw)
	if !ok {
		return nil, errors.NewInvalidPhoneError(raw)
	}

	body := smsBody(view)
	if n := utf8.RuneCountInString(body); n > smssend.MaxMessageLength {
		return nil, errors.NewPayloadTooLargeError(string(models.ChannelSMS), n, smssend.MaxMessageLength)
	}

	return &models.Message{
		Channel:     models.ChannelSMS,
		To:          phone,
		Body:        body,
		Application: view.ApplicationID,
	}, nil
}
