package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

const reminderDateLayout = "Mon 02 Jan 2006, 15:04 MST"

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type followUpReminderEmailData struct {
	baseEmailData
	RecipientName string
	LeadName      string
	LeadPhone     string
	FollowUpType  string
	ScheduledAt   string
	Notes         string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// followUpLabel turns SITE_VISIT into "site visit".
func followUpLabel(kind string) string {
	return strings.ToLower(strings.ReplaceAll(kind, "_", " "))
}

func reminderSubject(r FollowUpReminder) string {
	if r.DueIn == "" {
		return fmt.Sprintf(subjectReminderDue, r.LeadName)
	}
	return fmt.Sprintf(subjectReminderUpcoming, followUpLabel(r.FollowUpType), r.LeadName, r.DueIn)
}

func renderFollowUpReminder(r FollowUpReminder) (string, error) {
	heading := fmt.Sprintf("Upcoming %s %s", followUpLabel(r.FollowUpType), r.DueIn)
	if r.DueIn == "" {
		heading = "Follow-up due now"
	}

	return renderEmailTemplate("follow_up_reminder.html", followUpReminderEmailData{
		baseEmailData: baseEmailData{
			Title:    reminderSubject(r),
			Heading:  heading,
			CTALabel: "Open lead",
			CTAURL:   r.LeadURL,
		},
		RecipientName: r.RecipientName,
		LeadName:      r.LeadName,
		LeadPhone:     r.LeadPhone,
		FollowUpType:  followUpLabel(r.FollowUpType),
		ScheduledAt:   r.ScheduledAt.Format(reminderDateLayout),
		Notes:         r.Notes,
	})
}
