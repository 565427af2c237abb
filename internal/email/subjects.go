package email

const (
	subjectReminderDue      = "Follow-up due now: %s"
	subjectReminderUpcoming = "Upcoming %s with %s %s"
)
