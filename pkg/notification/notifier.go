package notification

// NotificationData is the content of a single notice.
type NotificationData struct {
	To      string // recipient email address
	Subject string
	Body    string
}

// Notifier delivers notices to users, e.g. after a role assignment.
type Notifier interface {
	Send(notification NotificationData) error
}
