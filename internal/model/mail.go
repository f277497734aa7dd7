package model

// MailMessage is a single outbound email.  It is the payload published to
// the mail queue and handed to the SMTP sender by the mail worker.
type MailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Kind    string `json:"kind,omitempty"`
}
