package account

import (
	"context"
	"fmt"
)

// Mailer is the email dispatch collaborator. Send blocks until the message is
// accepted or rejected; callers bound the call with their context deadline.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, to, subject, body string) error

// Send implements Mailer.
func (f MailerFunc) Send(ctx context.Context, to, subject, body string) error {
	if f == nil {
		return nil
	}
	return f(ctx, to, subject, body)
}

// ConsoleMailer writes notifications to stdout. Development only.
type ConsoleMailer struct{}

func (ConsoleMailer) Send(_ context.Context, to, subject, body string) error {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", to)
	fmt.Printf("subject: %s\n", subject)
	fmt.Printf("body: %s\n", body)
	return nil
}

var _ Mailer = ConsoleMailer{}
