// notify.go - Post-commit notification hook.
//
// Notifications are best-effort and out-of-band: they run after the
// atomic unit has durably committed, and a delivery failure is logged
// but never rolls back or fails the transfer.
package bank

import "context"

// Notifier delivers a message to an account owner. Implementations live
// outside this package (see notify/); failures are the caller's to log
// and swallow.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, recipient, subject, body string) error

func (f NotifierFunc) Notify(ctx context.Context, recipient, subject, body string) error {
	return f(ctx, recipient, subject, body)
}

// NopNotifier discards all notifications. Used when no hook is wired.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string, string) error { return nil }
