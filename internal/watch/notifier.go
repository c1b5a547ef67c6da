package watch

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"
)

// Notifier delivers alerts about watched hosts.
type Notifier interface {
	SendAlert(ctx context.Context, hostname string, failures int, detail string) error
	SendRecovery(ctx context.Context, hostname string) error
}

// PartialDeliveryError is returned by Notifiers when some channels failed
// but at least one delivered.
type PartialDeliveryError struct {
	Err error
}

func (e *PartialDeliveryError) Error() string {
	return "delivered on some channels: " + e.Err.Error()
}

func (e *PartialDeliveryError) Unwrap() error { return e.Err }

// Delivered reports whether err still means the message reached someone.
func Delivered(err error) bool {
	var partial *PartialDeliveryError
	return err == nil || errors.As(err, &partial)
}

// Notifiers sends to every member and reports all failures together. One
// failing channel does not stop the others.
type Notifiers []Notifier

func (ns Notifiers) SendAlert(ctx context.Context, hostname string, failures int, detail string) error {
	return ns.each(func(n Notifier) error {
		return n.SendAlert(ctx, hostname, failures, detail)
	})
}

func (ns Notifiers) SendRecovery(ctx context.Context, hostname string) error {
	return ns.each(func(n Notifier) error {
		return n.SendRecovery(ctx, hostname)
	})
}

func (ns Notifiers) each(send func(Notifier) error) error {
	var result *multierror.Error
	for _, n := range ns {
		if err := send(n); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result == nil {
		return nil
	}
	if len(result.Errors) < len(ns) {
		return &PartialDeliveryError{Err: result}
	}
	return result
}
