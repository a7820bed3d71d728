package sms

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Sender delivers one-time codes to a phone number.
//
// The engine depends only on this interface; delivery internals live with
// the provider client.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// LogSender logs codes instead of sending them, for development and tests.
type LogSender struct{}

// SendOTP logs the code delivery.
func (LogSender) SendOTP(_ context.Context, phone, _ string) error {
	log.WithField("phone", phone).Info("sms: otp delivery skipped (log sender)")
	return nil
}

var _ Sender = LogSender{}
