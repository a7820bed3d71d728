package otp

import (
	"errors"
	"fmt"
	"time"

	"github.com/kaamsetu-in/kaamsetu/internal/settings"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// ErrInvalidCode indicates the submitted registration code did not match.
var ErrInvalidCode = errors.New("invalid otp code")

// issuer names the service in generated OTP secrets.
const issuer = "KaamSetu"

// validateOpts returns the TOTP parameters for registration codes: 6 digits
// over a 5 minute window with one period of clock skew.
func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    uint(settings.OTPWindow / time.Second),
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// NewSecret generates a per-user secret for registration codes.
func NewSecret(phone string) (string, error) {
	key, errGenerate := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: phone,
	})
	if errGenerate != nil {
		return "", fmt.Errorf("otp: generate secret: %w", errGenerate)
	}
	return key.Secret(), nil
}

// Code derives the current registration code for a secret.
func Code(secret string, now time.Time) (string, error) {
	code, errCode := totp.GenerateCodeCustom(secret, now, validateOpts())
	if errCode != nil {
		return "", fmt.Errorf("otp: generate code: %w", errCode)
	}
	return code, nil
}

// Verify checks a submitted code against the user's secret.
func Verify(secret, code string, now time.Time) error {
	ok, errValidate := totp.ValidateCustom(code, secret, now, validateOpts())
	if errValidate != nil {
		return fmt.Errorf("otp: validate code: %w", errValidate)
	}
	if !ok {
		return ErrInvalidCode
	}
	return nil
}
