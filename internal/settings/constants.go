package settings

import "time"

// Defaults for the credit and unlock engine.
const (
	// FreeTrialViews is the credit allotment seeded at OTP verification.
	FreeTrialViews = 10
	// FreeTrialPlanName labels the free-trial pseudo plan.
	FreeTrialPlanName = "Free Trial"
	// UnlockWindow is how long a paid unlock stays valid.
	UnlockWindow = 24 * time.Hour
	// ChargeRetryLimit bounds retries of the charge transaction on conflict.
	ChargeRetryLimit = 1
)

// Defaults for registration OTP delivery.
const (
	// OTPDigits is the number of digits in a registration code.
	OTPDigits = 6
	// OTPWindow is how long a registration code stays valid.
	OTPWindow = 5 * time.Minute
	// OTPSendLimitPerMinute caps OTP sends per phone per minute.
	OTPSendLimitPerMinute = 3
)

// Defaults for rate limiting.
const (
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "ks:rl"
	// UnlockAttemptLimitPerSecond caps unlock attempts per client per second.
	UnlockAttemptLimitPerSecond = 5
)
