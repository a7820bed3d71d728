package ratelimit

import "fmt"

// KeyForPhone builds a limiter key for OTP sends to a phone number.
func KeyForPhone(phone string) string {
	if phone == "" {
		return ""
	}
	return fmt.Sprintf("otp:%s", phone)
}

// KeyForUnlock builds a limiter key for a client's unlock attempts.
func KeyForUnlock(userID uint64) string {
	if userID == 0 {
		return ""
	}
	return fmt.Sprintf("unlock:u:%d", userID)
}
