package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds (86400 seconds = 24 hours)
	AccessTokenTTLSeconds = 86400

	// SessionTimeout is the default session timeout (24 hours)
	SessionTimeout = 24 * time.Hour

	// OTPExpiry is the time-to-live for OTP codes (5 minutes)
	OTPExpiry = 5 * time.Minute

	// OTPExpirySeconds is the time-to-live for OTP codes in seconds (300 seconds = 5 minutes)
	OTPExpirySeconds = 300

	// OTPResendCooldown is the minimum interval between OTP sends to the same number
	OTPResendCooldown = 30 * time.Second
)

// Query engine constants
const (
	// PollInterval is the interval at which clients poll for query task results
	PollInterval = 1 * time.Second

	// QueryTaskTimeout is the maximum wall-clock time a query task may run
	QueryTaskTimeout = 2 * time.Minute

	// ResultCacheTTL is how long terminal task results stay in the cache
	ResultCacheTTL = 15 * time.Minute

	// DefaultThreadTitle is the title given to a conversation before its first question
	DefaultThreadTitle = "New Conversation"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400

	// LoginFailureCaptchaThreshold is the failed-login count after which a captcha is required
	LoginFailureCaptchaThreshold = 3

	// LoginFailureWindow is the window over which failed logins are counted
	LoginFailureWindow = 15 * time.Minute
)
