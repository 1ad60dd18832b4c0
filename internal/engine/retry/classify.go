package retry

import "strings"

// Substring tokens checked case-insensitively against the error text.
// Non-retryable tokens win: an auth or not-found failure never burns budget
// even when the message also mentions a timeout somewhere.
var (
	nonRetryableTokens = []string{
		"401",
		"403",
		"404",
		"unauthorized",
		"forbidden",
		"permission denied",
		"not found",
		"bad request",
		"invalid request",
	}

	retryableTokens = []string{
		"econnreset",
		"connection reset",
		"connection refused",
		"etimedout",
		"timeout",
		"timed out",
		"deadline exceeded",
		"no such host",
		"dns",
		"rate limit",
		"too many requests",
		"429",
		"500",
		"502",
		"503",
		"504",
		"server error",
		"unexpected eof",
		"eof",
	}
)

// Retryable reports whether an error looks transient: connection resets,
// timeouts, DNS failures, rate limits and 5xx responses retry; auth,
// not-found and other 4xx responses do not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	s := strings.ToLower(err.Error())

	for _, token := range nonRetryableTokens {
		if strings.Contains(s, token) {
			return false
		}
	}
	for _, token := range retryableTokens {
		if strings.Contains(s, token) {
			return true
		}
	}

	// Unknown errors are not retried: burning budget on a logic bug
	// only delays the failure report.
	return false
}
