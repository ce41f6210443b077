package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
)

// ErrorType decides what failover does with a failed provider call.
type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
)

// ClassifyError looks at SDK status codes first and falls back to the
// message text for providers that only surface strings.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient
	}
	msg := strings.ToLower(err.Error())
	if status := statusOf(err); status != 0 {
		switch {
		case status == http.StatusTooManyRequests && mentionsQuota(msg):
			return ErrorQuota
		case status == http.StatusTooManyRequests:
			return ErrorRate
		case status == http.StatusRequestEntityTooLarge:
			return ErrorContext
		case status >= 500:
			return ErrorTransient
		}
	}
	switch {
	case mentionsQuota(msg):
		return ErrorQuota
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "rate_limit"), strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return ErrorRate
	case strings.Contains(msg, "context length"), strings.Contains(msg, "context_length"), strings.Contains(msg, "context window"), strings.Contains(msg, "too long"):
		return ErrorContext
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "temporarily"), strings.Contains(msg, "unavailable"), strings.Contains(msg, "503"), strings.Contains(msg, "overloaded"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

func mentionsQuota(msg string) bool {
	return strings.Contains(msg, "quota") || strings.Contains(msg, "credit")
}

func statusOf(err error) int {
	var oa *openai.APIError
	if errors.As(err, &oa) {
		return oa.HTTPStatusCode
	}
	var or *openai.RequestError
	if errors.As(err, &or) {
		return or.HTTPStatusCode
	}
	var ae *anthropic.Error
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}
