package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	goopenai "github.com/meguminnnnnnnnn/go-openai"
	"github.com/ollama/ollama/api"
)

// Kind classifies a failed model call.
type Kind int

const (
	KindNetworkFailure Kind = iota + 1
	KindProviderRejected
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNetworkFailure:
		return "network_failure"
	case KindProviderRejected:
		return "provider_rejected"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks against an *Error of the matching kind.
var (
	ErrNetworkFailure   = errors.New("network failure")
	ErrProviderRejected = errors.New("provider rejected request")
	ErrTimeout          = errors.New("model response timed out")

	// ErrNoQuestion is returned when the history does not end with a user message.
	ErrNoQuestion = errors.New("history must end with a user question")
)

// Error is the only error type a stream produces besides io.EOF.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.sentinel().Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind.sentinel(), e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

func (k Kind) sentinel() error {
	switch k {
	case KindProviderRejected:
		return ErrProviderRejected
	case KindTimeout:
		return ErrTimeout
	default:
		return ErrNetworkFailure
	}
}

// KindOf reports the kind of a gateway error, or 0 if err is not one.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return 0
}

// statusCodePattern finds an HTTP status in error text from clients that do
// not expose a typed error.
var statusCodePattern = regexp.MustCompile(`status(?:\s+code)?[:=\s]+(\d{3})`)

var rejectionMarkers = []string{
	"invalid api key",
	"invalid_api_key",
	"incorrect api key",
	"unauthorized",
	"forbidden",
	"model_not_found",
	"invalid_request_error",
	"content_policy",
}

// classify maps an upstream failure to a gateway error. expired is true when
// the idle watchdog cancelled the call.
func classify(err error, expired bool) *Error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	if expired || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}

	if code, ok := statusCode(err); ok {
		if kind, ok := kindForStatus(code); ok {
			return &Error{Kind: kind, Err: err}
		}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rejectionMarkers {
		if strings.Contains(msg, marker) {
			return &Error{Kind: KindProviderRejected, Err: err}
		}
	}
	return &Error{Kind: KindNetworkFailure, Err: err}
}

// statusCode extracts the provider's HTTP status, preferring the typed errors
// of the openai-compatible and ollama clients over the message text.
func statusCode(err error) (int, bool) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode, true
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode != 0 {
		return statusErr.StatusCode, true
	}

	if m := statusCodePattern.FindStringSubmatch(strings.ToLower(err.Error())); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code, true
	}
	return 0, false
}

func kindForStatus(code int) (Kind, bool) {
	switch {
	case code == 408 || code == 504:
		return KindTimeout, true
	case code == 429 || code >= 500:
		return KindNetworkFailure, true
	case code >= 400:
		return KindProviderRejected, true
	}
	return 0, false
}
