// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package apierr defines the coded errors shared by every platform client.
// Codes are stable strings so that the CLI, the HTTP API and the run history
// can classify failures without matching on messages.
package apierr

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/serum-errors/go-serum"
)

const (
	CodeMissingCredential = "ccos-error-missing-credential"
	CodeUsage             = "ccos-error-usage"
	CodeHTTPStatus        = "ccos-error-http-status"
	CodeTransport         = "ccos-error-transport"
	CodeDecode            = "ccos-error-decode"
	CodeJobFailed         = "ccos-error-job-failed"
	CodeJobTimeout        = "ccos-error-job-timeout"
	CodeArtifactTooSmall  = "ccos-error-artifact-too-small"
	CodeConfig            = "ccos-error-config"
	CodeIO                = "ccos-error-io"
	CodePublish           = "ccos-error-publish"
	CodeUpstream          = "ccos-error-upstream"
	CodeUnknown           = "ccos-error-unknown"
)

// maxBodyDetail bounds how much of an upstream response body is kept on an error.
const maxBodyDetail = 2048

// MissingCredential is returned before any network call when a platform's
// required environment variables are not set.
//
// Errors:
//
//   - ccos-error-missing-credential --
func MissingCredential(platform string, vars []string, guide string) error {
	return serum.Error(CodeMissingCredential,
		serum.WithMessageTemplate("{{platform}} is not configured: missing {{vars}}"),
		serum.WithDetail("platform", platform),
		serum.WithDetail("vars", strings.Join(vars, ", ")),
		serum.WithDetail("setup", guide),
	)
}

// Usage reports bad or missing invocation parameters.
//
// Errors:
//
//   - ccos-error-usage --
func Usage(message string, usage string) error {
	return serum.Error(CodeUsage,
		serum.WithMessageLiteral(message),
		serum.WithDetail("usage", usage),
	)
}

// HTTPStatus wraps a non-2xx upstream response.
//
// Errors:
//
//   - ccos-error-http-status --
func HTTPStatus(status int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxBodyDetail {
		text = text[:maxBodyDetail] + "..."
	}
	return serum.Error(CodeHTTPStatus,
		serum.WithMessageTemplate("upstream returned HTTP {{status}}: {{body}}"),
		serum.WithDetail("status", strconv.Itoa(status)),
		serum.WithDetail("body", text),
	)
}

// Transport wraps a network-level failure (DNS, connection reset, timeout).
//
// Errors:
//
//   - ccos-error-transport --
func Transport(cause error) error {
	return serum.Error(CodeTransport,
		serum.WithMessageLiteral("request failed"),
		serum.WithCause(cause),
	)
}

// Decode is returned when a response that must be JSON cannot be parsed.
//
// Errors:
//
//   - ccos-error-decode --
func Decode(what string, cause error) error {
	return serum.Error(CodeDecode,
		serum.WithMessageTemplate("could not decode {{what}}"),
		serum.WithDetail("what", what),
		serum.WithCause(cause),
	)
}

// JobFailed is returned when an async job reaches a terminal failed state.
//
// Errors:
//
//   - ccos-error-job-failed --
func JobFailed(id string, reason string) error {
	if reason == "" {
		reason = "no reason given"
	}
	return serum.Error(CodeJobFailed,
		serum.WithMessageTemplate("job {{id}} failed: {{reason}}"),
		serum.WithDetail("id", id),
		serum.WithDetail("reason", reason),
	)
}

// JobTimeout is returned when polling exceeds its attempt ceiling.
//
// Errors:
//
//   - ccos-error-job-timeout --
func JobTimeout(id string, attempts int) error {
	return serum.Error(CodeJobTimeout,
		serum.WithMessageTemplate("job {{id}} did not finish after {{attempts}} status checks"),
		serum.WithDetail("id", id),
		serum.WithDetail("attempts", strconv.Itoa(attempts)),
	)
}

// ArtifactTooSmall is returned when a downloaded artifact fails the size sanity check.
//
// Errors:
//
//   - ccos-error-artifact-too-small --
func ArtifactTooSmall(path string, size, min int64) error {
	return serum.Error(CodeArtifactTooSmall,
		serum.WithMessageTemplate("artifact {{path}} is {{size}} bytes, expected at least {{min}}"),
		serum.WithDetail("path", path),
		serum.WithDetail("size", strconv.FormatInt(size, 10)),
		serum.WithDetail("min", strconv.FormatInt(min, 10)),
	)
}

// Config reports an invalid or unreadable configuration.
//
// Errors:
//
//   - ccos-error-config --
func Config(message string, cause error) error {
	if cause == nil {
		return serum.Error(CodeConfig, serum.WithMessageLiteral(message))
	}
	return serum.Errorf(CodeConfig, "%s: %w", message, cause)
}

// IO wraps local filesystem failures.
//
// Errors:
//
//   - ccos-error-io --
func IO(message string, path string, cause error) error {
	return serum.Error(CodeIO,
		serum.WithMessageTemplate("{{message}} ({{path}})"),
		serum.WithDetail("message", message),
		serum.WithDetail("path", path),
		serum.WithCause(cause),
	)
}

// Publish wraps failures while shipping an artifact to a publish target.
//
// Errors:
//
//   - ccos-error-publish --
func Publish(target string, cause error) error {
	return serum.Error(CodePublish,
		serum.WithMessageTemplate("publishing to {{target}} failed"),
		serum.WithDetail("target", target),
		serum.WithCause(cause),
	)
}

// Upstream reports a failure the remote service signalled inside an
// otherwise successful response.
//
// Errors:
//
//   - ccos-error-upstream --
func Upstream(platform string, message string) error {
	return serum.Error(CodeUpstream,
		serum.WithMessageTemplate("{{platform}} reported an error: {{message}}"),
		serum.WithDetail("platform", platform),
		serum.WithDetail("message", message),
	)
}

// Code returns the error code of err, or CodeUnknown for uncoded errors.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) && coded.Code() != "" {
		return coded.Code()
	}
	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return Code(err) == code
}

// Detail returns the named detail of a coded error, or "".
func Detail(err error, key string) string {
	for _, d := range serum.Details(err) {
		if d[0] == key {
			return d[1]
		}
	}
	return ""
}

// SetupGuide returns the setup text attached to a missing-credential error.
func SetupGuide(err error) string {
	if !Is(err, CodeMissingCredential) {
		return ""
	}
	return Detail(err, "setup")
}

// StatusCode returns the upstream HTTP status for http-status errors, or 0.
func StatusCode(err error) int {
	if !Is(err, CodeHTTPStatus) {
		return 0
	}
	status, _ := strconv.Atoi(Detail(err, "status"))
	return status
}

// IsRetryable reports whether a failure belongs to a transient class:
// transport errors, 408, 429 and any 5xx.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch Code(err) {
	case CodeTransport:
		return true
	case CodeHTTPStatus:
		status := StatusCode(err)
		return status == http.StatusRequestTimeout ||
			status == http.StatusTooManyRequests ||
			status >= http.StatusInternalServerError
	}
	return false
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// HTTPStatusFor picks the response status the HTTP API uses for err.
func HTTPStatusFor(err error) int {
	switch Code(err) {
	case CodeUsage:
		return http.StatusBadRequest
	case CodeMissingCredential:
		return http.StatusPreconditionFailed
	case CodeHTTPStatus, CodeTransport, CodeDecode, CodeUpstream, CodeJobFailed, CodeJobTimeout, CodeArtifactTooSmall:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
