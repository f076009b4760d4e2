// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	// Provider failure taxonomy. Every failure a provider surfaces to the
	// manager is one of these four codes.
	CodeProviderQuotaExceeded Code = "provider.quota.exceeded"
	CodeProviderRateLimited   Code = "provider.rate.limited"
	CodeProviderUnavailable   Code = "provider.unavailable"
	CodeProviderFailure       Code = "provider.failure"

	CodeProviderRequestInvalid   Code = "provider.request.invalid"
	CodeProviderKeyInvalid       Code = "provider.key.invalid"
	CodeProviderKeyCheckFailed   Code = "provider.key.check_failed"
	CodeProviderNotFound         Code = "provider.registry.not_found"
	CodeProviderEmbedUnsupported Code = "provider.embeddings.unsupported"

	// Manager-level terminal errors.
	CodeManagerExhausted      Code = "manager.providers.exhausted"
	CodeManagerRequestInvalid Code = "manager.request.invalid"

	CodeConfigLoadFailure          Code = "config.load.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"

	CodeCLIInputInvalid Code = "cli.input.invalid"
	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLICheckFailure Code = "cli.check.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

func FieldRequestID(value string) Attr {
	return Field("request_id", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// IsProviderFailure reports whether err is any of the four provider failure
// kinds that trigger fallback to the next provider.
func IsProviderFailure(err error) bool {
	switch CodeOf(err) {
	case CodeProviderQuotaExceeded, CodeProviderRateLimited,
		CodeProviderUnavailable, CodeProviderFailure:
		return true
	}
	return false
}

func IsQuotaExceeded(err error) bool {
	return HasCode(err, CodeProviderQuotaExceeded)
}

func IsRateLimited(err error) bool {
	return HasCode(err, CodeProviderRateLimited)
}

func IsUnavailable(err error) bool {
	return HasCode(err, CodeProviderUnavailable)
}

func IsExhausted(err error) bool {
	return HasCode(err, CodeManagerExhausted)
}

func IsInvalidRequest(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_value"
}

func HTTPStatus(err error) int {
	switch {
	case IsInvalidRequest(err):
		return http.StatusBadRequest
	case IsQuotaExceeded(err) || IsRateLimited(err):
		return http.StatusTooManyRequests
	case IsExhausted(err) || IsUnavailable(err):
		return http.StatusBadGateway
	case HasCode(err, CodeProviderNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
