package apperrors

import "errors"

var (
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrAllProvidersFailed    = errors.New("all providers failed")
	ErrInvalidAnalysis       = errors.New("invalid analysis output")
	ErrUnknownEngine         = errors.New("unknown engine")
	ErrEmailNotConfigured    = errors.New("email provider not configured")
	ErrDispatchStatus        = errors.New("dispatch target returned non-2xx status")
)
