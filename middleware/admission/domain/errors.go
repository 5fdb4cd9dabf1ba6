package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingToken            = errors.New("authentication token is required")
	ErrInvalidToken            = errors.New("invalid authentication token")
	ErrExpiredToken            = errors.New("authentication token has expired")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrNoSlot                  = errors.New("no concurrency slot available")
)

// Kind classifica uma rejeição. Rota inexistente, falha de autenticação e
// rate limit são sempre tipos distintos.
type Kind string

const (
	KindNotFound                Kind = "NotFound"
	KindMethodNotAllowed        Kind = "MethodNotAllowed"
	KindMissingToken            Kind = "MissingToken"
	KindInvalidToken            Kind = "InvalidToken"
	KindExpiredToken            Kind = "ExpiredToken"
	KindInsufficientPermissions Kind = "InsufficientPermissions"
	KindRateLimited             Kind = "RateLimited"
	KindOverloaded              Kind = "Overloaded"
	// Reservados para o encaminhamento ao upstream.
	KindBadGateway    Kind = "BadGateway"
	KindInternalError Kind = "InternalError"
)

// GatewayError é a rejeição estruturada entregue à camada de transporte.
// Code já é o status HTTP correspondente.
type GatewayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    Kind   `json:"error_type"`

	// Decision é preenchido em rejeições de rate limit.
	Decision *Decision `json:"-"`
	cause    error
}

func (e *GatewayError) Error() string { return string(e.Kind) + ": " + e.Message }

func (e *GatewayError) Unwrap() error { return e.cause }

func NotFound(path string) *GatewayError {
	return &GatewayError{
		Code:    404,
		Message: fmt.Sprintf("No route found for path: %s", path),
		Kind:    KindNotFound,
	}
}

func MethodNotAllowed(method, path string) *GatewayError {
	return &GatewayError{
		Code:    405,
		Message: fmt.Sprintf("Method '%s' not allowed for path: %s", method, path),
		Kind:    KindMethodNotAllowed,
	}
}

// AuthFailure converte um erro do validador de identidade em GatewayError.
// Erros desconhecidos viram InvalidToken.
func AuthFailure(err error) *GatewayError {
	ge := &GatewayError{Code: 401, cause: err}
	switch {
	case errors.Is(err, ErrMissingToken):
		ge.Kind, ge.Message = KindMissingToken, "Authentication token is required"
	case errors.Is(err, ErrExpiredToken):
		ge.Kind, ge.Message = KindExpiredToken, "Authentication token has expired"
	case errors.Is(err, ErrInsufficientPermissions):
		ge.Code = 403
		ge.Kind, ge.Message = KindInsufficientPermissions, "Insufficient permissions"
	default:
		ge.Kind, ge.Message = KindInvalidToken, "Invalid authentication token"
	}
	return ge
}

func RateLimited(dec Decision) *GatewayError {
	return &GatewayError{
		Code:     429,
		Message:  "Rate limit exceeded. Please try again later.",
		Kind:     KindRateLimited,
		Decision: &dec,
	}
}

// Overloaded é a rejeição do limite de concorrência; o status padrão é 503.
func Overloaded(code int, cause error) *GatewayError {
	if code == 0 {
		code = 503
	}
	return &GatewayError{
		Code:    code,
		Message: "Too many requests in flight. Please try again later.",
		Kind:    KindOverloaded,
		cause:   cause,
	}
}

func BadGateway(service string, cause error) *GatewayError {
	return &GatewayError{
		Code:    502,
		Message: fmt.Sprintf("Service '%s' is unavailable", service),
		Kind:    KindBadGateway,
		cause:   cause,
	}
}

func Internal(message string) *GatewayError {
	return &GatewayError{Code: 500, Message: message, Kind: KindInternalError}
}

// OutcomeOf mapeia uma rejeição para o resultado reportado à observabilidade.
func OutcomeOf(err *GatewayError) Outcome {
	if err == nil {
		return OutcomeAllowed
	}
	switch err.Kind {
	case KindNotFound:
		return OutcomeNotFound
	case KindMethodNotAllowed:
		return OutcomeMethodNotAllowed
	case KindMissingToken, KindInvalidToken, KindExpiredToken:
		return OutcomeUnauthenticated
	case KindInsufficientPermissions:
		return OutcomeForbidden
	default:
		return OutcomeDenied
	}
}
