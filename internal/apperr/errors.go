// Package apperr: таксономия ошибок приложения и их отображение в HTTP.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindDependencyUnavailable Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindDuplicateUser
	KindInvalidOperation
	KindConversion
)

// Причины 401, различимые вызывающей стороной через errors.Is.
var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserGone           = errors.New("user not found")
)

// Error: ошибка уровня домена. Message безопасно показывать клиенту,
// Detail добавляется в ответ только для ошибок конвертации.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is позволяет сравнивать по виду: errors.Is(err, apperr.NotFound("")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func Unauthorized(msg string, cause error) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg, Err: cause}
}

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }
func DuplicateUser(msg string) *Error { return &Error{Kind: KindDuplicateUser, Message: msg} }
func InvalidOperation(msg string) *Error { return &Error{Kind: KindInvalidOperation, Message: msg} }

func Conversion(msg, detail string, cause error) *Error {
	return &Error{Kind: KindConversion, Message: msg, Detail: detail, Err: cause}
}

func Dependency(msg string, cause error) *Error {
	return &Error{Kind: KindDependencyUnavailable, Message: msg, Err: cause}
}

// KindOf возвращает вид ошибки; всё неизвестное считается недоступностью зависимости.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDependencyUnavailable
}

// Status: HTTP-код для вида ошибки.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindDuplicateUser, KindInvalidOperation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Code: машиночитаемая причина в теле ответа.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindDuplicateUser:
		return "duplicate_user"
	case KindInvalidOperation:
		return "invalid_operation"
	case KindConversion:
		return "conversion_error"
	default:
		return "dependency_unavailable"
	}
}
