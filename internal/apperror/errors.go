package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrUpstream         = errors.New("upstream api error")
	ErrDataFormat       = errors.New("unexpected data format")
)

// ServiceError is the base of every typed error returned by the gateway services.
type ServiceError struct {
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

type APIError struct {
	ServiceError
	Status   int
	Endpoint string
}

func NewAPIError(status int, endpoint, message string) *APIError {
	return &APIError{
		ServiceError: ServiceError{Message: message},
		Status:       status,
		Endpoint:     endpoint,
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %s returned %d: %s", e.Endpoint, e.Status, e.ServiceError.Error())
}

func (e *APIError) Is(target error) bool {
	return target == ErrUpstream
}

type AuthenticationError struct {
	ServiceError
}

func NewAuthenticationError(message string) *AuthenticationError {
	return &AuthenticationError{ServiceError{Message: message}}
}

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrUnauthenticated
}

type ValidationError struct {
	ServiceError
	Field string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{ServiceError: ServiceError{Message: message}, Field: field}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.ServiceError.Error()
	}
	return fmt.Sprintf("%s: %s", e.Field, e.ServiceError.Error())
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

type NotFoundError struct {
	ServiceError
	ResourceType string
	Identifier   string
}

func NewNotFoundError(resourceType, identifier string) *NotFoundError {
	return &NotFoundError{
		ServiceError: ServiceError{Message: fmt.Sprintf("%s %q not found", resourceType, identifier)},
		ResourceType: resourceType,
		Identifier:   identifier,
	}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type DataFormatError struct {
	ServiceError
}

func NewDataFormatError(message string, cause error) *DataFormatError {
	return &DataFormatError{ServiceError{Message: message, Cause: cause}}
}

func (e *DataFormatError) Is(target error) bool {
	return target == ErrDataFormat
}

type UnauthorizedActionError struct {
	ServiceError
	Action string
}

func NewUnauthorizedActionError(action, message string) *UnauthorizedActionError {
	return &UnauthorizedActionError{ServiceError: ServiceError{Message: message}, Action: action}
}

func (e *UnauthorizedActionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

type ListingNotFoundError struct {
	NotFoundError
}

func NewListingNotFoundError(id string) *ListingNotFoundError {
	return &ListingNotFoundError{*NewNotFoundError("listing", id)}
}

type OfferNotFoundError struct {
	NotFoundError
}

func NewOfferNotFoundError(id string) *OfferNotFoundError {
	return &OfferNotFoundError{*NewNotFoundError("offer", id)}
}

// IsNotFoundStatus reports whether err is an upstream 404.
func IsNotFoundStatus(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}
