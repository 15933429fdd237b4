package app

import "fmt"

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(400, "VALIDATION_ERROR", message, nil)
}

func notFoundError(message string) *DomainError {
	return domainError(404, "NOT_FOUND", message, nil)
}

func conflictError(message string) *DomainError {
	return domainError(409, "CONFLICT", message, nil)
}

func forbiddenError(message string) *DomainError {
	return domainError(403, "FORBIDDEN", message, nil)
}

func unauthorizedError(message string) *DomainError {
	return domainError(401, "UNAUTHORIZED", message, nil)
}
