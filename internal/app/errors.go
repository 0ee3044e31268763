package app

import "fmt"

// DomainError is a service-level error that already knows its HTTP shape.
// mapError passes it through untouched; everything else gets classified there.
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
	return &DomainError{Status: status, Code: code, Message: message, Details: details}
}
