package permission

import (
	"fmt"
	"net/http"
	"strings"
)

// Operation is the unit of access granted on a path pattern.
type Operation string

const (
	Read   Operation = "READ"
	Change Operation = "CHANGE"
	Delete Operation = "DELETE"
)

// ParseOperation parses an operation name, case-insensitively.
func ParseOperation(s string) (Operation, error) {
	switch Operation(strings.ToUpper(strings.TrimSpace(s))) {
	case Read:
		return Read, nil
	case Change:
		return Change, nil
	case Delete:
		return Delete, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
	}
}

// OperationForMethod maps an HTTP verb to the operation it requires.
// Verbs without a mapping return false and are never granted.
func OperationForMethod(method string) (Operation, bool) {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		return Read, true
	case http.MethodPost, http.MethodPut:
		return Change, true
	case http.MethodDelete:
		return Delete, true
	default:
		return "", false
	}
}

// UnmarshalText lets operations be decoded from JSON and YAML strings.
func (o *Operation) UnmarshalText(text []byte) error {
	op, err := ParseOperation(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}
