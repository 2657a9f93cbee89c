package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrLookupFailed wraps backend failures. It is distinct from "no role".
	ErrLookupFailed = errors.New("role lookup failed")

	// ErrUnknownPermission is returned for permission strings outside the known set
	ErrUnknownPermission = errors.New("unknown permission")
)

// PermissionDeniedError is returned by RequirePermission
type PermissionDeniedError struct {
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Permission)
}

// IsPermissionDenied reports whether err is a PermissionDeniedError
func IsPermissionDenied(err error) bool {
	var denied *PermissionDeniedError
	return errors.As(err, &denied)
}
