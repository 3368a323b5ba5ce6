package gitapi

import (
	"errors"
	"fmt"
	"net/http"
)

// RemoteError is any non-2xx response from the object store. It carries
// enough context to render a diagnostic without re-deriving it.
type RemoteError struct {
	Status int
	Op     string
	Owner  string
	Repo   string
	Branch string
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("gitapi: %s %s/%s@%s: status %d: %s", e.Op, e.Owner, e.Repo, e.Branch, e.Status, e.Body)
}

// IsValidation reports a structurally invalid request. Repeating it cannot
// succeed, so it is never retried.
func (e *RemoteError) IsValidation() bool {
	return e.Status == http.StatusUnprocessableEntity
}

// IsAuth reports a credential or permission problem.
func (e *RemoteError) IsAuth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsNotFound reports a missing object or ref. An empty repository answers
// 409 to object reads, which callers treat the same way.
func (e *RemoteError) IsNotFound() bool {
	return e.Status == http.StatusNotFound || e.Status == http.StatusConflict
}

// IsTransient reports a failure worth retrying.
func (e *RemoteError) IsTransient() bool {
	return e.Status >= 500
}

func IsValidation(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.IsValidation()
}

func IsAuth(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.IsAuth()
}

func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.IsNotFound()
}
