package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated    = errors.New("no authentication token found")
	ErrUnreachable        = errors.New("account service unreachable")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrCredentialAbsent   = errors.New("credential not found")
	ErrNoConnection       = errors.New("square account is not connected")
	ErrNoBusiness         = errors.New("identity has no business")
	ErrDisconnectDeclined = errors.New("disconnect not confirmed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrProjectionNotFound = errors.New("no cached projection")
)

// RemoteRejectedError is returned when the account service answers with a
// non-success status.
type RemoteRejectedError struct {
	Status  int
	Message string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// IsAuthRejection reports whether err is a remote rejection of the credential itself.
func IsAuthRejection(err error) bool {
	var rejected *RemoteRejectedError
	if !errors.As(err, &rejected) {
		return false
	}
	return rejected.Status == http.StatusUnauthorized || rejected.Status == http.StatusForbidden
}

// Message extracts the user-facing text of an error.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var rejected *RemoteRejectedError
	if errors.As(err, &rejected) {
		return rejected.Message
	}
	return err.Error()
}
