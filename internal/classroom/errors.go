package classroom

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var (
	// ErrAuthExpired means Google rejected the credential; the user has to sign in again.
	ErrAuthExpired = errors.New("google credential expired or revoked")
	// ErrTransient covers network failures, throttling and 5xx responses.
	ErrTransient = errors.New("google upstream unavailable")
	// ErrMalformed means Google answered 2xx with something unusable.
	ErrMalformed = errors.New("malformed google response")
)

// classifyTokenError maps an oauth2 failure onto the package errors.
func classifyTokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		switch code := re.Response.StatusCode; {
		case code == http.StatusUnauthorized, code == http.StatusBadRequest && (re.ErrorCode == "" || re.ErrorCode == "invalid_grant"):
			return fmt.Errorf("%s: %w: %s", op, ErrAuthExpired, describe(re))
		case code >= 200 && code < 300:
			return fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
		}
	}
	if strings.Contains(err.Error(), "missing access_token") {
		return fmt.Errorf("%s: %w: %v", op, ErrMalformed, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
}

// classifyAPIError maps a Classroom API failure onto the package errors.
func classifyAPIError(op string, err error) error {
	var ge *googleapi.Error
	if errors.As(err, &ge) && ge.Code == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w: %v", op, ErrAuthExpired, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
}

func describe(re *oauth2.RetrieveError) string {
	if re.ErrorDescription != "" {
		return re.ErrorCode + ": " + re.ErrorDescription
	}
	if re.ErrorCode != "" {
		return re.ErrorCode
	}
	return re.Response.Status
}
