package gmail

import (
	"errors"
	"fmt"
	"net/http"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// classifyError wraps err with the sentinel matching its remote cause, so
// callers can decide between skip, retry later and fail with errors.Is.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized,
			apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code >= http.StatusInternalServerError,
			apiErr.Code == http.StatusForbidden && rateLimited(apiErr):
			return fmt.Errorf("%s: %w: %v", op, emaildomain.ErrTransientRemote, err)
		case apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%s: %w: %v", op, emaildomain.ErrPermission, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%s: token refresh: %w: %v", op, emaildomain.ErrTransientRemote, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// Gmail reports quota exhaustion as 403 with one of these reasons.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"dailyLimitExceeded":    true,
	"quotaExceeded":         true,
}

func rateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}
