package session

import (
	"context"
	"net"
	"strings"
	"syscall"

	"github.com/bosagora/votera/backend"
	"github.com/bosagora/votera/contract"
	"github.com/bosagora/votera/core"
	"github.com/pkg/errors"
)

// authErrorIDs maps the backend's auth error ids onto message ids.
var authErrorIDs = map[string]core.MessageID{
	"Auth.form.error.invalid":           core.AuthInvalid,
	"Auth.form.error.blocked":           core.AuthBlocked,
	"Auth.form.error.confirmed":         core.AuthUnauthorized,
	"Auth.form.error.username.taken":    core.AuthInvalid,
	"Auth.form.error.email.provide":     core.AuthMissingInput,
	"Auth.form.error.password.provide":  core.AuthMissingInput,
	"Auth.form.error.username.provide":  core.AuthMissingInput,
	"Auth.form.error.signature.provide": core.AuthMissingInput,
}

// ErrorAuthResult classifies a failed authentication call. Every error, nil included, maps to
// exactly one of core.AuthMessageIDs.
func ErrorAuthResult(err error) core.MessageID {
	if err == nil {
		return core.SystemOther
	}
	if contract.IsUserRejected(err) {
		return core.AuthCancelInput
	}

	var gqlErrs backend.Errors
	if errors.As(err, &gqlErrs) {
		for i := range gqlErrs {
			if id, ok := graphQLResult(&gqlErrs[i]); ok {
				return id
			}
		}
	}

	var netErr *backend.NetworkError
	if errors.As(err, &netErr) {
		if id, ok := statusResult(netErr.StatusCode); ok {
			return id
		}
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return core.SystemConnect
	case errors.Is(err, syscall.ETIMEDOUT), errors.Is(err, context.DeadlineExceeded):
		return core.SystemTimedout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return core.SystemTimedout
	}
	return core.SystemOther
}

func graphQLResult(e *backend.Error) (core.MessageID, bool) {
	if id, ok := authErrorIDs[e.MessageID()]; ok {
		return id, true
	}
	if id, ok := statusResult(e.StatusCode()); ok {
		return id, true
	}
	reason := strings.ToUpper(e.Reason())
	switch {
	case strings.Contains(reason, "ECONNREFUSED"), strings.Contains(reason, "ECONNRESET"):
		return core.SystemConnect, true
	case strings.Contains(reason, "ETIMEDOUT"):
		return core.SystemTimedout, true
	}
	return core.MessageNone, false
}

func statusResult(code int) (core.MessageID, bool) {
	switch code {
	case 401:
		return core.AuthUnauthorized, true
	case 403:
		return core.AuthForbidden, true
	}
	return core.MessageNone, false
}
