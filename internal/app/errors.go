package app

import (
	"errors"
	"log"
	"net/http"

	"trailcms/api/internal/auth"
	"trailcms/api/internal/cmserr"
)

// mapError translates an error into the response status, code and message.
// Only classified errors expose their message to the client.
func mapError(err error) (status int, code, message string) {
	kind := cmserr.KindOf(err)
	switch kind {
	case cmserr.KindValidation:
		return http.StatusBadRequest, kind.String(), cmserr.MessageOf(err)
	case cmserr.KindNotFound:
		return http.StatusNotFound, kind.String(), cmserr.MessageOf(err)
	case cmserr.KindForbidden:
		return http.StatusForbidden, kind.String(), cmserr.MessageOf(err)
	case cmserr.KindConflict:
		return http.StatusConflict, kind.String(), cmserr.MessageOf(err)
	case cmserr.KindUnauthorized:
		return http.StatusUnauthorized, kind.String(), cmserr.MessageOf(err)
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, cmserr.KindUnauthorized.String(), "Unauthorized"
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error"
}

// fail writes err as a JSON error envelope. Unclassified errors are logged
// with the request id since their details never reach the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapError(err)
	if status == http.StatusInternalServerError {
		requestID, _ := r.Context().Value(requestIDKey{}).(string)
		log.Printf("app: %s %s failed (request %s): %v", r.Method, r.URL.Path, requestID, err)
	}
	writeError(w, status, code, message, nil)
}
