package app

import (
	"net/http"
	"strconv"

	"trailcms/api/internal/cmserr"
	"trailcms/api/internal/rbac"
)

func (s *HTTPServer) handlePullRequests(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	pulls := s.service.Pulls()
	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.authorize(w, r, session, rbac.ActionRead) {
				return
			}
			items, err := pulls.List(r.Context())
			if err != nil {
				fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, items)
		case http.MethodPost:
			if !s.authorize(w, r, session, rbac.ActionWrite) {
				return
			}
			var body struct {
				BaseBranch string `json:"baseBranch"`
				HeadBranch string `json:"headBranch"`
				Title      string `json:"title"`
				Body       string `json:"body"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			pr, err := s.service.CreatePullRequest(r.Context(), body.BaseBranch, body.HeadBranch, body.Title, body.Body)
			if err != nil {
				fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, pr)
		default:
			methodNotAllowed(w)
		}
		return
	}

	number, err := strconv.Atoi(parts[0])
	if err != nil || number <= 0 {
		fail(w, r, cmserr.Validation("invalid pull request number %q", parts[0]))
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		if !s.authorize(w, r, session, rbac.ActionRead) {
			return
		}
		pr, err := pulls.Get(r.Context(), number)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pr)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if !s.authorize(w, r, session, rbac.ActionMerge) {
			return
		}
		message, err := pulls.Delete(r.Context(), number)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": message})

	case len(parts) == 2 && parts[1] == "merge" && r.Method == http.MethodPut:
		if !s.authorize(w, r, session, rbac.ActionMerge) {
			return
		}
		result, err := pulls.Merge(r.Context(), number)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case len(parts) == 1 || (len(parts) == 2 && parts[1] == "merge"):
		methodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
