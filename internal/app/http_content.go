package app

import (
	"net/http"

	"trailcms/api/internal/content"
	"trailcms/api/internal/rbac"
)

// handleRoutes serves /api/routes and everything nested below a route.
func (s *HTTPServer) handleRoutes(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	routes := s.service.Content().Routes
	if len(parts) == 0 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		if !s.authorize(w, r, session, rbac.ActionRead) {
			return
		}
		items, err := routes.List(r.Context())
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
		return
	}

	routeID := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			if !s.authorize(w, r, session, rbac.ActionRead) {
				return
			}
			route, err := routes.Get(r.Context(), routeID)
			if err != nil {
				fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, route)
		case http.MethodPut:
			if !s.authorize(w, r, session, rbac.ActionWrite) {
				return
			}
			var patch content.RoutePatch
			if err := decodeBody(r, &patch); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			route, proposal, err := routes.Update(r.Context(), routeID, patch)
			if err != nil {
				fail(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"message":     "Route update proposed",
				"route":       route,
				"pullRequest": proposal,
			})
		default:
			methodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "pois":
		s.handlePOIs(w, r, session, routeID, parts[2:])
	case "images":
		s.handleImages(w, r, session, routeID, parts[2:])
	case "ar-media":
		s.handleARMedia(w, r, session, routeID, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handlePOIs(w http.ResponseWriter, r *http.Request, session Session, routeID string, parts []string) {
	pois := s.service.Content().POIs
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		if !s.authorize(w, r, session, rbac.ActionRead) {
			return
		}
		items, err := pois.List(r.Context(), routeID)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)

	case len(parts) == 0 && r.Method == http.MethodPost:
		if !s.authorize(w, r, session, rbac.ActionWrite) {
			return
		}
		var input content.POI
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		poi, proposal, err := pois.Create(r.Context(), routeID, input)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message":     "POI creation proposed",
			"poi":         poi,
			"pullRequest": proposal,
		})

	case len(parts) == 1 && r.Method == http.MethodGet:
		if !s.authorize(w, r, session, rbac.ActionRead) {
			return
		}
		poi, err := pois.Get(r.Context(), routeID, parts[0])
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, poi)

	case len(parts) == 1 && r.Method == http.MethodPut:
		if !s.authorize(w, r, session, rbac.ActionWrite) {
			return
		}
		var fields map[string]any
		if err := decodeBody(r, &fields); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		poi, proposal, err := pois.Update(r.Context(), routeID, parts[0], fields)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "POI update proposed",
			"poi":         poi,
			"pullRequest": proposal,
		})

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if !s.authorize(w, r, session, rbac.ActionWrite) {
			return
		}
		proposal, err := pois.Delete(r.Context(), routeID, parts[0])
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "POI deletion proposed",
			"pullRequest": proposal,
		})

	case len(parts) <= 1:
		methodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleImages(w http.ResponseWriter, r *http.Request, session Session, routeID string, parts []string) {
	images := s.service.Content().Images
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		if !s.authorize(w, r, session, rbac.ActionRead) {
			return
		}
		items, err := images.List(r.Context(), routeID)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)

	case len(parts) == 0 && r.Method == http.MethodPost:
		if !s.authorize(w, r, session, rbac.ActionWrite) {
			return
		}
		filename, data, err := readUpload(w, r)
		if err != nil {
			fail(w, r, err)
			return
		}
		image, proposal, err := images.Create(r.Context(), routeID, filename, data, formBool(r, "isSmallImage"))
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message":     "Image upload proposed",
			"image":       image,
			"pullRequest": proposal,
		})

	case len(parts) == 1 && r.Method == http.MethodGet:
		if !s.authorize(w, r, session, rbac.ActionRead) {
			return
		}
		image, err := images.Get(r.Context(), routeID, parts[0])
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, image)

	case len(parts) == 1 && r.Method == http.MethodPut:
		if !s.authorize(w, r, session, rbac.ActionWrite) {
			return
		}
		_, data, err := readUpload(w, r)
		if err != nil {
			fail(w, r, err)
			return
		}
		image, proposal, err := images.Update(r.Context(), routeID, parts[0], data)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "Image update proposed",
			"image":       image,
			"pullRequest": proposal,
		})

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if !s.authorize(w, r, session, rbac.ActionWrite) {
			return
		}
		proposal, err := images.Delete(r.Context(), routeID, parts[0])
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "Image deletion proposed",
			"pullRequest": proposal,
		})

	case len(parts) <= 1:
		methodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleARMedia(w http.ResponseWriter, r *http.Request, session Session, routeID string, parts []string) {
	media := s.service.Content().ARMedia
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		if !s.authorize(w, r, session, rbac.ActionRead) {
			return
		}
		items, err := media.List(r.Context(), routeID)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)

	case len(parts) == 0 && r.Method == http.MethodPost:
		if !s.authorize(w, r, session, rbac.ActionWrite) {
			return
		}
		filename, data, err := readUpload(w, r)
		if err != nil {
			fail(w, r, err)
			return
		}
		item, proposal, err := media.Create(r.Context(), routeID, filename, data)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message":     "AR media upload proposed",
			"arMedia":     item,
			"pullRequest": proposal,
		})

	case len(parts) == 1 && r.Method == http.MethodGet:
		if !s.authorize(w, r, session, rbac.ActionRead) {
			return
		}
		item, err := media.Get(r.Context(), routeID, parts[0])
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case len(parts) == 1 && r.Method == http.MethodPut:
		if !s.authorize(w, r, session, rbac.ActionWrite) {
			return
		}
		_, data, err := readUpload(w, r)
		if err != nil {
			fail(w, r, err)
			return
		}
		item, proposal, err := media.Update(r.Context(), routeID, parts[0], data)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "AR media update proposed",
			"arMedia":     item,
			"pullRequest": proposal,
		})

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if !s.authorize(w, r, session, rbac.ActionWrite) {
			return
		}
		proposal, err := media.Delete(r.Context(), routeID, parts[0])
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "AR media deletion proposed",
			"pullRequest": proposal,
		})

	case len(parts) <= 1:
		methodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
