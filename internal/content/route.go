package content

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"trailcms/api/internal/cmserr"
	"trailcms/api/internal/gitrepo"
	"trailcms/api/internal/pullrequest"
)

const routeIndexFile = "index.md"

type Route struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Layout string `json:"layout"`
	Image  string `json:"image"`
	Type   string `json:"type"`
}

// RoutePatch carries the route fields a caller wants to change. Empty fields
// keep their stored value.
type RoutePatch struct {
	Title  string `json:"title"`
	Layout string `json:"layout"`
	Image  string `json:"image"`
	Type   string `json:"type"`
}

func (p RoutePatch) fields() map[string]any {
	fields := map[string]any{}
	for key, value := range map[string]string{
		"title":  p.Title,
		"layout": p.Layout,
		"image":  p.Image,
		"type":   p.Type,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}

type RouteService struct {
	*base
}

// List returns the configured routes that exist under the content root.
func (s *RouteService) List(ctx context.Context) ([]Route, error) {
	entries, err := s.repo.ListDir(ctx, s.root)
	if err != nil {
		if errors.Is(err, gitrepo.ErrNotFound) {
			return nil, cmserr.Wrap(cmserr.KindNotFound, err, "content root %q not found", s.root)
		}
		return nil, err
	}

	allowed := make(map[string]bool, len(s.routes))
	for _, id := range s.routes {
		allowed[id] = true
	}

	routes := make([]Route, 0, len(s.routes))
	for _, entry := range entries {
		if entry.Type != gitrepo.EntryDir || !allowed[entry.Name] {
			continue
		}
		doc, _, err := s.readIndex(ctx, entry.Name)
		if err != nil {
			return nil, err
		}
		route := routeFrom(entry.Name, doc.Frontmatter)
		if route.Title == "" {
			route.Title = entry.Name
		}
		routes = append(routes, route)
	}
	return routes, nil
}

func (s *RouteService) Get(ctx context.Context, id string) (Route, error) {
	if err := validSegment("route", id); err != nil {
		return Route{}, err
	}
	doc, _, err := s.readIndex(ctx, id)
	if err != nil {
		return Route{}, err
	}
	route := routeFrom(id, doc.Frontmatter)
	if route.Title == "" {
		return Route{}, cmserr.NotFound("route %q not found", id)
	}
	return route, nil
}

// Update merges patch over the stored frontmatter and proposes the result.
// Frontmatter keys the patch does not know about are preserved.
func (s *RouteService) Update(ctx context.Context, id string, patch RoutePatch) (Route, Proposal, error) {
	if err := validSegment("route", id); err != nil {
		return Route{}, Proposal{}, err
	}
	doc, file, err := s.readIndex(ctx, id)
	if err != nil {
		return Route{}, Proposal{}, err
	}

	proposed := patch.fields()
	if !gitrepo.HasChanges(doc.Frontmatter, proposed) {
		return Route{}, Proposal{}, cmserr.Conflict("no changes detected for route %q", id)
	}

	merged := make(map[string]any, len(doc.Frontmatter)+len(proposed))
	for key, value := range doc.Frontmatter {
		merged[key] = value
	}
	for key, value := range proposed {
		merged[key] = value
	}
	route := routeFrom(id, merged)
	if err := validateRoute(route); err != nil {
		return Route{}, Proposal{}, err
	}

	rendered, err := gitrepo.RenderMarkdown(merged, doc.Body)
	if err != nil {
		return Route{}, Proposal{}, fmt.Errorf("render route %s: %w", id, err)
	}
	proposal, err := s.propose(ctx, change{
		hint:     s.branchHint("update", "route", id),
		path:     file.Path,
		content:  rendered,
		priorSHA: file.SHA,
		message:  s.message("Update route metadata for %s", id),
		proposal: pullrequest.Proposal{Action: "Update", EntityType: "Route", EntityID: id, EntityTitle: route.Title},
	})
	if err != nil {
		return Route{}, Proposal{}, err
	}
	return route, proposal, nil
}

func (s *RouteService) readIndex(ctx context.Context, id string) (gitrepo.Markdown, gitrepo.File, error) {
	file, err := s.repo.ReadFile(ctx, path.Join(s.routeDir(id), routeIndexFile))
	if err != nil {
		if errors.Is(err, gitrepo.ErrNotFound) {
			return gitrepo.Markdown{}, gitrepo.File{}, cmserr.Wrap(cmserr.KindNotFound, err, "route %q not found", id)
		}
		return gitrepo.Markdown{}, gitrepo.File{}, err
	}
	doc, err := gitrepo.ParseMarkdown(file.Content)
	if err != nil {
		return gitrepo.Markdown{}, gitrepo.File{}, fmt.Errorf("parse route %s: %w", id, err)
	}
	return doc, file, nil
}

func routeFrom(id string, frontmatter map[string]any) Route {
	return Route{
		ID:     id,
		Title:  stringField(frontmatter, "title"),
		Layout: stringField(frontmatter, "layout"),
		Image:  stringField(frontmatter, "image"),
		Type:   stringField(frontmatter, "type"),
	}
}

func validateRoute(r Route) error {
	problems := make([]string, 0)
	for _, field := range []struct{ name, value string }{
		{"title", r.Title},
		{"layout", r.Layout},
		{"image", r.Image},
		{"type", r.Type},
	} {
		if strings.TrimSpace(field.value) == "" {
			problems = append(problems, field.name+" is required")
		}
	}
	if len(problems) > 0 {
		return cmserr.Validation("invalid route data: %s", strings.Join(problems, ", "))
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	switch value := m[key].(type) {
	case string:
		return value
	case nil:
		return ""
	default:
		return fmt.Sprint(value)
	}
}
