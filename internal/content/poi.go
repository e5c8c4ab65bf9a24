package content

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"trailcms/api/internal/cmserr"
	"trailcms/api/internal/gitrepo"
	"trailcms/api/internal/pullrequest"
)

type POIService struct {
	*base
}

// List reads every POI file of a route. index.md holds the route itself.
func (s *POIService) List(ctx context.Context, routeID string) ([]POI, error) {
	if err := validSegment("route", routeID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListDir(ctx, s.routeDir(routeID))
	if err != nil {
		if errors.Is(err, gitrepo.ErrNotFound) {
			return nil, cmserr.Wrap(cmserr.KindNotFound, err, "route %q not found", routeID)
		}
		return nil, err
	}

	files := make([]gitrepo.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Type == gitrepo.EntryFile && strings.HasSuffix(entry.Name, ".md") && entry.Name != routeIndexFile {
			files = append(files, entry)
		}
	}

	pois := make([]POI, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for i, entry := range files {
		group.Go(func() error {
			poi, _, err := s.read(groupCtx, routeID, strings.TrimSuffix(entry.Name, ".md"))
			if err != nil {
				return err
			}
			pois[i] = poi
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return pois, nil
}

func (s *POIService) Get(ctx context.Context, routeID, poiID string) (POI, error) {
	if err := s.validateIDs(routeID, poiID); err != nil {
		return POI{}, err
	}
	poi, _, err := s.read(ctx, routeID, poiID)
	return poi, err
}

// Create applies defaults, validates and proposes a new POI. The id is the
// slug of the title.
func (s *POIService) Create(ctx context.Context, routeID string, input POI) (POI, Proposal, error) {
	if err := validSegment("route", routeID); err != nil {
		return POI{}, Proposal{}, err
	}
	poi := ApplyPOIDefaults(input)
	if err := ValidatePOI(poi); err != nil {
		return POI{}, Proposal{}, err
	}
	poi.ID = Slug(poi.Title)
	if poi.ID == "" {
		return POI{}, Proposal{}, cmserr.Validation("title %q does not yield a usable id", poi.Title)
	}

	rendered, err := gitrepo.RenderMarkdown(poi, poi.Content)
	if err != nil {
		return POI{}, Proposal{}, fmt.Errorf("render POI %s: %w", poi.ID, err)
	}
	proposal, err := s.propose(ctx, change{
		hint:     s.branchHint("create", "poi", poi.ID),
		path:     s.poiPath(routeID, poi.ID),
		content:  rendered,
		message:  s.message("Create new POI %s", poi.ID),
		proposal: pullrequest.Proposal{Action: "Create", EntityType: "POI", EntityID: poi.ID, EntityTitle: poi.Title},
	})
	if err != nil {
		return POI{}, Proposal{}, err
	}
	return poi, proposal, nil
}

// Update merges fields over the stored POI. The "content" key replaces the
// markdown body; every other key is frontmatter. Frontmatter and body are
// compared separately and the update is refused only when neither changed.
func (s *POIService) Update(ctx context.Context, routeID, poiID string, fields map[string]any) (POI, Proposal, error) {
	if err := s.validateIDs(routeID, poiID); err != nil {
		return POI{}, Proposal{}, err
	}
	_, file, err := s.read(ctx, routeID, poiID)
	if err != nil {
		return POI{}, Proposal{}, err
	}
	doc, err := gitrepo.ParseMarkdown(file.Content)
	if err != nil {
		return POI{}, Proposal{}, fmt.Errorf("parse POI %s: %w", poiID, err)
	}

	proposed := make(map[string]any, len(fields))
	for key, value := range fields {
		if key == "id" || key == "content" {
			continue
		}
		proposed[key] = value
	}
	body := doc.Body
	if content, ok := fields["content"].(string); ok && content != "" {
		body = content
	}

	merged := make(map[string]any, len(doc.Frontmatter)+len(proposed)+1)
	for key, value := range doc.Frontmatter {
		merged[key] = value
	}
	for key, value := range proposed {
		merged[key] = value
	}
	merged["id"] = poiID
	delete(merged, "content")

	poi, err := decodePOI(merged)
	if err != nil {
		return POI{}, Proposal{}, err
	}
	frontmatterChanged, err := s.frontmatterChanged(doc.Frontmatter, poi)
	if err != nil {
		return POI{}, Proposal{}, err
	}
	if !frontmatterChanged && body == doc.Body {
		return POI{}, Proposal{}, cmserr.Conflict("no changes detected for POI %q", poiID)
	}
	if err := ValidatePOI(poi); err != nil {
		return POI{}, Proposal{}, err
	}
	poi.Content = body

	rendered, err := gitrepo.RenderMarkdown(poi, body)
	if err != nil {
		return POI{}, Proposal{}, fmt.Errorf("render POI %s: %w", poiID, err)
	}
	proposal, err := s.propose(ctx, change{
		hint:     s.branchHint("update", "poi", poiID),
		path:     file.Path,
		content:  rendered,
		priorSHA: file.SHA,
		message:  s.message("Update POI %s", poiID),
		proposal: pullrequest.Proposal{Action: "Update", EntityType: "POI", EntityID: poiID, EntityTitle: poi.Title},
	})
	if err != nil {
		return POI{}, Proposal{}, err
	}
	return poi, proposal, nil
}

// frontmatterChanged compares the stored frontmatter with candidate in the form
// both would be written, so keys the POI model fills in (an absent nft list,
// a missing gmaps) do not count as edits.
func (s *POIService) frontmatterChanged(stored map[string]any, candidate POI) (bool, error) {
	current, err := decodePOI(stored)
	if err != nil {
		return true, nil
	}
	current.ID = candidate.ID
	before, err := poiFields(current)
	if err != nil {
		return false, err
	}
	after, err := poiFields(candidate)
	if err != nil {
		return false, err
	}
	return gitrepo.HasChanges(before, after), nil
}

func (s *POIService) Delete(ctx context.Context, routeID, poiID string) (Proposal, error) {
	if err := s.validateIDs(routeID, poiID); err != nil {
		return Proposal{}, err
	}
	_, file, err := s.read(ctx, routeID, poiID)
	if err != nil {
		return Proposal{}, err
	}
	return s.propose(ctx, change{
		hint:     s.branchHint("delete", "poi", poiID),
		path:     file.Path,
		priorSHA: file.SHA,
		remove:   true,
		message:  s.message("Delete POI %s", poiID),
		proposal: pullrequest.Proposal{Action: "Delete", EntityType: "POI", EntityID: poiID, EntityTitle: poiID},
	})
}

func (s *POIService) read(ctx context.Context, routeID, poiID string) (POI, gitrepo.File, error) {
	file, err := s.repo.ReadFile(ctx, s.poiPath(routeID, poiID))
	if err != nil {
		if errors.Is(err, gitrepo.ErrNotFound) {
			return POI{}, gitrepo.File{}, cmserr.Wrap(cmserr.KindNotFound, err, "POI %q not found in route %q", poiID, routeID)
		}
		return POI{}, gitrepo.File{}, err
	}
	doc, err := gitrepo.ParseMarkdown(file.Content)
	if err != nil {
		return POI{}, gitrepo.File{}, fmt.Errorf("parse POI %s: %w", poiID, err)
	}
	poi, err := decodePOI(doc.Frontmatter)
	if err != nil {
		return POI{}, gitrepo.File{}, fmt.Errorf("decode POI %s: %w", poiID, err)
	}
	poi.ID = poiID
	poi.Content = doc.Body
	return poi, file, nil
}

func (s *POIService) poiPath(routeID, poiID string) string {
	return path.Join(s.routeDir(routeID), poiID+".md")
}

func (s *POIService) validateIDs(routeID, poiID string) error {
	if err := validSegment("route", routeID); err != nil {
		return err
	}
	return validSegment("POI", poiID)
}
