package content

import (
	"context"
	"path"

	"trailcms/api/internal/cmserr"
	"trailcms/api/internal/gitrepo"
	"trailcms/api/internal/pullrequest"
)

type ARMedia struct {
	ID       string    `json:"id"`
	Type     MediaType `json:"type"`
	Filename string    `json:"filename"`
	URL      string    `json:"url"`
}

type ARMediaService struct {
	*base
}

func (s *ARMediaService) mediaDir(routeID string) string {
	return path.Join(s.routeDir(routeID), "ar-media")
}

func (s *ARMediaService) List(ctx context.Context, routeID string) ([]ARMedia, error) {
	items, _, err := s.list(ctx, routeID)
	return items, err
}

func (s *ARMediaService) Get(ctx context.Context, routeID, mediaID string) (ARMedia, error) {
	item, _, err := s.find(ctx, routeID, mediaID)
	return item, err
}

// Create stores the upload under ar-media/<type>s/. Files whose type cannot
// be derived from the extension are refused.
func (s *ARMediaService) Create(ctx context.Context, routeID, filename string, data []byte) (ARMedia, Proposal, error) {
	if err := validSegment("route", routeID); err != nil {
		return ARMedia{}, Proposal{}, err
	}
	name, err := uploadName(filename, data)
	if err != nil {
		return ARMedia{}, Proposal{}, err
	}
	mediaType := MediaTypeOf(name)
	if mediaType == MediaUnknown {
		return ARMedia{}, Proposal{}, cmserr.Validation("unsupported AR media type %q", path.Ext(name))
	}

	filePath := path.Join(s.mediaDir(routeID), string(mediaType)+"s", name)
	proposal, err := s.propose(ctx, change{
		hint:     s.branchHint("create", "ar-media", name),
		path:     filePath,
		content:  data,
		message:  s.message("Add new AR media %s", name),
		proposal: pullrequest.Proposal{Action: "Create", EntityType: "AR Media", EntityID: name, EntityTitle: name},
	})
	if err != nil {
		return ARMedia{}, Proposal{}, err
	}
	return ARMedia{ID: gitrepo.ContentID(filePath), Type: mediaType, Filename: name, URL: filePath}, proposal, nil
}

func (s *ARMediaService) Update(ctx context.Context, routeID, mediaID string, data []byte) (ARMedia, Proposal, error) {
	item, entry, err := s.find(ctx, routeID, mediaID)
	if err != nil {
		return ARMedia{}, Proposal{}, err
	}
	if len(data) == 0 {
		return ARMedia{}, Proposal{}, cmserr.Validation("no file uploaded")
	}
	proposal, err := s.propose(ctx, change{
		hint:     s.branchHint("update", "ar-media", item.Filename),
		path:     entry.Path,
		content:  data,
		priorSHA: entry.SHA,
		message:  s.message("Update AR media %s", item.Filename),
		proposal: pullrequest.Proposal{Action: "Update", EntityType: "AR Media", EntityID: item.Filename, EntityTitle: item.Filename},
	})
	if err != nil {
		return ARMedia{}, Proposal{}, err
	}
	return item, proposal, nil
}

func (s *ARMediaService) Delete(ctx context.Context, routeID, mediaID string) (Proposal, error) {
	item, entry, err := s.find(ctx, routeID, mediaID)
	if err != nil {
		return Proposal{}, err
	}
	return s.propose(ctx, change{
		hint:     s.branchHint("delete", "ar-media", item.Filename),
		path:     entry.Path,
		priorSHA: entry.SHA,
		remove:   true,
		message:  s.message("Delete AR media %s", item.Filename),
		proposal: pullrequest.Proposal{Action: "Delete", EntityType: "AR Media", EntityID: item.Filename, EntityTitle: item.Filename},
	})
}

func (s *ARMediaService) list(ctx context.Context, routeID string) ([]ARMedia, []gitrepo.Entry, error) {
	if err := validSegment("route", routeID); err != nil {
		return nil, nil, err
	}
	files, err := s.listMedia(ctx, s.mediaDir(routeID))
	if err != nil {
		return nil, nil, err
	}
	items := make([]ARMedia, 0, len(files))
	for _, file := range files {
		items = append(items, ARMedia{
			ID:       gitrepo.ContentID(file.Path),
			Type:     MediaTypeOf(file.Name),
			Filename: file.Name,
			URL:      file.Path,
		})
	}
	return items, files, nil
}

func (s *ARMediaService) find(ctx context.Context, routeID, mediaID string) (ARMedia, gitrepo.Entry, error) {
	items, entries, err := s.list(ctx, routeID)
	if err != nil {
		return ARMedia{}, gitrepo.Entry{}, err
	}
	for i, item := range items {
		if item.ID == mediaID {
			return item, entries[i], nil
		}
	}
	return ARMedia{}, gitrepo.Entry{}, cmserr.NotFound("AR media %q not found in route %q", mediaID, routeID)
}
