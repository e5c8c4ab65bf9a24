package content

import (
	"context"
	"path"
	"strings"

	"trailcms/api/internal/cmserr"
	"trailcms/api/internal/gitrepo"
	"trailcms/api/internal/pullrequest"
)

type Image struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Small    bool   `json:"small"`
}

type ImageService struct {
	*base
}

func (s *ImageService) imagesDir(routeID string) string {
	return path.Join(s.routeDir(routeID), "images")
}

// List returns every image below the route's images directory, small
// variants included.
func (s *ImageService) List(ctx context.Context, routeID string) ([]Image, error) {
	images, _, err := s.list(ctx, routeID)
	return images, err
}

func (s *ImageService) Get(ctx context.Context, routeID, imageID string) (Image, error) {
	image, _, err := s.find(ctx, routeID, imageID, false)
	return image, err
}

func (s *ImageService) Create(ctx context.Context, routeID, filename string, data []byte, small bool) (Image, Proposal, error) {
	if err := validSegment("route", routeID); err != nil {
		return Image{}, Proposal{}, err
	}
	name, err := uploadName(filename, data)
	if err != nil {
		return Image{}, Proposal{}, err
	}
	if !isImageFile(name) {
		return Image{}, Proposal{}, cmserr.Validation("unsupported image type %q", path.Ext(name))
	}

	dir := s.imagesDir(routeID)
	suffix := ""
	if small {
		dir = path.Join(dir, "small")
		suffix = " (small)"
	}
	filePath := path.Join(dir, name)
	proposal, err := s.propose(ctx, change{
		hint:     s.branchHint("create", "image", name),
		path:     filePath,
		content:  data,
		message:  s.message("Add new image %s%s", name, suffix),
		proposal: pullrequest.Proposal{Action: "Create", EntityType: "Image", EntityID: name, EntityTitle: name},
	})
	if err != nil {
		return Image{}, Proposal{}, err
	}
	return Image{ID: gitrepo.ContentID(filePath), Filename: name, URL: filePath, Small: small}, proposal, nil
}

// Update replaces the bytes of a listed image in place.
func (s *ImageService) Update(ctx context.Context, routeID, imageID string, data []byte) (Image, Proposal, error) {
	image, entry, err := s.find(ctx, routeID, imageID, false)
	if err != nil {
		return Image{}, Proposal{}, err
	}
	if len(data) == 0 {
		return Image{}, Proposal{}, cmserr.Validation("no file uploaded")
	}
	proposal, err := s.propose(ctx, change{
		hint:     s.branchHint("update", "image", image.Filename),
		path:     entry.Path,
		content:  data,
		priorSHA: entry.SHA,
		message:  s.message("Update image %s", image.Filename),
		proposal: pullrequest.Proposal{Action: "Update", EntityType: "Image", EntityID: image.Filename, EntityTitle: image.Filename},
	})
	if err != nil {
		return Image{}, Proposal{}, err
	}
	return image, proposal, nil
}

// Delete removes an image addressed by its id or by its exact file name.
func (s *ImageService) Delete(ctx context.Context, routeID, imageRef string) (Proposal, error) {
	image, entry, err := s.find(ctx, routeID, imageRef, true)
	if err != nil {
		return Proposal{}, err
	}
	return s.propose(ctx, change{
		hint:     s.branchHint("delete", "image", image.Filename),
		path:     entry.Path,
		priorSHA: entry.SHA,
		remove:   true,
		message:  s.message("Delete image %s", image.Filename),
		proposal: pullrequest.Proposal{Action: "Delete", EntityType: "Image", EntityID: image.Filename, EntityTitle: image.Filename},
	})
}

func (s *ImageService) list(ctx context.Context, routeID string) ([]Image, []gitrepo.Entry, error) {
	if err := validSegment("route", routeID); err != nil {
		return nil, nil, err
	}
	dir := s.imagesDir(routeID)
	files, err := s.listMedia(ctx, dir)
	if err != nil {
		return nil, nil, err
	}
	images := make([]Image, 0, len(files))
	entries := make([]gitrepo.Entry, 0, len(files))
	smallPrefix := path.Join(dir, "small") + "/"
	for _, file := range files {
		if !isImageFile(file.Name) {
			continue
		}
		images = append(images, Image{
			ID:       gitrepo.ContentID(file.Path),
			Filename: file.Name,
			URL:      file.Path,
			Small:    strings.HasPrefix(file.Path, smallPrefix),
		})
		entries = append(entries, file)
	}
	return images, entries, nil
}

// find resolves an image by id against a fresh listing. With byName, an
// exact file name that matches exactly one image is accepted as well.
func (s *ImageService) find(ctx context.Context, routeID, ref string, byName bool) (Image, gitrepo.Entry, error) {
	images, entries, err := s.list(ctx, routeID)
	if err != nil {
		return Image{}, gitrepo.Entry{}, err
	}
	for i, image := range images {
		if image.ID == ref {
			return image, entries[i], nil
		}
	}
	if byName {
		match := -1
		for i, image := range images {
			if image.Filename != ref {
				continue
			}
			if match >= 0 {
				return Image{}, gitrepo.Entry{}, cmserr.Validation("image name %q is ambiguous, use its id", ref)
			}
			match = i
		}
		if match >= 0 {
			return images[match], entries[match], nil
		}
	}
	return Image{}, gitrepo.Entry{}, cmserr.NotFound("image %q not found in route %q", ref, routeID)
}
