// Package gitrepo wraps the content repository: branch creation, file
// reads and writes against a Remote, and the helpers entity services share.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"

	"trailcms/api/internal/cmserr"
)

type Service struct {
	remote Remote
	trunk  string
}

func New(remote Remote, trunk string) *Service {
	if trunk == "" {
		trunk = "main"
	}
	return &Service{remote: remote, trunk: trunk}
}

func (s *Service) Trunk() string {
	return s.trunk
}

func (s *Service) Remote() Remote {
	return s.remote
}

// CreateBranch forks a sanitized branch off the trunk's current commit and
// returns the name actually created.
func (s *Service) CreateBranch(ctx context.Context, hint string) (string, error) {
	name := SanitizeBranchName(hint)
	if name == "" {
		return "", cmserr.Validation("branch name %q has no usable characters", hint)
	}

	sha, err := s.remote.BranchSHA(ctx, s.trunk)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", cmserr.Wrap(cmserr.KindNotFound, err, "trunk branch %q not found", s.trunk)
		}
		return "", fmt.Errorf("read trunk ref: %w", err)
	}

	if err := s.remote.CreateBranch(ctx, name, sha); err != nil {
		return "", fmt.Errorf("create branch %s: %w", name, err)
	}
	return name, nil
}

// DeleteBranch removes a working branch. A missing branch is not an error.
func (s *Service) DeleteBranch(ctx context.Context, name string) error {
	if name == "" || name == s.trunk {
		return cmserr.Validation("refusing to delete branch %q", name)
	}
	if err := s.remote.DeleteBranch(ctx, name); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete branch %s: %w", name, err)
	}
	return nil
}

// WriteFile creates or overwrites path on branch. priorSHA must be the blob
// hash last read when overwriting and empty when creating.
func (s *Service) WriteFile(ctx context.Context, filePath string, content []byte, message, branch, priorSHA string) error {
	missing := make([]string, 0)
	if filePath == "" {
		missing = append(missing, "path")
	}
	if len(content) == 0 {
		missing = append(missing, "content")
	}
	if message == "" {
		missing = append(missing, "message")
	}
	if branch == "" {
		missing = append(missing, "branch")
	}
	if len(missing) > 0 {
		return cmserr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	err := s.remote.PutFile(ctx, PutFileRequest{
		Path:    filePath,
		Content: content,
		Message: message,
		Branch:  branch,
		SHA:     priorSHA,
	})
	return classifyWrite(err, filePath, branch)
}

// DeleteFile removes path on branch. sha is the blob hash being deleted.
func (s *Service) DeleteFile(ctx context.Context, filePath, message, branch, sha string) error {
	if filePath == "" || message == "" || branch == "" || sha == "" {
		return cmserr.Validation("path, message, branch and sha are required")
	}
	err := s.remote.DeleteFile(ctx, DeleteFileRequest{
		Path:    filePath,
		Message: message,
		Branch:  branch,
		SHA:     sha,
	})
	return classifyWrite(err, filePath, branch)
}

// ReadFile reads path from the trunk. A missing file wraps ErrNotFound.
func (s *Service) ReadFile(ctx context.Context, filePath string) (File, error) {
	file, err := s.remote.GetFile(ctx, filePath, s.trunk)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", filePath, err)
	}
	return file, nil
}

// ListDir lists the immediate children of dir on the trunk.
func (s *Service) ListDir(ctx context.Context, dir string) ([]Entry, error) {
	entries, err := s.remote.ListDir(ctx, dir, s.trunk)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return entries, nil
}

// ListFilesRecursive returns every file below root on the trunk. A missing
// directory at any depth contributes nothing.
func (s *Service) ListFilesRecursive(ctx context.Context, root string) ([]Entry, error) {
	entries, err := s.remote.ListDir(ctx, root, s.trunk)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Printf("gitrepo: directory not found: %s", root)
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", root, err)
	}

	files := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		switch entry.Type {
		case EntryDir:
			nested, err := s.ListFilesRecursive(ctx, path.Join(root, entry.Name))
			if err != nil {
				return nil, err
			}
			files = append(files, nested...)
		case EntryFile:
			files = append(files, entry)
		}
	}
	return files, nil
}

func classifyWrite(err error, filePath, branch string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return cmserr.Wrap(cmserr.KindNotFound, err, "%s not found on branch %q", filePath, branch)
	case errors.Is(err, ErrRejected):
		return cmserr.Wrap(cmserr.KindValidation, err, "write to %s was rejected", filePath)
	default:
		return fmt.Errorf("write %s: %w", filePath, err)
	}
}
