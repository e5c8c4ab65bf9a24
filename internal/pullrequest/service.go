// Package pullrequest opens and manages the review pull requests created by
// the content engine. Only pull requests whose title starts with the
// configured marker are visible or mutable through it.
package pullrequest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"trailcms/api/internal/cmserr"
	"trailcms/api/internal/gitrepo"
)

// Notifier is told about every pull request the engine opens.
type Notifier interface {
	PullRequestOpened(ctx context.Context, pr gitrepo.PullRequest) error
}

// Proposal describes the entity change a pull request carries.
type Proposal struct {
	Action      string
	EntityType  string
	EntityID    string
	EntityTitle string
}

type Service struct {
	remote   gitrepo.Remote
	trunk    string
	marker   string
	notifier Notifier
}

func New(remote gitrepo.Remote, trunk, marker string, notifier Notifier) *Service {
	return &Service{remote: remote, trunk: trunk, marker: marker, notifier: notifier}
}

func (s *Service) Marker() string {
	return s.marker
}

// Owned reports whether the engine created pr.
func (s *Service) Owned(pr gitrepo.PullRequest) bool {
	return strings.HasPrefix(pr.Title, s.marker)
}

// Title formats "{marker} {Action} {EntityType} {id}".
func (s *Service) Title(action, entityType, entityID string) string {
	return fmt.Sprintf("%s %s %s %s", s.marker, capitalize(action), entityType, entityID)
}

func Description(action, entityType, entityTitle string) string {
	return fmt.Sprintf("This pull request %ss the %s: %s\n\nCreated by CMS",
		strings.ToLower(action), strings.ToLower(entityType), entityTitle)
}

func (s *Service) Create(ctx context.Context, base, head, title, body string) (gitrepo.PullRequest, error) {
	if base == "" || head == "" || title == "" {
		return gitrepo.PullRequest{}, cmserr.Validation("base, head and title are required")
	}
	pr, err := s.remote.CreatePullRequest(ctx, gitrepo.NewPullRequest{
		Title: title,
		Head:  head,
		Base:  base,
		Body:  body,
	})
	if err != nil {
		switch {
		case errors.Is(err, gitrepo.ErrNotFound):
			return gitrepo.PullRequest{}, cmserr.Wrap(cmserr.KindNotFound, err, "branch %q or %q not found", head, base)
		case errors.Is(err, gitrepo.ErrRejected):
			return gitrepo.PullRequest{}, cmserr.Wrap(cmserr.KindValidation, err, "pull request from %q was rejected", head)
		case errors.Is(err, gitrepo.ErrAlreadyExists):
			return gitrepo.PullRequest{}, cmserr.Wrap(cmserr.KindConflict, err, "a pull request from %q already exists", head)
		}
		return gitrepo.PullRequest{}, fmt.Errorf("create pull request: %w", err)
	}
	return pr, nil
}

// Open creates the pull request for a proposal against the trunk and
// notifies reviewers. Notification failures are logged only.
func (s *Service) Open(ctx context.Context, branch string, p Proposal) (gitrepo.PullRequest, error) {
	pr, err := s.Create(ctx, s.trunk, branch, s.Title(p.Action, p.EntityType, p.EntityID), Description(p.Action, p.EntityType, p.EntityTitle))
	if err != nil {
		log.Printf("pullrequest: branch %s left without pull request: %v", branch, err)
		return gitrepo.PullRequest{}, err
	}
	log.Printf("pullrequest: opened #%d %q from %s", pr.Number, pr.Title, branch)
	if s.notifier != nil {
		if err := s.notifier.PullRequestOpened(ctx, pr); err != nil {
			log.Printf("pullrequest: notify reviewers of #%d: %v", pr.Number, err)
		}
	}
	return pr, nil
}

// List returns the open engine-owned pull requests with their changed files.
func (s *Service) List(ctx context.Context) ([]gitrepo.PullRequest, error) {
	pulls, err := s.remote.ListPullRequests(ctx, "open")
	if err != nil {
		return nil, fmt.Errorf("list pull requests: %w", err)
	}

	owned := make([]gitrepo.PullRequest, 0, len(pulls))
	for _, pr := range pulls {
		if s.Owned(pr) {
			owned = append(owned, pr)
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for i := range owned {
		group.Go(func() error {
			files, err := s.remote.ListPullRequestFiles(groupCtx, owned[i].Number)
			if err != nil {
				return fmt.Errorf("list files of #%d: %w", owned[i].Number, err)
			}
			owned[i].Files = files
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return owned, nil
}

func (s *Service) Get(ctx context.Context, number int) (gitrepo.PullRequest, error) {
	pr, err := s.owned(ctx, number)
	if err != nil {
		return gitrepo.PullRequest{}, err
	}
	files, err := s.remote.ListPullRequestFiles(ctx, number)
	if err != nil {
		return gitrepo.PullRequest{}, fmt.Errorf("list files of #%d: %w", number, err)
	}
	pr.Files = files
	return pr, nil
}

func (s *Service) Merge(ctx context.Context, number int) (gitrepo.MergeResult, error) {
	pr, err := s.owned(ctx, number)
	if err != nil {
		return gitrepo.MergeResult{}, err
	}
	result, err := s.remote.MergePullRequest(ctx, number, pr.Title)
	if err != nil {
		switch {
		case errors.Is(err, gitrepo.ErrNotMergeable), errors.Is(err, gitrepo.ErrRejected):
			return gitrepo.MergeResult{}, cmserr.Wrap(cmserr.KindConflict, err, "pull request #%d cannot be merged", number)
		case errors.Is(err, gitrepo.ErrNotFound):
			return gitrepo.MergeResult{}, cmserr.Wrap(cmserr.KindNotFound, err, "pull request #%d not found", number)
		}
		return gitrepo.MergeResult{}, fmt.Errorf("merge pull request #%d: %w", number, err)
	}
	log.Printf("pullrequest: merged #%d into %s", number, pr.Base.Ref)
	return result, nil
}

// Delete discards an engine-owned pull request by deleting its head branch.
func (s *Service) Delete(ctx context.Context, number int) (string, error) {
	pr, err := s.owned(ctx, number)
	if err != nil {
		return "", err
	}
	if err := s.remote.DeleteBranch(ctx, pr.Head.Ref); err != nil {
		if errors.Is(err, gitrepo.ErrNotFound) {
			return "", cmserr.Wrap(cmserr.KindNotFound, err, "branch %q of pull request #%d not found", pr.Head.Ref, number)
		}
		return "", fmt.Errorf("delete branch %s: %w", pr.Head.Ref, err)
	}
	log.Printf("pullrequest: deleted #%d and branch %s", number, pr.Head.Ref)
	return fmt.Sprintf("Pull request #%d closed and branch %s deleted", number, pr.Head.Ref), nil
}

func (s *Service) owned(ctx context.Context, number int) (gitrepo.PullRequest, error) {
	pr, err := s.remote.GetPullRequest(ctx, number)
	if err != nil {
		if errors.Is(err, gitrepo.ErrNotFound) {
			return gitrepo.PullRequest{}, cmserr.Wrap(cmserr.KindNotFound, err, "pull request #%d not found", number)
		}
		return gitrepo.PullRequest{}, fmt.Errorf("get pull request #%d: %w", number, err)
	}
	if !s.Owned(pr) {
		return gitrepo.PullRequest{}, cmserr.Forbidden("pull request #%d was not created by the CMS", number)
	}
	return pr, nil
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}
