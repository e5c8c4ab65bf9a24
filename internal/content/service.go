// Package content implements the entity services (routes, POIs, images and
// AR media) on top of the repository and pull request layers. Every mutation
// is proposed on a fresh branch and opened as a pull request against trunk.
package content

import (
	"context"
	"fmt"
	"log"
	"path"
	"regexp"
	"time"

	"trailcms/api/internal/cmserr"
	"trailcms/api/internal/gitrepo"
	"trailcms/api/internal/pullrequest"
)

type Options struct {
	ContentRoot  string
	CommitPrefix string
	Routes       []string
	// RawBaseURL serves trunk files over HTTP, e.g.
	// https://raw.githubusercontent.com/<owner>/<repo>/main
	RawBaseURL string
}

// Services bundles the entity services sharing one repository.
type Services struct {
	Routes  *RouteService
	POIs    *POIService
	Images  *ImageService
	ARMedia *ARMediaService
	Preview *PreviewService
}

func New(repo *gitrepo.Service, pulls *pullrequest.Service, opts Options) *Services {
	if opts.ContentRoot == "" {
		opts.ContentRoot = "src"
	}
	b := &base{
		repo:   repo,
		pulls:  pulls,
		root:   opts.ContentRoot,
		marker: opts.CommitPrefix,
		routes: opts.Routes,
		now:    time.Now,
	}
	pois := &POIService{base: b}
	return &Services{
		Routes:  &RouteService{base: b},
		POIs:    pois,
		Images:  &ImageService{base: b},
		ARMedia: &ARMediaService{base: b},
		Preview: &PreviewService{pois: pois, root: opts.ContentRoot, rawBaseURL: opts.RawBaseURL},
	}
}

// Proposal identifies the pull request a mutation was filed under.
type Proposal struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Branch string `json:"branch"`
}

type base struct {
	repo   *gitrepo.Service
	pulls  *pullrequest.Service
	root   string
	marker string
	routes []string
	now    func() time.Time
}

var segmentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

func validSegment(kind, value string) error {
	if !segmentPattern.MatchString(value) {
		return cmserr.Validation("invalid %s id %q", kind, value)
	}
	return nil
}

func (b *base) routeDir(routeID string) string {
	return path.Join(b.root, routeID)
}

func (b *base) message(format string, args ...any) string {
	return b.marker + " " + fmt.Sprintf(format, args...)
}

func (b *base) branchHint(action, entity, id string) string {
	return fmt.Sprintf("%s-%s-%s-%d", action, entity, id, b.now().UnixMilli())
}

// change is one file mutation proposed for review.
type change struct {
	hint     string
	path     string
	content  []byte
	priorSHA string
	remove   bool
	message  string
	proposal pullrequest.Proposal
}

// propose opens a branch, commits the change on it and files the pull
// request. A failure after branch creation leaves the branch behind.
func (b *base) propose(ctx context.Context, c change) (Proposal, error) {
	branch, err := b.repo.CreateBranch(ctx, c.hint)
	if err != nil {
		return Proposal{}, err
	}

	if c.remove {
		err = b.repo.DeleteFile(ctx, c.path, c.message, branch, c.priorSHA)
	} else {
		err = b.repo.WriteFile(ctx, c.path, c.content, c.message, branch, c.priorSHA)
	}
	if err != nil {
		log.Printf("content: branch %s left without commit: %v", branch, err)
		return Proposal{}, err
	}

	pr, err := b.pulls.Open(ctx, branch, c.proposal)
	if err != nil {
		log.Printf("content: branch %s left without pull request: %v", branch, err)
		return Proposal{}, err
	}
	return Proposal{Number: pr.Number, URL: pr.HTMLURL, Branch: branch}, nil
}
