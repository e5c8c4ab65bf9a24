package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"
)

// GitHub is a Remote backed by the GitHub REST API.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHub authenticates with a personal access token. apiURL overrides the
// public API endpoint, e.g. for GitHub Enterprise.
func NewGitHub(ctx context.Context, token, owner, repo, apiURL string) (*GitHub, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if apiURL != "" {
		base, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github api url: %w", err)
		}
		client.BaseURL = base
	}
	return NewGitHubWithClient(client, owner, repo), nil
}

func NewGitHubWithClient(client *github.Client, owner, repo string) *GitHub {
	return &GitHub{client: client, owner: owner, repo: repo}
}

func (g *GitHub) BranchSHA(ctx context.Context, branch string) (string, error) {
	ref, _, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "heads/"+branch)
	if err != nil {
		return "", classify("get ref heads/"+branch, err)
	}
	return ref.GetObject().GetSHA(), nil
}

func (g *GitHub) CreateBranch(ctx context.Context, name, sha string) error {
	_, _, err := g.client.Git.CreateRef(ctx, g.owner, g.repo, github.CreateRef{
		Ref: "refs/heads/" + name,
		SHA: sha,
	})
	if err != nil {
		return classify("create ref heads/"+name, err)
	}
	return nil
}

func (g *GitHub) DeleteBranch(ctx context.Context, name string) error {
	if _, err := g.client.Git.DeleteRef(ctx, g.owner, g.repo, "heads/"+name); err != nil {
		return classify("delete ref heads/"+name, err)
	}
	return nil
}

func (g *GitHub) GetFile(ctx context.Context, filePath, ref string) (File, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	file, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, filePath, opts)
	if err != nil {
		return File{}, classify("get contents "+filePath, err)
	}
	if file == nil {
		return File{}, fmt.Errorf("%s is a directory: %w", filePath, ErrNotFound)
	}

	var content []byte
	if file.GetEncoding() == "none" {
		// Files above the contents API size limit come back without a body.
		reader, _, err := g.client.Repositories.DownloadContents(ctx, g.owner, g.repo, filePath, opts)
		if err != nil {
			return File{}, classify("download "+filePath, err)
		}
		defer reader.Close()
		if content, err = io.ReadAll(reader); err != nil {
			return File{}, fmt.Errorf("read %s: %w", filePath, err)
		}
	} else {
		decoded, err := file.GetContent()
		if err != nil {
			return File{}, fmt.Errorf("decode %s: %w", filePath, err)
		}
		content = []byte(decoded)
	}
	return File{Path: file.GetPath(), SHA: file.GetSHA(), Content: content}, nil
}

func (g *GitHub) ListDir(ctx context.Context, dir, ref string) ([]Entry, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	file, listing, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, dir, opts)
	if err != nil {
		return nil, classify("list contents "+dir, err)
	}
	if file != nil {
		return nil, fmt.Errorf("%s is a file: %w", dir, ErrNotFound)
	}
	entries := make([]Entry, 0, len(listing))
	for _, item := range listing {
		entry := Entry{
			Name: item.GetName(),
			Path: item.GetPath(),
			SHA:  item.GetSHA(),
			Size: item.GetSize(),
			Type: EntryFile,
		}
		if item.GetType() == "dir" {
			entry.Type = EntryDir
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (g *GitHub) PutFile(ctx context.Context, req PutFileRequest) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(req.Message),
		Content: req.Content,
		Branch:  github.Ptr(req.Branch),
	}
	var err error
	if req.SHA == "" {
		_, _, err = g.client.Repositories.CreateFile(ctx, g.owner, g.repo, req.Path, opts)
	} else {
		opts.SHA = github.Ptr(req.SHA)
		_, _, err = g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, req.Path, opts)
	}
	if err != nil {
		return classify("put "+req.Path, err)
	}
	return nil
}

func (g *GitHub) DeleteFile(ctx context.Context, req DeleteFileRequest) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(req.Message),
		SHA:     github.Ptr(req.SHA),
		Branch:  github.Ptr(req.Branch),
	}
	if _, _, err := g.client.Repositories.DeleteFile(ctx, g.owner, g.repo, req.Path, opts); err != nil {
		return classify("delete "+req.Path, err)
	}
	return nil
}

func (g *GitHub) ListPullRequests(ctx context.Context, state string) ([]PullRequest, error) {
	if state == "" {
		state = "open"
	}
	opts := &github.PullRequestListOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: 100},
	}
	items := make([]PullRequest, 0)
	for {
		page, resp, err := g.client.PullRequests.List(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, classify("list pull requests", err)
		}
		for _, pr := range page {
			items = append(items, fromGitHubPull(pr))
		}
		if resp == nil || resp.NextPage == 0 {
			return items, nil
		}
		opts.Page = resp.NextPage
	}
}

func (g *GitHub) GetPullRequest(ctx context.Context, number int) (PullRequest, error) {
	pr, _, err := g.client.PullRequests.Get(ctx, g.owner, g.repo, number)
	if err != nil {
		return PullRequest{}, classify(fmt.Sprintf("get pull request %d", number), err)
	}
	return fromGitHubPull(pr), nil
}

func (g *GitHub) CreatePullRequest(ctx context.Context, req NewPullRequest) (PullRequest, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, &github.NewPullRequest{
		Title: github.Ptr(req.Title),
		Head:  github.Ptr(req.Head),
		Base:  github.Ptr(req.Base),
		Body:  github.Ptr(req.Body),
	})
	if err != nil {
		return PullRequest{}, classify("create pull request from "+req.Head, err)
	}
	return fromGitHubPull(pr), nil
}

func (g *GitHub) MergePullRequest(ctx context.Context, number int, message string) (MergeResult, error) {
	result, _, err := g.client.PullRequests.Merge(ctx, g.owner, g.repo, number, message, nil)
	if err != nil {
		return MergeResult{}, classify(fmt.Sprintf("merge pull request %d", number), err)
	}
	return MergeResult{
		Merged:  result.GetMerged(),
		Message: result.GetMessage(),
		SHA:     result.GetSHA(),
	}, nil
}

func (g *GitHub) ListPullRequestFiles(ctx context.Context, number int) ([]PullRequestFile, error) {
	opts := &github.ListOptions{PerPage: 100}
	files := make([]PullRequestFile, 0)
	for {
		page, resp, err := g.client.PullRequests.ListFiles(ctx, g.owner, g.repo, number, opts)
		if err != nil {
			return nil, classify(fmt.Sprintf("list files of pull request %d", number), err)
		}
		for _, file := range page {
			files = append(files, PullRequestFile{
				Filename:  file.GetFilename(),
				Status:    file.GetStatus(),
				Additions: file.GetAdditions(),
				Deletions: file.GetDeletions(),
				Changes:   file.GetChanges(),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			return files, nil
		}
		opts.Page = resp.NextPage
	}
}

func fromGitHubPull(pr *github.PullRequest) PullRequest {
	out := PullRequest{
		ID:        pr.GetID(),
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		State:     pr.GetState(),
		CreatedAt: pr.GetCreatedAt().Time,
		UpdatedAt: pr.GetUpdatedAt().Time,
		HTMLURL:   pr.GetHTMLURL(),
		Head:      PullRequestHead{Ref: pr.GetHead().GetRef(), SHA: pr.GetHead().GetSHA()},
		Base:      PullRequestBase{Ref: pr.GetBase().GetRef()},
	}
	if user := pr.GetUser(); user != nil {
		out.Author = &Author{Login: user.GetLogin(), AvatarURL: user.GetAvatarURL()}
	}
	return out
}

// classify maps an API failure onto the package sentinels by status code,
// keeping the original error in the chain.
func classify(op string, err error) error {
	var apiErr *github.ErrorResponse
	if !errors.As(err, &apiErr) || apiErr.Response == nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var sentinel error
	switch apiErr.Response.StatusCode {
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusMethodNotAllowed:
		sentinel = ErrNotMergeable
	case http.StatusConflict:
		sentinel = ErrRejected
	case http.StatusUnprocessableEntity:
		sentinel = classifyValidation(apiErr)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel, err)
}

func classifyValidation(apiErr *github.ErrorResponse) error {
	for _, item := range apiErr.Errors {
		switch {
		case item.Code == "already_exists":
			return ErrAlreadyExists
		case item.Code == "invalid" && (item.Field == "head" || item.Field == "base"):
			return ErrNotFound
		}
	}
	if strings.Contains(strings.ToLower(apiErr.Message), "already exists") {
		return ErrAlreadyExists
	}
	return ErrRejected
}
