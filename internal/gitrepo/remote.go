package gitrepo

import (
	"context"
	"errors"
	"time"
)

// Remote failures, classified by the hosting API's status code.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRejected      = errors.New("rejected by remote")
	ErrNotMergeable  = errors.New("not mergeable")
)

// Remote is the repository-hosting API the engine talks to. Paths are
// POSIX-style and repository-relative.
type Remote interface {
	BranchSHA(ctx context.Context, branch string) (string, error)
	CreateBranch(ctx context.Context, name, sha string) error
	DeleteBranch(ctx context.Context, name string) error

	GetFile(ctx context.Context, path, ref string) (File, error)
	ListDir(ctx context.Context, path, ref string) ([]Entry, error)
	PutFile(ctx context.Context, req PutFileRequest) error
	DeleteFile(ctx context.Context, req DeleteFileRequest) error

	ListPullRequests(ctx context.Context, state string) ([]PullRequest, error)
	GetPullRequest(ctx context.Context, number int) (PullRequest, error)
	CreatePullRequest(ctx context.Context, req NewPullRequest) (PullRequest, error)
	MergePullRequest(ctx context.Context, number int, message string) (MergeResult, error)
	ListPullRequestFiles(ctx context.Context, number int) ([]PullRequestFile, error)
}

type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

type Entry struct {
	Name string
	Path string
	Type EntryType
	SHA  string
	Size int
}

type File struct {
	Path    string
	SHA     string
	Content []byte
}

type PutFileRequest struct {
	Path    string
	Content []byte
	Message string
	Branch  string
	// SHA is the blob hash the caller last read; empty creates a new file.
	SHA string
}

type DeleteFileRequest struct {
	Path    string
	Message string
	Branch  string
	SHA     string
}

type NewPullRequest struct {
	Title string
	Head  string
	Base  string
	Body  string
}

type Author struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type PullRequestHead struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type PullRequestBase struct {
	Ref string `json:"ref"`
}

type PullRequestFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
}

type PullRequest struct {
	ID        int64             `json:"id"`
	Number    int               `json:"number"`
	Title     string            `json:"title"`
	Body      string            `json:"body,omitempty"`
	State     string            `json:"state"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	HTMLURL   string            `json:"htmlUrl"`
	Author    *Author           `json:"author"`
	Head      PullRequestHead   `json:"head"`
	Base      PullRequestBase   `json:"base"`
	Files     []PullRequestFile `json:"files"`
}

type MergeResult struct {
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
	SHA     string `json:"sha,omitempty"`
}
