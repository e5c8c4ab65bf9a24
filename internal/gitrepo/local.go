package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Local is a Remote backed by a bare go-git repository. Pull requests are
// kept in process. It is used for development without a GitHub token and as
// the backend of the package tests.
type Local struct {
	repo   *git.Repository
	author string

	mu     sync.Mutex
	pulls  []*PullRequest
	nextPR int
}

// NewLocal opens the bare repository at dir, initialising it when absent.
// An empty dir keeps everything in memory.
func NewLocal(dir, author string) (*Local, error) {
	if author == "" {
		author = "Trail CMS"
	}
	var (
		repo *git.Repository
		err  error
	)
	if dir == "" {
		repo, err = git.Init(memory.NewStorage(), nil)
	} else {
		repo, err = git.PlainOpen(dir)
		if errors.Is(err, git.ErrRepositoryNotExists) {
			repo, err = git.PlainInit(dir, true)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open local repo: %w", err)
	}
	return &Local{repo: repo, author: author}, nil
}

// Seed commits files onto branch, creating the branch when it does not exist.
func (l *Local) Seed(ctx context.Context, branch string, files map[string][]byte, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tree := map[string]treeFile{}
	var parents []plumbing.Hash
	head, err := l.branchCommit(branch)
	switch {
	case err == nil:
		if tree, err = flattenCommit(head); err != nil {
			return err
		}
		parents = []plumbing.Hash{head.Hash}
	case !errors.Is(err, ErrNotFound):
		return err
	}

	for filePath, content := range files {
		hash, err := l.storeBlob(content)
		if err != nil {
			return err
		}
		tree[strings.TrimPrefix(filePath, "/")] = treeFile{hash: hash, mode: filemode.Regular}
	}
	_, err = l.commitTree(branch, tree, parents, message)
	return err
}

func (l *Local) BranchSHA(ctx context.Context, branch string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	commit, err := l.branchCommit(branch)
	if err != nil {
		return "", err
	}
	return commit.Hash.String(), nil
}

func (l *Local) CreateBranch(ctx context.Context, name, sha string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	refName := plumbing.NewBranchReferenceName(name)
	if _, err := l.repo.Reference(refName, true); err == nil {
		return fmt.Errorf("branch %s: %w", name, ErrAlreadyExists)
	}
	hash := plumbing.NewHash(sha)
	if _, err := l.repo.CommitObject(hash); err != nil {
		return fmt.Errorf("commit %s: %w", sha, ErrNotFound)
	}
	if err := l.repo.Storer.SetReference(plumbing.NewHashReference(refName, hash)); err != nil {
		return fmt.Errorf("create branch ref: %w", err)
	}
	return nil
}

func (l *Local) DeleteBranch(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	refName := plumbing.NewBranchReferenceName(name)
	if _, err := l.repo.Reference(refName, true); err != nil {
		return fmt.Errorf("branch %s: %w", name, ErrNotFound)
	}
	if err := l.repo.Storer.RemoveReference(refName); err != nil {
		return fmt.Errorf("remove branch ref: %w", err)
	}
	now := time.Now().UTC()
	for _, pr := range l.pulls {
		if pr.Head.Ref == name && pr.State == "open" {
			pr.State = "closed"
			pr.UpdatedAt = now
		}
	}
	return nil
}

func (l *Local) GetFile(ctx context.Context, filePath, ref string) (File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tree, err := l.refTree(ref)
	if err != nil {
		return File{}, err
	}
	entry, err := tree.FindEntry(filePath)
	if err != nil || entry.Mode == filemode.Dir {
		return File{}, fmt.Errorf("file %s: %w", filePath, ErrNotFound)
	}
	content, err := l.readBlob(entry.Hash)
	if err != nil {
		return File{}, err
	}
	return File{Path: filePath, SHA: entry.Hash.String(), Content: content}, nil
}

func (l *Local) ListDir(ctx context.Context, dir, ref string) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tree, err := l.refTree(ref)
	if err != nil {
		return nil, err
	}
	dir = strings.Trim(dir, "/")
	if dir != "" {
		entry, err := tree.FindEntry(dir)
		if err != nil || entry.Mode != filemode.Dir {
			return nil, fmt.Errorf("directory %s: %w", dir, ErrNotFound)
		}
		if tree, err = l.repo.TreeObject(entry.Hash); err != nil {
			return nil, fmt.Errorf("load tree %s: %w", dir, err)
		}
	}

	entries := make([]Entry, 0, len(tree.Entries))
	for _, item := range tree.Entries {
		entry := Entry{
			Name: item.Name,
			Path: joinPath(dir, item.Name),
			SHA:  item.Hash.String(),
			Type: EntryFile,
		}
		if item.Mode == filemode.Dir {
			entry.Type = EntryDir
		} else if blob, err := l.repo.BlobObject(item.Hash); err == nil {
			entry.Size = int(blob.Size)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (l *Local) PutFile(ctx context.Context, req PutFileRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	head, err := l.branchCommit(req.Branch)
	if err != nil {
		return err
	}
	files, err := flattenCommit(head)
	if err != nil {
		return err
	}
	filePath := strings.Trim(req.Path, "/")
	existing, ok := files[filePath]
	switch {
	case ok && req.SHA == "":
		return fmt.Errorf("%s exists and no sha was supplied: %w", filePath, ErrRejected)
	case ok && req.SHA != existing.hash.String():
		return fmt.Errorf("%s does not match %s: %w", filePath, req.SHA, ErrRejected)
	case !ok && req.SHA != "":
		return fmt.Errorf("%s no longer exists: %w", filePath, ErrRejected)
	}
	if conflictsWithTree(files, filePath) {
		return fmt.Errorf("%s collides with an existing path: %w", filePath, ErrRejected)
	}

	hash, err := l.storeBlob(req.Content)
	if err != nil {
		return err
	}
	files[filePath] = treeFile{hash: hash, mode: filemode.Regular}
	_, err = l.commitTree(req.Branch, files, []plumbing.Hash{head.Hash}, req.Message)
	return err
}

func (l *Local) DeleteFile(ctx context.Context, req DeleteFileRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	head, err := l.branchCommit(req.Branch)
	if err != nil {
		return err
	}
	files, err := flattenCommit(head)
	if err != nil {
		return err
	}
	filePath := strings.Trim(req.Path, "/")
	existing, ok := files[filePath]
	if !ok {
		return fmt.Errorf("file %s: %w", filePath, ErrNotFound)
	}
	if req.SHA != existing.hash.String() {
		return fmt.Errorf("%s does not match %s: %w", filePath, req.SHA, ErrRejected)
	}
	delete(files, filePath)
	_, err = l.commitTree(req.Branch, files, []plumbing.Hash{head.Hash}, req.Message)
	return err
}

func (l *Local) ListPullRequests(ctx context.Context, state string) ([]PullRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items := make([]PullRequest, 0, len(l.pulls))
	for i := len(l.pulls) - 1; i >= 0; i-- {
		pr := l.pulls[i]
		if state != "" && state != "all" && pr.State != state {
			continue
		}
		items = append(items, l.snapshot(pr))
	}
	return items, nil
}

func (l *Local) GetPullRequest(ctx context.Context, number int) (PullRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pr, err := l.pull(number)
	if err != nil {
		return PullRequest{}, err
	}
	return l.snapshot(pr), nil
}

func (l *Local) CreatePullRequest(ctx context.Context, req NewPullRequest) (PullRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	head, err := l.branchCommit(req.Head)
	if err != nil {
		return PullRequest{}, err
	}
	base, err := l.branchCommit(req.Base)
	if err != nil {
		return PullRequest{}, err
	}
	if head.Hash == base.Hash {
		return PullRequest{}, fmt.Errorf("no commits between %s and %s: %w", req.Base, req.Head, ErrRejected)
	}
	for _, pr := range l.pulls {
		if pr.State == "open" && pr.Head.Ref == req.Head && pr.Base.Ref == req.Base {
			return PullRequest{}, fmt.Errorf("pull request for %s: %w", req.Head, ErrAlreadyExists)
		}
	}

	l.nextPR++
	now := time.Now().UTC()
	pr := &PullRequest{
		ID:        int64(l.nextPR),
		Number:    l.nextPR,
		Title:     req.Title,
		Body:      req.Body,
		State:     "open",
		CreatedAt: now,
		UpdatedAt: now,
		HTMLURL:   fmt.Sprintf("local://pulls/%d", l.nextPR),
		Author:    &Author{Login: sanitizeLogin(l.author)},
		Head:      PullRequestHead{Ref: req.Head, SHA: head.Hash.String()},
		Base:      PullRequestBase{Ref: req.Base},
	}
	l.pulls = append(l.pulls, pr)
	return l.snapshot(pr), nil
}

// MergePullRequest applies the head branch's changes since the merge base
// onto the base branch. It fast-forwards when the base has not moved and
// refuses when both sides touched the same path differently.
func (l *Local) MergePullRequest(ctx context.Context, number int, message string) (MergeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pr, err := l.pull(number)
	if err != nil {
		return MergeResult{}, err
	}
	if pr.State != "open" {
		return MergeResult{}, fmt.Errorf("pull request %d is %s: %w", number, pr.State, ErrNotMergeable)
	}
	head, err := l.branchCommit(pr.Head.Ref)
	if err != nil {
		return MergeResult{}, err
	}
	base, err := l.branchCommit(pr.Base.Ref)
	if err != nil {
		return MergeResult{}, err
	}
	ancestors, err := head.MergeBase(base)
	if err != nil {
		return MergeResult{}, fmt.Errorf("compute merge base: %w", err)
	}
	if len(ancestors) == 0 {
		return MergeResult{}, fmt.Errorf("no common ancestor: %w", ErrNotMergeable)
	}

	var merged plumbing.Hash
	if ancestors[0].Hash == base.Hash {
		merged = head.Hash
		if err := l.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(pr.Base.Ref), merged)); err != nil {
			return MergeResult{}, fmt.Errorf("fast-forward %s: %w", pr.Base.Ref, err)
		}
	} else {
		files, err := threeWayFiles(ancestors[0], base, head)
		if err != nil {
			return MergeResult{}, err
		}
		if message == "" {
			message = fmt.Sprintf("Merge pull request #%d from %s", number, pr.Head.Ref)
		}
		merged, err = l.commitTree(pr.Base.Ref, files, []plumbing.Hash{base.Hash, head.Hash}, message)
		if err != nil {
			return MergeResult{}, err
		}
	}

	pr.State = "closed"
	pr.UpdatedAt = time.Now().UTC()
	return MergeResult{Merged: true, Message: "Pull Request successfully merged", SHA: merged.String()}, nil
}

func (l *Local) ListPullRequestFiles(ctx context.Context, number int) ([]PullRequestFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pr, err := l.pull(number)
	if err != nil {
		return nil, err
	}
	head, err := l.commitForPull(pr)
	if err != nil {
		return nil, err
	}
	base, err := l.branchCommit(pr.Base.Ref)
	if err != nil {
		return nil, err
	}
	ancestors, err := head.MergeBase(base)
	if err != nil {
		return nil, fmt.Errorf("compute merge base: %w", err)
	}
	if len(ancestors) == 0 {
		return []PullRequestFile{}, nil
	}
	patch, err := ancestors[0].Patch(head)
	if err != nil {
		return nil, fmt.Errorf("diff pull request %d: %w", number, err)
	}

	files := make([]PullRequestFile, 0)
	for _, fp := range patch.FilePatches() {
		from, to := fp.Files()
		var file PullRequestFile
		switch {
		case from == nil && to == nil:
			continue
		case from == nil:
			file.Filename, file.Status = to.Path(), "added"
		case to == nil:
			file.Filename, file.Status = from.Path(), "removed"
		case from.Path() != to.Path():
			file.Filename, file.Status = to.Path(), "renamed"
		default:
			file.Filename, file.Status = to.Path(), "modified"
		}
		for _, chunk := range fp.Chunks() {
			switch chunk.Type() {
			case diff.Add:
				file.Additions += countLines(chunk.Content())
			case diff.Delete:
				file.Deletions += countLines(chunk.Content())
			}
		}
		file.Changes = file.Additions + file.Deletions
		files = append(files, file)
	}
	return files, nil
}

func (l *Local) pull(number int) (*PullRequest, error) {
	for _, pr := range l.pulls {
		if pr.Number == number {
			return pr, nil
		}
	}
	return nil, fmt.Errorf("pull request %d: %w", number, ErrNotFound)
}

// commitForPull resolves a pull request's head, falling back to the recorded
// sha once the branch is gone.
func (l *Local) commitForPull(pr *PullRequest) (*object.Commit, error) {
	if commit, err := l.branchCommit(pr.Head.Ref); err == nil {
		return commit, nil
	}
	commit, err := l.repo.CommitObject(plumbing.NewHash(pr.Head.SHA))
	if err != nil {
		return nil, fmt.Errorf("head of pull request %d: %w", pr.Number, ErrNotFound)
	}
	return commit, nil
}

func (l *Local) snapshot(pr *PullRequest) PullRequest {
	out := *pr
	if commit, err := l.branchCommit(pr.Head.Ref); err == nil {
		out.Head.SHA = commit.Hash.String()
	}
	if pr.Author != nil {
		author := *pr.Author
		out.Author = &author
	}
	return out
}

func (l *Local) branchCommit(branch string) (*object.Commit, error) {
	ref, err := l.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, fmt.Errorf("branch %s: %w", branch, ErrNotFound)
		}
		return nil, fmt.Errorf("resolve branch %s: %w", branch, err)
	}
	commit, err := l.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	return commit, nil
}

func (l *Local) refTree(ref string) (*object.Tree, error) {
	commit, err := l.branchCommit(ref)
	if errors.Is(err, ErrNotFound) && plumbing.IsHash(ref) {
		commit, err = l.repo.CommitObject(plumbing.NewHash(ref))
		if err != nil {
			return nil, fmt.Errorf("commit %s: %w", ref, ErrNotFound)
		}
	}
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	return tree, nil
}

func (l *Local) readBlob(hash plumbing.Hash) ([]byte, error) {
	blob, err := l.repo.BlobObject(hash)
	if err != nil {
		return nil, fmt.Errorf("load blob %s: %w", hash, err)
	}
	reader, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("open blob reader: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read blob bytes: %w", err)
	}
	return content, nil
}

func (l *Local) storeBlob(content []byte) (plumbing.Hash, error) {
	obj := l.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(content)))
	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open blob writer: %w", err)
	}
	if _, err := writer.Write(content); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	if err := writer.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("close blob writer: %w", err)
	}
	return l.repo.Storer.SetEncodedObject(obj)
}

func (l *Local) commitTree(branch string, files map[string]treeFile, parents []plumbing.Hash, message string) (plumbing.Hash, error) {
	treeHash, err := l.storeTree(buildTree(files))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	signature := object.Signature{
		Name:  l.author,
		Email: fmt.Sprintf("%s@local.trailcms.dev", sanitizeLogin(l.author)),
		When:  time.Now(),
	}
	commit := &object.Commit{
		Author:       signature,
		Committer:    signature,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}
	obj := l.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode commit: %w", err)
	}
	hash, err := l.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store commit: %w", err)
	}
	if err := l.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), hash)); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("set %s branch ref: %w", branch, err)
	}
	return hash, nil
}

func (l *Local) storeTree(node *treeNode) (plumbing.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(node.dirs)+len(node.files))
	for name, child := range node.dirs {
		hash, err := l.storeTree(child)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: hash})
	}
	for name, file := range node.files {
		entries = append(entries, object.TreeEntry{Name: name, Mode: file.mode, Hash: file.hash})
	}
	// git orders directories as if their name ended in "/".
	sort.Slice(entries, func(i, j int) bool {
		return treeSortKey(entries[i]) < treeSortKey(entries[j])
	})

	obj := l.repo.Storer.NewEncodedObject()
	if err := (&object.Tree{Entries: entries}).Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode tree: %w", err)
	}
	hash, err := l.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store tree: %w", err)
	}
	return hash, nil
}

type treeFile struct {
	hash plumbing.Hash
	mode filemode.FileMode
}

type treeNode struct {
	dirs  map[string]*treeNode
	files map[string]treeFile
}

func newTreeNode() *treeNode {
	return &treeNode{dirs: map[string]*treeNode{}, files: map[string]treeFile{}}
}

func buildTree(files map[string]treeFile) *treeNode {
	root := newTreeNode()
	for filePath, file := range files {
		node := root
		parts := strings.Split(filePath, "/")
		for _, dir := range parts[:len(parts)-1] {
			child, ok := node.dirs[dir]
			if !ok {
				child = newTreeNode()
				node.dirs[dir] = child
			}
			node = child
		}
		node.files[parts[len(parts)-1]] = file
	}
	return root
}

func flattenCommit(commit *object.Commit) (map[string]treeFile, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	files := map[string]treeFile{}
	err = tree.Files().ForEach(func(f *object.File) error {
		files[f.Name] = treeFile{hash: f.Hash, mode: f.Mode}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tree: %w", err)
	}
	return files, nil
}

// threeWayFiles replays head's changes since ancestor onto base.
func threeWayFiles(ancestor, base, head *object.Commit) (map[string]treeFile, error) {
	original, err := flattenCommit(ancestor)
	if err != nil {
		return nil, err
	}
	ours, err := flattenCommit(base)
	if err != nil {
		return nil, err
	}
	theirs, err := flattenCommit(head)
	if err != nil {
		return nil, err
	}

	paths := map[string]struct{}{}
	for p := range original {
		paths[p] = struct{}{}
	}
	for p := range theirs {
		paths[p] = struct{}{}
	}
	for p := range paths {
		was, inOriginal := original[p]
		now, inTheirs := theirs[p]
		if inOriginal == inTheirs && was == now {
			continue
		}
		current, inOurs := ours[p]
		if inOurs != inOriginal || current != was {
			if inOurs == inTheirs && current == now {
				continue
			}
			return nil, fmt.Errorf("%s changed on both sides: %w", p, ErrNotMergeable)
		}
		if inTheirs {
			ours[p] = now
		} else {
			delete(ours, p)
		}
	}
	return ours, nil
}

func conflictsWithTree(files map[string]treeFile, filePath string) bool {
	prefix := filePath + "/"
	for existing := range files {
		if strings.HasPrefix(existing, prefix) {
			return true
		}
	}
	parts := strings.Split(filePath, "/")
	for i := 1; i < len(parts); i++ {
		if _, ok := files[strings.Join(parts[:i], "/")]; ok {
			return true
		}
	}
	return false
}

func treeSortKey(entry object.TreeEntry) string {
	if entry.Mode == filemode.Dir {
		return entry.Name + "/"
	}
	return entry.Name
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	lines := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		lines++
	}
	return lines
}

func sanitizeLogin(input string) string {
	runes := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			runes = append(runes, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			runes = append(runes, '.')
		}
	}
	if len(runes) == 0 {
		return "cms"
	}
	return strings.ToLower(string(runes))
}
