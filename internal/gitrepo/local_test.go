package gitrepo

import (
	"context"
	"errors"
	"testing"
)

func TestLocalPullRequestFastForwardMerge(t *testing.T) {
	ctx := context.Background()
	svc, local := newSeededService(t, map[string][]byte{"src/a.md": []byte("one\n")})

	branch, err := svc.CreateBranch(ctx, "edit-a")
	if err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	file, err := svc.ReadFile(ctx, "src/a.md")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if err := svc.WriteFile(ctx, "src/a.md", []byte("one\ntwo\n"), "edit", branch, file.SHA); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := svc.WriteFile(ctx, "src/b.md", []byte("new\n"), "add", branch, ""); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	pr, err := local.CreatePullRequest(ctx, NewPullRequest{Title: "[CMS] Update POI a", Head: branch, Base: "main"})
	if err != nil {
		t.Fatalf("CreatePullRequest() error = %v", err)
	}
	if pr.Number != 1 || pr.State != "open" {
		t.Fatalf("unexpected pull request %+v", pr)
	}

	files, err := local.ListPullRequestFiles(ctx, pr.Number)
	if err != nil {
		t.Fatalf("ListPullRequestFiles() error = %v", err)
	}
	byName := map[string]PullRequestFile{}
	for _, f := range files {
		byName[f.Filename] = f
	}
	if byName["src/a.md"].Status != "modified" || byName["src/a.md"].Additions != 1 {
		t.Fatalf("unexpected diff for a.md: %+v", byName["src/a.md"])
	}
	if byName["src/b.md"].Status != "added" {
		t.Fatalf("unexpected diff for b.md: %+v", byName["src/b.md"])
	}

	result, err := local.MergePullRequest(ctx, pr.Number, "")
	if err != nil {
		t.Fatalf("MergePullRequest() error = %v", err)
	}
	if !result.Merged {
		t.Fatal("expected merged result")
	}
	merged, err := svc.ReadFile(ctx, "src/b.md")
	if err != nil {
		t.Fatalf("ReadFile() after merge error = %v", err)
	}
	if string(merged.Content) != "new\n" {
		t.Fatalf("unexpected merged content %q", merged.Content)
	}

	if _, err := local.MergePullRequest(ctx, pr.Number, ""); !errors.Is(err, ErrNotMergeable) {
		t.Fatalf("expected second merge to be refused, got %v", err)
	}
}

func TestLocalMergeReplaysOntoMovedBase(t *testing.T) {
	ctx := context.Background()
	svc, local := newSeededService(t, map[string][]byte{
		"src/a.md": []byte("a"),
		"src/b.md": []byte("b"),
	})

	first, err := svc.CreateBranch(ctx, "first")
	if err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	second, err := svc.CreateBranch(ctx, "second")
	if err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	a, _ := svc.ReadFile(ctx, "src/a.md")
	b, _ := svc.ReadFile(ctx, "src/b.md")
	if err := svc.WriteFile(ctx, "src/a.md", []byte("a2"), "edit a", first, a.SHA); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := svc.WriteFile(ctx, "src/b.md", []byte("b2"), "edit b", second, b.SHA); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	prA, err := local.CreatePullRequest(ctx, NewPullRequest{Title: "a", Head: first, Base: "main"})
	if err != nil {
		t.Fatalf("CreatePullRequest() error = %v", err)
	}
	prB, err := local.CreatePullRequest(ctx, NewPullRequest{Title: "b", Head: second, Base: "main"})
	if err != nil {
		t.Fatalf("CreatePullRequest() error = %v", err)
	}
	if _, err := local.MergePullRequest(ctx, prA.Number, ""); err != nil {
		t.Fatalf("merge first: %v", err)
	}
	if _, err := local.MergePullRequest(ctx, prB.Number, ""); err != nil {
		t.Fatalf("merge second: %v", err)
	}

	for path, want := range map[string]string{"src/a.md": "a2", "src/b.md": "b2"} {
		file, err := svc.ReadFile(ctx, path)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", path, err)
		}
		if string(file.Content) != want {
			t.Fatalf("%s = %q, want %q", path, file.Content, want)
		}
	}
}

func TestLocalMergeRefusesConflicts(t *testing.T) {
	ctx := context.Background()
	svc, local := newSeededService(t, map[string][]byte{"src/a.md": []byte("a")})

	left, _ := svc.CreateBranch(ctx, "left")
	right, _ := svc.CreateBranch(ctx, "right")
	a, _ := svc.ReadFile(ctx, "src/a.md")
	if err := svc.WriteFile(ctx, "src/a.md", []byte("left"), "left", left, a.SHA); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := svc.WriteFile(ctx, "src/a.md", []byte("right"), "right", right, a.SHA); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	prLeft, _ := local.CreatePullRequest(ctx, NewPullRequest{Title: "left", Head: left, Base: "main"})
	prRight, _ := local.CreatePullRequest(ctx, NewPullRequest{Title: "right", Head: right, Base: "main"})

	if _, err := local.MergePullRequest(ctx, prLeft.Number, ""); err != nil {
		t.Fatalf("merge left: %v", err)
	}
	if _, err := local.MergePullRequest(ctx, prRight.Number, ""); !errors.Is(err, ErrNotMergeable) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLocalCreatePullRequestErrors(t *testing.T) {
	ctx := context.Background()
	svc, local := newSeededService(t, map[string][]byte{"README.md": []byte("x")})

	if _, err := local.CreatePullRequest(ctx, NewPullRequest{Title: "x", Head: "missing", Base: "main"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found head, got %v", err)
	}
	branch, _ := svc.CreateBranch(ctx, "empty")
	if _, err := local.CreatePullRequest(ctx, NewPullRequest{Title: "x", Head: branch, Base: "main"}); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejection without commits, got %v", err)
	}
	if _, err := local.GetPullRequest(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected missing pull request, got %v", err)
	}
}

func TestLocalDeleteBranchClosesPullRequest(t *testing.T) {
	ctx := context.Background()
	svc, local := newSeededService(t, map[string][]byte{"README.md": []byte("x")})
	branch, _ := svc.CreateBranch(ctx, "doomed")
	if err := svc.WriteFile(ctx, "src/new.md", []byte("n"), "add", branch, ""); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	pr, err := local.CreatePullRequest(ctx, NewPullRequest{Title: "doomed", Head: branch, Base: "main"})
	if err != nil {
		t.Fatalf("CreatePullRequest() error = %v", err)
	}
	if err := svc.DeleteBranch(ctx, branch); err != nil {
		t.Fatalf("DeleteBranch() error = %v", err)
	}

	open, err := local.ListPullRequests(ctx, "open")
	if err != nil {
		t.Fatalf("ListPullRequests() error = %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no open pull requests, got %d", len(open))
	}
	closed, err := local.GetPullRequest(ctx, pr.Number)
	if err != nil {
		t.Fatalf("GetPullRequest() error = %v", err)
	}
	if closed.State != "closed" {
		t.Fatalf("state = %q", closed.State)
	}
}

func TestLocalPersistsOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	local, err := NewLocal(dir, "")
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	if err := local.Seed(ctx, "main", map[string][]byte{"src/a.md": []byte("a")}, "seed"); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	reopened, err := NewLocal(dir, "")
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	file, err := reopened.GetFile(ctx, "src/a.md", "main")
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if string(file.Content) != "a" {
		t.Fatalf("unexpected content %q", file.Content)
	}
}
