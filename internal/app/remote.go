package app

import (
	"context"
	"log"

	"trailcms/api/internal/config"
	"trailcms/api/internal/gitrepo"
)

// OpenRemote connects to the configured content repository: GitHub when a
// token and repository are set, otherwise the local go-git repository.
func OpenRemote(ctx context.Context, cfg config.Config) (gitrepo.Remote, error) {
	if cfg.UseGitHub() {
		log.Printf("app: using GitHub repository %s/%s", cfg.RepoOwner, cfg.RepoName)
		remote, err := gitrepo.NewGitHub(ctx, cfg.GitHubToken, cfg.RepoOwner, cfg.RepoName, cfg.GitHubAPIURL)
		if err != nil {
			return nil, err
		}
		return remote, nil
	}
	log.Printf("app: using local repository %s", cfg.LocalRepoPath)
	local, err := gitrepo.NewLocal(cfg.LocalRepoPath, "")
	if err != nil {
		return nil, err
	}
	return local, nil
}
