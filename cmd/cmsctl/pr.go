package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"trailcms/api/internal/app"
	"trailcms/api/internal/config"
	"trailcms/api/internal/pullrequest"
)

var prCmd = &cobra.Command{
	Use:   "pr",
	Short: "Review content pull requests opened by the CMS",
}

// pullService connects to the GitHub content repository. Pull requests of the
// local development repository live in the API process and are not reachable
// from here.
func pullService(cmd *cobra.Command) (*pullrequest.Service, error) {
	cfg := config.Load()
	if !cfg.UseGitHub() {
		return nil, errors.New("pull request commands need GITHUB_TOKEN, GITHUB_REPO_OWNER and GITHUB_REPO_NAME")
	}
	remote, err := app.OpenRemote(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	return pullrequest.New(remote, cfg.TrunkBranch, cfg.CommitPrefix, nil), nil
}

func prNumber(arg string) (int, error) {
	number, err := strconv.Atoi(arg)
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("invalid pull request number %q", arg)
	}
	return number, nil
}

var prListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open CMS pull requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pulls, err := pullService(cmd)
		if err != nil {
			return err
		}
		items, err := pulls.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NUMBER\tTITLE\tBRANCH\tFILES")
		for _, pr := range items {
			fmt.Fprintf(w, "#%d\t%s\t%s\t%d\n", pr.Number, pr.Title, pr.Head.Ref, len(pr.Files))
		}
		return w.Flush()
	},
}

var prMergeCmd = &cobra.Command{
	Use:   "merge <number>",
	Short: "Merge a CMS pull request into the trunk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := prNumber(args[0])
		if err != nil {
			return err
		}
		pulls, err := pullService(cmd)
		if err != nil {
			return err
		}
		result, err := pulls.Merge(cmd.Context(), number)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "merged #%d (%s)\n", number, result.SHA)
		return nil
	},
}

var prCloseCmd = &cobra.Command{
	Use:   "close <number>",
	Short: "Discard a CMS pull request and delete its branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := prNumber(args[0])
		if err != nil {
			return err
		}
		pulls, err := pullService(cmd)
		if err != nil {
			return err
		}
		message, err := pulls.Delete(cmd.Context(), number)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), message)
		return nil
	},
}

func init() {
	prCmd.AddCommand(prListCmd, prMergeCmd, prCloseCmd)
	rootCmd.AddCommand(prCmd)
}
