package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"auto_note_article_publisher/publisher"
	"auto_note_article_publisher/source"
)

const githubTokenEnv = "GITHUB_TOKEN"

var (
	githubRepo string
	githubPath string
)

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "Post a Markdown file fetched from a GitHub repository",
	Long: `Fetches a file through the GitHub contents API and posts it. YAML front
matter supplies the title and the eyecatch image path.

Example:
  note-poster github --repo https://github.com/alice/notes --path articles/hello.md`,
	Args: cobra.NoArgs,
	RunE: runGitHub,
}

func init() {
	githubCmd.Flags().StringVar(&githubRepo, "repo", "", "repository URL, https://github.com/owner/repo (required)")
	githubCmd.Flags().StringVar(&githubPath, "path", "", "file path inside the repository (required)")
	_ = githubCmd.MarkFlagRequired("repo")
	_ = githubCmd.MarkFlagRequired("path")
}

func runGitHub(cmd *cobra.Command, args []string) error {
	exec := newExecutor()
	pub, err := newPublisher(exec)
	if err != nil {
		return err
	}
	gh := source.NewGitHub(exec, logger)
	gh.Token = os.Getenv(githubTokenEnv)

	ctx, cancel := signalContext()
	defer cancel()
	raw, err := gh.Fetch(ctx, githubRepo, githubPath)
	if err != nil {
		return err
	}
	doc, err := source.ParseDocument(raw)
	if err != nil {
		return err
	}
	logger.Info("fetched document", zap.String("title", doc.Title), zap.String("image", doc.Image))

	res, err := pub.Post(ctx, publisher.Article{
		Title:     doc.Title,
		Markdown:  doc.Body,
		ImagePath: doc.Image,
	})
	return report(cmd, res, err)
}
