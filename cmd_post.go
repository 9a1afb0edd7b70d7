package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"auto_note_article_publisher/publisher"
)

var (
	postTitle string
	postMD    string
	postImage string
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post a local Markdown file as a draft",
	Long: `Renders the Markdown file to HTML, creates a draft, optionally uploads
an eyecatch image and saves the draft. Prints the article URL on success.

Example:
  note-poster post --title "Hello" --md article.md --image eyecatch.png`,
	Args: cobra.NoArgs,
	RunE: runPost,
}

func init() {
	postCmd.Flags().StringVar(&postTitle, "title", "", "article title (required)")
	postCmd.Flags().StringVar(&postMD, "md", "", "path to the Markdown file (required)")
	postCmd.Flags().StringVar(&postImage, "image", "", "path to the eyecatch image")
	_ = postCmd.MarkFlagRequired("title")
	_ = postCmd.MarkFlagRequired("md")
}

func runPost(cmd *cobra.Command, args []string) error {
	pub, err := newPublisher(newExecutor())
	if err != nil {
		return err
	}
	md, err := os.ReadFile(postMD)
	if err != nil {
		return fmt.Errorf("read markdown: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	res, err := pub.Post(ctx, publisher.Article{
		Title:     postTitle,
		Markdown:  string(md),
		ImagePath: postImage,
	})
	return report(cmd, res, err)
}
