package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"auto_note_article_publisher/generator"
	"auto_note_article_publisher/publisher"
	"auto_note_article_publisher/scheduler"
)

var scheduleAt string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Post the daily tech memo every day at a fixed time",
	Long: `Runs until interrupted. At each occurrence a draft is generated (offline
template unless an LLM is configured) and posted.

Example:
  note-poster schedule --at 09:00`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleAt, "at", "", "daily time HH:MM (default from config schedule.at)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	pub, err := newPublisher(newExecutor())
	if err != nil {
		return err
	}
	agent, err := newAgent()
	if err != nil {
		return err
	}
	at := cfg.Schedule.At
	if scheduleAt != "" {
		at = scheduleAt
	}
	daily, err := scheduler.ParseDaily(at, cfg.Schedule.Timezone, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	err = daily.Run(ctx, func(ctx context.Context, at time.Time) error {
		draft, err := agent.Generate(ctx, generator.Spec{Date: at})
		if err != nil {
			return err
		}
		_, err = pub.Post(ctx, publisher.Article{Title: draft.Title, Markdown: draft.Markdown})
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
