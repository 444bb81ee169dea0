package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	version = "0.1.0"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "patternradar",
		Short:         "Find what makes your posts perform",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(analyzeCmd())
	root.AddCommand(logPostCmd())
	root.AddCommand(feedbackCmd())
	root.AddCommand(interactCmd())
	root.AddCommand(actionCmd())
	root.AddCommand(importFeedCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())
	root.AddCommand(mcpCmd())

	return root
}

func analyzeCmd() *cobra.Command {
	var (
		userID     string
		window     string
		jsonOutput bool
		noAI       bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Build the pattern dashboard for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(userID, window, jsonOutput, noAI)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&window, "window", "", "publish-time window, e.g. 30d, 2w, all (default: from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "skip AI summaries")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

type postFlags struct {
	userID      string
	id          string
	category    string
	title       string
	hashtags    []string
	published   string
	reach       int
	impressions int
	likes       int
	comments    int
	shares      int
	saves       int
	followers   int
	watchTime   float64
	linkClicks  int
}

func logPostCmd() *cobra.Command {
	var f postFlags

	cmd := &cobra.Command{
		Use:   "log-post",
		Short: "Log analytics for a post (re-logging replaces the counters)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogPost(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&f.id, "id", "", "post id (required)")
	cmd.Flags().StringVar(&f.category, "category", "feed", "feed, reel, story, carousel or other")
	cmd.Flags().StringVar(&f.title, "title", "", "caption or title; #hashtags are extracted when --hashtags is empty")
	cmd.Flags().StringSliceVar(&f.hashtags, "hashtags", nil, "hashtags (e.g. travel,food)")
	cmd.Flags().StringVar(&f.published, "published", "", "publish time, RFC3339 (default: now)")
	cmd.Flags().IntVar(&f.reach, "reach", 0, "accounts reached")
	cmd.Flags().IntVar(&f.impressions, "impressions", 0, "impressions")
	cmd.Flags().IntVar(&f.likes, "likes", 0, "likes")
	cmd.Flags().IntVar(&f.comments, "comments", 0, "comments")
	cmd.Flags().IntVar(&f.shares, "shares", 0, "shares")
	cmd.Flags().IntVar(&f.saves, "saves", 0, "saves")
	cmd.Flags().IntVar(&f.followers, "followers", 0, "follower count when logged")
	cmd.Flags().Float64Var(&f.watchTime, "watch-time", 0, "total watch time in seconds")
	cmd.Flags().IntVar(&f.linkClicks, "link-clicks", 0, "link clicks")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func feedbackCmd() *cobra.Command {
	var (
		userID    string
		postID    string
		sentiment string
		comment   string
		weight    float64
	)

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record audience feedback on a post",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeedback(userID, postID, sentiment, comment, weight)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&postID, "post", "", "post id")
	cmd.Flags().StringVar(&sentiment, "sentiment", "", "positive, negative or neutral (required)")
	cmd.Flags().StringVar(&comment, "comment", "", "free-text comment")
	cmd.Flags().Float64Var(&weight, "weight", 1.0, "feedback weight")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("sentiment")
	return cmd
}

func interactCmd() *cobra.Command {
	var (
		userID string
		key    string
		ragHit bool
	)

	cmd := &cobra.Command{
		Use:   "interact",
		Short: "Count one assistant interaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteract(userID, key, ragHit)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&key, "key", "", "idempotency key (default: generated)")
	cmd.Flags().BoolVar(&ragHit, "rag-hit", false, "retrieved context was used")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func actionCmd() *cobra.Command {
	var (
		userID  string
		postID  string
		action  string
		applied bool
	)

	cmd := &cobra.Command{
		Use:   "action",
		Short: "Log a suggested action and whether it was applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(userID, postID, action, applied)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&postID, "post", "", "post id the action relates to")
	cmd.Flags().StringVar(&action, "action", "", "action text (required)")
	cmd.Flags().BoolVar(&applied, "applied", false, "the action was applied")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func importFeedCmd() *cobra.Command {
	var (
		userID   string
		url      string
		category string
	)

	cmd := &cobra.Command{
		Use:   "import-feed",
		Short: "Import post metadata from an RSS/Atom feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportFeed(userID, url, category)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&url, "url", "", "feed URL (required)")
	cmd.Flags().StringVar(&category, "category", "other", "category assigned to imported posts")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with feed imports, dashboard refresh and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server over stdio",
		Long: `Start a Model Context Protocol (MCP) server over stdio so chat
assistants can read dashboards and count interactions.

Example assistant configuration:

  {
    "mcpServers": {
      "patternradar": {
        "command": "patternradar",
        "args": ["mcp"],
        "env": {
          "PATTERNRADAR_DB_PATH": "/path/to/patternradar.db"
        }
      }
    }
  }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP()
		},
	}
}
