package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/elonfeng/patternradar/internal/config"
	"github.com/elonfeng/patternradar/internal/logging"
	"github.com/elonfeng/patternradar/internal/scheduler"
	"github.com/elonfeng/patternradar/internal/store"
	"github.com/elonfeng/patternradar/pkg/achievement"
	"github.com/elonfeng/patternradar/pkg/alert"
	"github.com/elonfeng/patternradar/pkg/dashboard"
	"github.com/elonfeng/patternradar/pkg/ingest"
	"github.com/elonfeng/patternradar/pkg/mcpserver"
	"github.com/elonfeng/patternradar/pkg/pattern"
	"github.com/elonfeng/patternradar/pkg/post"
	"github.com/elonfeng/patternradar/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app holds the wired collaborators shared by every command.
type app struct {
	cfg *config.Config
	log *slog.Logger
	db  *store.SQLiteStore
	svc *dashboard.Service
}

func openApp(noAI bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.Log, os.Stderr)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	for _, err := range achievement.Lint(cfg.Achievements.Definitions()) {
		log.Warn("badge catalog entry", "err", err)
	}

	engine := buildEngine(cfg, log, noAI)
	svc := dashboard.NewService(db, engine, log,
		dashboard.WithAlerts(buildAlertManager(cfg)),
		dashboard.WithCatalog(cfg.Achievements.Definitions()),
	)
	return &app{cfg: cfg, log: log, db: db, svc: svc}, nil
}

func (a *app) Close() error { return a.db.Close() }

func buildEngine(cfg *config.Config, log *slog.Logger, noAI bool) *pattern.Engine {
	opts := cfg.EngineOptions()

	var narrator pattern.Narrator
	if !noAI && cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		narrator = pattern.NewLLMNarrator(
			cfg.LLM.Provider,
			cfg.LLM.Model,
			cfg.LLM.APIKey,
			cfg.LLM.BaseURL,
			opts.NarrateTimeout,
		)
		log.Info("llm narrator enabled", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model, "limit", opts.NarrateLimit)
	} else {
		opts.NarrateLimit = 0
	}
	return pattern.NewEngine(opts, narrator, log)
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func buildFeeds(cfg *config.Config) []scheduler.Feed {
	feeds := make([]scheduler.Feed, 0, len(cfg.Ingest.Feeds))
	for _, f := range cfg.Ingest.Feeds {
		name := f.Name
		if name == "" {
			name = f.URL
		}
		feeds = append(feeds, scheduler.Feed{
			Name:    name,
			UserID:  f.UserID,
			URL:     f.URL,
			Fetcher: ingest.NewFeedImporter(post.Category(f.Category)),
		})
	}
	return feeds
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runAnalyze(userID, windowArg string, jsonOutput, noAI bool) error {
	a, err := openApp(noAI)
	if err != nil {
		return err
	}
	defer a.Close()

	window, err := dashboard.ParseWindow(windowArg, a.cfg.Analysis.Window())
	if err != nil {
		return err
	}

	p, err := a.svc.Build(context.Background(), userID, window)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(p)
	}
	return printDashboard(p)
}

func printDashboard(p *dashboard.Payload) error {
	if p.Message != "" {
		fmt.Printf("%s (try: patternradar log-post --user %s ...)\n\n", p.Message, p.UserID)
	}

	if len(p.Signals) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PUBLISHED\tTAG\tKPI\tVS CLUSTER\tCATEGORY\tTITLE")
		for _, s := range p.Signals {
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%+.0f%%\t%s\t%s\n",
				s.PublishedAt.Format("2006-01-02"), s.Tag, s.KPIScore,
				s.Comparisons.ClusterPerformanceDiff*100, s.Category, truncate(s.Title, 48))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Println()

		for _, s := range p.Signals {
			if s.Narrative == nil {
				continue
			}
			fmt.Printf("%s: %s\n", s.PostID, s.Narrative.Summary)
			for _, next := range s.Narrative.NextActions {
				fmt.Printf("  → %s\n", next)
			}
		}
	}

	if len(p.TopHashtags) > 0 {
		fmt.Printf("top hashtags: %s\n", strings.Join(sortedTags(p.TopHashtags), " "))
	}

	fmt.Printf("learning: %s (%.0f%%, %d interactions, rag hit rate %.2f)\n\n",
		p.LearningPhase, p.ProgressPercent, p.TotalInteractions, p.RAGHitRate)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BADGE\tSTATUS\tPROGRESS")
	for _, b := range p.Achievements {
		fmt.Fprintf(w, "%s\t%s\t%.0f%%\n", b.Title, b.Status, b.Progress*100)
	}
	return w.Flush()
}

func sortedTags(weights map[string]float64) []string {
	tags := make([]string, 0, len(weights))
	for t := range weights {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if weights[tags[i]] != weights[tags[j]] {
			return weights[tags[i]] > weights[tags[j]]
		}
		return tags[i] < tags[j]
	})
	for i := range tags {
		tags[i] = "#" + tags[i]
	}
	return tags
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func runLogPost(cmd *cobra.Command, f postFlags) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	published := time.Now().UTC()
	if f.published != "" {
		published, err = time.Parse(time.RFC3339, f.published)
		if err != nil {
			return fmt.Errorf("invalid --published: %w", err)
		}
	}

	p := &post.Post{
		ID:            f.id,
		UserID:        f.userID,
		Category:      post.Category(f.category),
		Title:         f.title,
		Hashtags:      f.hashtags,
		PublishedAt:   published,
		Reach:         f.reach,
		Impressions:   f.impressions,
		Likes:         f.likes,
		Comments:      f.comments,
		Shares:        f.shares,
		Saves:         f.saves,
		FollowerCount: f.followers,
	}
	if cmd.Flags().Changed("watch-time") {
		p.WatchTimeSec = &f.watchTime
	}
	if cmd.Flags().Changed("link-clicks") {
		p.LinkClicks = &f.linkClicks
	}

	if err := a.svc.LogPost(context.Background(), p); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "logged post %s (%s, %d hashtags)\n", p.ID, p.Category, len(p.Hashtags))
	return nil
}

func runFeedback(userID, postID, sentiment, comment string, weight float64) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	f := &post.Feedback{
		UserID:    userID,
		PostID:    postID,
		Sentiment: post.Sentiment(sentiment),
		Comment:   comment,
		Weight:    weight,
	}
	if err := a.svc.AddFeedback(context.Background(), f); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "recorded %s feedback %s\n", f.Sentiment, f.ID)
	return nil
}

func runInteract(userID, key string, ragHit bool) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	state, counted, err := a.svc.RecordInteraction(context.Background(), userID, key, ragHit)
	if err != nil {
		return err
	}
	if !counted {
		fmt.Fprintln(os.Stderr, "interaction already recorded")
	}
	fmt.Printf("phase: %s (%.0f%%), interactions: %d, rag hit rate: %.2f\n",
		state.Phase, state.ProgressPercent, state.TotalInteractions, state.RAGHitRate)
	return nil
}

func runAction(userID, postID, action string, applied bool) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	l := &post.ActionLog{UserID: userID, PostID: postID, Action: action, Applied: applied}
	if err := a.svc.LogAction(context.Background(), l); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "logged action %s\n", l.ID)
	return nil
}

func runImportFeed(userID, url, category string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	posts, err := ingest.NewFeedImporter(post.Category(category)).FetchURL(ctx, userID, url)
	if err != nil {
		return err
	}
	res, err := a.svc.ImportPosts(ctx, posts)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "imported %d new posts (%d in feed)\n", res.Inserted, res.Fetched)
	return nil
}

func runServe(port int) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(a.svc, a.cfg.Analysis.Window(), port, a.log)
	return srv.ListenAndServe(ctx)
}

func runDaemon(port int) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(a.svc, buildFeeds(a.cfg),
		a.cfg.Ingest.ParseImportInterval(),
		a.cfg.Ingest.ParseRefreshInterval(),
		a.cfg.Analysis.Window(),
		a.log,
	)

	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("scheduler error", "err", err)
		}
	}()

	srv := server.New(a.svc, a.cfg.Analysis.Window(), port, a.log)
	err = srv.ListenAndServe(ctx)
	a.log.Info("shutting down")
	return err
}

func runMCP() error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	return mcpserver.NewServer(a.svc, a.cfg.Analysis.Window(), version).Run()
}
