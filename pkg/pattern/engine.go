package pattern

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/elonfeng/patternradar/pkg/post"
)

// Options tunes the engine.
type Options struct {
	Threshold         float64
	SentimentDeadZone float64
	SimilarPosts      int
	TopHashtags       int
	KPIWeights        KPIWeights
	Cluster           ClusterOptions
	NarrateLimit      int
	NarrateTimeout    time.Duration
}

// DefaultOptions returns the standard engine settings.
func DefaultOptions() Options {
	return Options{
		Threshold:         DefaultThreshold,
		SentimentDeadZone: DefaultSentimentDeadZone,
		SimilarPosts:      3,
		TopHashtags:       10,
		KPIWeights:        DefaultKPIWeights(),
		Cluster:           DefaultClusterOptions(),
		NarrateLimit:      5,
		NarrateTimeout:    15 * time.Second,
	}
}

// Engine computes pattern signals for one user's posts.
type Engine struct {
	opts     Options
	narrator Narrator // optional, nil = disabled
	log      *slog.Logger
}

// NewEngine creates a new pattern engine. Unset threshold, top-hashtag count,
// KPI weights, cluster options and narrate timeout fall back to their
// defaults. SimilarPosts and NarrateLimit keep zero, which disables them. A
// negative SimilarPosts is replaced by its default.
func NewEngine(opts Options, narrator Narrator, log *slog.Logger) *Engine {
	def := DefaultOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	if opts.SentimentDeadZone < 0 {
		opts.SentimentDeadZone = def.SentimentDeadZone
	}
	if opts.SimilarPosts < 0 {
		opts.SimilarPosts = def.SimilarPosts
	}
	if opts.TopHashtags <= 0 {
		opts.TopHashtags = def.TopHashtags
	}
	if opts.KPIWeights == (KPIWeights{}) {
		opts.KPIWeights = def.KPIWeights
	}
	if opts.Cluster.MinRefineSize <= 0 {
		opts.Cluster = def.Cluster
	}
	if opts.NarrateTimeout <= 0 {
		opts.NarrateTimeout = def.NarrateTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{opts: opts, narrator: narrator, log: log}
}

// Options returns the effective engine settings.
func (e *Engine) Options() Options { return e.opts }

// Input is an in-memory snapshot of one user's data.
type Input struct {
	Posts    []post.Post
	Feedback []post.Feedback
	Now      time.Time
}

// Signal is the per-post comparison and tag bundle.
type Signal struct {
	PostID         string           `json:"post_id"`
	Category       post.Category    `json:"category"`
	Title          string           `json:"title"`
	Hashtags       []string         `json:"hashtags"`
	PublishedAt    time.Time        `json:"published_at"`
	Metrics        Metrics          `json:"metrics"`
	Comparisons    Comparisons      `json:"comparisons"`
	Significance   SignificanceSet  `json:"significance"`
	Cluster        ClusterSummary   `json:"cluster"`
	Tag            Tag              `json:"tag"`
	KPIScore       float64          `json:"kpi_score"`
	EngagementRate float64          `json:"engagement_rate"`
	Sentiment      SentimentSummary `json:"sentiment"`
	Narrative      *Narrative       `json:"ai_summary,omitempty"`
}

// Analysis is the result of one engine run.
type Analysis struct {
	Signals        []Signal               `json:"signals"`
	Clusters       []Cluster              `json:"clusters"`
	SummariesByTag map[Tag]PatternSummary `json:"summaries_by_tag"`
	TopHashtags    map[string]float64     `json:"top_hashtags"`
	Excluded       []error                `json:"-"`
}

// Empty returns a well-formed analysis with no signals.
func Empty() *Analysis {
	return &Analysis{
		Signals:        []Signal{},
		Clusters:       []Cluster{},
		SummariesByTag: map[Tag]PatternSummary{},
		TopHashtags:    map[string]float64{},
	}
}

// Analyze runs normalize → cluster → compare → tag over the snapshot, then
// optionally narrates the strongest signals. A user with no posts gets an
// empty analysis, not an error.
func (e *Engine) Analyze(ctx context.Context, in Input) *Analysis {
	signals, clusters, excluded := e.run(in)
	if len(signals) == 0 && len(clusters) == 0 {
		a := Empty()
		a.Excluded = excluded
		return a
	}

	e.narrate(ctx, signals)

	return &Analysis{
		Signals:        signals,
		Clusters:       clusters,
		SummariesByTag: SummarizeByTag(signals),
		TopHashtags:    TopHashtags(signals, e.opts.TopHashtags),
		Excluded:       excluded,
	}
}

// Signals tags every post in the snapshot without narrating, newest first.
func (e *Engine) Signals(in Input) []Signal {
	signals, _, _ := e.run(in)
	return signals
}

func (e *Engine) run(in Input) ([]Signal, []Cluster, []error) {
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	posts, excluded := e.validPosts(in.Posts)
	if len(posts) == 0 {
		return []Signal{}, nil, excluded
	}

	feedbackByPost := make(map[string][]post.Feedback)
	for _, f := range in.Feedback {
		if f.PostID != "" {
			feedbackByPost[f.PostID] = append(feedbackByPost[f.PostID], f)
		}
	}

	normalized := Normalize(posts, in.Now, e.opts.KPIWeights)
	clusters := BuildClusters(normalized, e.opts.Cluster)

	clusterOf := make(map[string]*Cluster, len(normalized))
	for i := range clusters {
		for _, m := range clusters[i].Members {
			clusterOf[m.PostID] = &clusters[i]
		}
	}

	signals := make([]Signal, 0, len(normalized))
	for _, np := range normalized {
		c, ok := clusterOf[np.Post.ID]
		if !ok || !c.Contains(np.Post.ID) {
			err := &IntegrityError{Entity: "post", ID: np.Post.ID, Reason: "no cluster contains post"}
			e.log.Warn("excluding signal", "err", err)
			excluded = append(excluded, err)
			continue
		}
		signals = append(signals, e.signal(np, c, feedbackByPost[np.Post.ID]))
	}

	sort.SliceStable(signals, func(i, j int) bool {
		if !signals[i].PublishedAt.Equal(signals[j].PublishedAt) {
			return signals[i].PublishedAt.After(signals[j].PublishedAt)
		}
		return signals[i].PostID < signals[j].PostID
	})
	return signals, clusters, excluded
}

func (e *Engine) signal(np NormalizedPost, c *Cluster, feedback []post.Feedback) Signal {
	cmp := Compare(np.Metrics, c)
	sentiment := AggregateSentiment(feedback, e.opts.SentimentDeadZone)

	hashtags := np.Post.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}

	return Signal{
		PostID:       np.Post.ID,
		Category:     c.Category,
		Title:        np.Post.Title,
		Hashtags:     hashtags,
		PublishedAt:  np.Post.PublishedAt,
		Metrics:      np.Metrics,
		Comparisons:  cmp,
		Significance: cmp.Classifications(e.opts.Threshold),
		Cluster:      Summarize(np, c, e.opts.SimilarPosts),
		Tag: AssignTag(TagInput{
			ClusterPerformanceDiff: cmp.ClusterPerformanceDiff,
			Sentiment:              sentiment.Label,
			BottomDecile:           InBottomDecile(np.Metrics.KPIScore, c),
		}, e.opts.Threshold),
		KPIScore:       np.Metrics.KPIScore,
		EngagementRate: np.Metrics.EngagementRate,
		Sentiment:      sentiment,
	}
}

// validPosts drops posts without an id and duplicate ids.
func (e *Engine) validPosts(posts []post.Post) ([]post.Post, []error) {
	var (
		out      []post.Post
		excluded []error
	)
	seen := make(map[string]bool, len(posts))
	for _, p := range posts {
		var reason string
		switch {
		case p.ID == "":
			reason = "missing id"
		case seen[p.ID]:
			reason = "duplicate id"
		}
		if reason != "" {
			err := &IntegrityError{Entity: "post", ID: p.ID, Reason: reason}
			e.log.Warn("excluding post", "err", err)
			excluded = append(excluded, err)
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, excluded
}

// narrate attaches narratives to the strongest non-neutral signals. Each
// call gets its own timeout; failures leave the narrative empty.
func (e *Engine) narrate(ctx context.Context, signals []Signal) {
	if e.narrator == nil || e.opts.NarrateLimit <= 0 {
		return
	}

	var idx []int
	for i := range signals {
		if signals[i].Tag != TagNeutral {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		da := math.Abs(signals[idx[a]].Comparisons.ClusterPerformanceDiff)
		db := math.Abs(signals[idx[b]].Comparisons.ClusterPerformanceDiff)
		return da > db
	})
	if len(idx) > e.opts.NarrateLimit {
		idx = idx[:e.opts.NarrateLimit]
	}

	for _, i := range idx {
		if ctx.Err() != nil {
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, e.opts.NarrateTimeout)
		n, err := e.narrator.Narrate(callCtx, signals[i])
		cancel()
		if err != nil {
			cerr := &CollaboratorError{Op: "narrate", Err: err}
			e.log.Warn("no ai summary available", "post_id", signals[i].PostID, "timeout", cerr.Timeout(), "err", cerr)
			continue
		}
		signals[i].Narrative = n
	}
}
