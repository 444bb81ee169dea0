package pattern

import (
	"time"

	"github.com/elonfeng/patternradar/pkg/post"
)

// Metrics are the rate-based values derived from a post's raw counters.
// They are recomputed on every run and never persisted.
type Metrics struct {
	Reach                int     `json:"reach"`
	SavesRate            float64 `json:"saves_rate"`
	CommentsRate         float64 `json:"comments_rate"`
	LikesRate            float64 `json:"likes_rate"`
	SharesRate           float64 `json:"shares_rate"`
	EngagementRate       float64 `json:"engagement_rate"`
	ReachToFollowerRatio float64 `json:"reach_to_follower_ratio"`
	TotalEngagement      int     `json:"total_engagement"`
	VelocityScore        float64 `json:"velocity_score"`
	KPIScore             float64 `json:"kpi_score"`
}

// KPIWeights weight each interaction rate in the KPI score.
type KPIWeights struct {
	Saves    float64
	Comments float64
	Shares   float64
	Likes    float64
}

// DefaultKPIWeights favors saves, then comments and shares, over likes.
func DefaultKPIWeights() KPIWeights {
	return KPIWeights{Saves: 3, Comments: 2, Shares: 2, Likes: 1}
}

// NormalizedPost pairs a post with its derived metrics.
type NormalizedPost struct {
	Post    post.Post
	Metrics Metrics
}

// vector is the rate vector used for centroids and distances.
func (n NormalizedPost) vector() [5]float64 {
	m := n.Metrics
	return [5]float64{m.SavesRate, m.CommentsRate, m.LikesRate, m.SharesRate, m.EngagementRate}
}

// Normalize derives comparable metrics for each post. It never returns
// NaN or infinite values: any rate with a zero denominator is 0.
func Normalize(posts []post.Post, now time.Time, weights KPIWeights) []NormalizedPost {
	out := make([]NormalizedPost, 0, len(posts))
	for _, p := range posts {
		out = append(out, NormalizedPost{Post: p, Metrics: ComputeMetrics(p, now, weights)})
	}
	return out
}

// ComputeMetrics derives the metrics for a single post.
func ComputeMetrics(p post.Post, now time.Time, weights KPIWeights) Metrics {
	likes := nonNegative(p.Likes)
	comments := nonNegative(p.Comments)
	shares := nonNegative(p.Shares)
	saves := nonNegative(p.Saves)
	reach := nonNegative(p.Reach)

	total := likes + comments + shares + saves

	m := Metrics{
		Reach:                reach,
		SavesRate:            ratio(saves, reach),
		CommentsRate:         ratio(comments, reach),
		LikesRate:            ratio(likes, reach),
		SharesRate:           ratio(shares, reach),
		EngagementRate:       ratio(total, reach),
		ReachToFollowerRatio: ratio(reach, nonNegative(p.FollowerCount)),
		TotalEngagement:      total,
	}

	hours := 1.0
	if !p.PublishedAt.IsZero() {
		if h := now.Sub(p.PublishedAt).Hours(); h > 1 {
			hours = h
		}
	}
	m.VelocityScore = float64(total) / hours

	m.KPIScore = 100 * (weights.Saves*m.SavesRate +
		weights.Comments*m.CommentsRate +
		weights.Shares*m.SharesRate +
		weights.Likes*m.LikesRate)
	if m.KPIScore < 0 {
		m.KPIScore = 0
	}
	return m
}

func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
