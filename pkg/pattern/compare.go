package pattern

import (
	"math"
	"sort"
)

// DefaultThreshold is the ±10% dead-zone around a cluster baseline.
const DefaultThreshold = 0.10

const (
	epsilon = 1e-9
	// sentinelDiff is reported when the baseline is zero but the post is not.
	sentinelDiff = 1.0
)

// Significance classifies a metric's deviation from its baseline.
type Significance string

const (
	Higher  Significance = "higher"
	Lower   Significance = "lower"
	Neutral Significance = "neutral"
)

// Comparisons are signed fractional deltas against the cluster baseline.
type Comparisons struct {
	ReachDiff              float64 `json:"reach_diff"`
	EngagementRateDiff     float64 `json:"engagement_rate_diff"`
	SavesRateDiff          float64 `json:"saves_rate_diff"`
	CommentsRateDiff       float64 `json:"comments_rate_diff"`
	ClusterPerformanceDiff float64 `json:"cluster_performance_diff"`
}

// SignificanceSet holds one classification per compared metric.
type SignificanceSet struct {
	Reach              Significance `json:"reach"`
	EngagementRate     Significance `json:"engagement_rate"`
	SavesRate          Significance `json:"saves_rate"`
	CommentsRate       Significance `json:"comments_rate"`
	ClusterPerformance Significance `json:"cluster_performance"`
}

// RelativeDiff returns (value-baseline)/baseline. A zero baseline yields 0
// when the value is also zero and the sentinel +1.0 otherwise.
func RelativeDiff(value, baseline float64) float64 {
	if baseline <= epsilon {
		if value <= epsilon {
			return 0
		}
		return sentinelDiff
	}
	d := (value - baseline) / baseline
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}

// Classify maps a diff to higher, lower or neutral using threshold. A diff
// within epsilon of the threshold counts as reaching it, so rates derived
// from integer counters land on the boundary they represent.
func Classify(diff, threshold float64) Significance {
	switch {
	case diff >= threshold-epsilon:
		return Higher
	case diff <= -threshold+epsilon:
		return Lower
	default:
		return Neutral
	}
}

// Compare computes the comparisons of m against cluster c. Members of a
// single-post cluster always compare as zero.
func Compare(m Metrics, c *Cluster) Comparisons {
	if c == nil || c.Size() <= 1 {
		return Comparisons{}
	}
	return Comparisons{
		ReachDiff:              RelativeDiff(float64(m.Reach), c.Baseline.Reach),
		EngagementRateDiff:     RelativeDiff(m.EngagementRate, c.Baseline.EngagementRate),
		SavesRateDiff:          RelativeDiff(m.SavesRate, c.Baseline.SavesRate),
		CommentsRateDiff:       RelativeDiff(m.CommentsRate, c.Baseline.CommentsRate),
		ClusterPerformanceDiff: RelativeDiff(float64(m.TotalEngagement), c.BaselinePerformance),
	}
}

// Classifications derives significance for every comparison.
func (c Comparisons) Classifications(threshold float64) SignificanceSet {
	return SignificanceSet{
		Reach:              Classify(c.ReachDiff, threshold),
		EngagementRate:     Classify(c.EngagementRateDiff, threshold),
		SavesRate:          Classify(c.SavesRateDiff, threshold),
		CommentsRate:       Classify(c.CommentsRateDiff, threshold),
		ClusterPerformance: Classify(c.ClusterPerformanceDiff, threshold),
	}
}

// ClusterSummary is the cluster context attached to a signal.
type ClusterSummary struct {
	ID                  string        `json:"id"`
	Label               string        `json:"label"`
	Size                int           `json:"size"`
	CentroidDistance    float64       `json:"centroid_distance"`
	BaselinePerformance float64       `json:"baseline_performance"`
	SimilarPosts        []SimilarPost `json:"similar_posts"`
}

// SimilarPost is a nearby peer inside the same cluster.
type SimilarPost struct {
	PostID           string  `json:"post_id"`
	Title            string  `json:"title"`
	PerformanceScore float64 `json:"performance_score"`
	Distance         float64 `json:"distance"`
}

// Summarize builds the cluster summary for member p, listing up to limit
// nearest peers by rate-vector distance.
func Summarize(p NormalizedPost, c *Cluster, limit int) ClusterSummary {
	s := ClusterSummary{
		ID:                  c.ID,
		Label:               c.Label,
		Size:                c.Size(),
		CentroidDistance:    distance(p, c.Centroid),
		BaselinePerformance: c.BaselinePerformance,
		SimilarPosts:        []SimilarPost{},
	}

	pv := p.vector()
	for _, m := range c.Members {
		if m.PostID == p.Post.ID {
			continue
		}
		s.SimilarPosts = append(s.SimilarPosts, SimilarPost{
			PostID:           m.PostID,
			Title:            m.Post.Post.Title,
			PerformanceScore: m.PerformanceScore,
			Distance:         distance(m.Post, pv[:]),
		})
	}
	sort.SliceStable(s.SimilarPosts, func(i, j int) bool {
		if s.SimilarPosts[i].Distance != s.SimilarPosts[j].Distance {
			return s.SimilarPosts[i].Distance < s.SimilarPosts[j].Distance
		}
		return s.SimilarPosts[i].PostID < s.SimilarPosts[j].PostID
	})
	if limit >= 0 && len(s.SimilarPosts) > limit {
		s.SimilarPosts = s.SimilarPosts[:limit]
	}
	return s
}
