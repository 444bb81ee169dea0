package pattern

import (
	"math"
	"sort"

	"github.com/elonfeng/patternradar/pkg/post"
)

// Tag summarizes a post's combined quantitative and qualitative standing.
type Tag string

const (
	TagGold    Tag = "gold"
	TagGray    Tag = "gray"
	TagRed     Tag = "red"
	TagNeutral Tag = "neutral"
)

// AllTags lists tags in display order.
func AllTags() []Tag {
	return []Tag{TagGold, TagGray, TagRed, TagNeutral}
}

// SentimentLabel is the aggregate reading of a post's feedback.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNone     SentimentLabel = "none" // no feedback attached
)

// DefaultSentimentDeadZone keeps near-balanced feedback neutral.
const DefaultSentimentDeadZone = 0.1

// SentimentSummary aggregates the feedback entries tied to one post.
type SentimentSummary struct {
	Score    float64        `json:"score"`
	Label    SentimentLabel `json:"label"`
	Positive int            `json:"positive"`
	Negative int            `json:"negative"`
	Neutral  int            `json:"neutral"`
}

// AggregateSentiment folds weighted feedback into a score in [-1, 1].
func AggregateSentiment(entries []post.Feedback, deadZone float64) SentimentSummary {
	var (
		s                SentimentSummary
		pos, neg, totalW float64
	)
	for _, f := range entries {
		w := f.EffectiveWeight()
		switch f.Sentiment {
		case post.SentimentPositive:
			s.Positive++
			pos += w
		case post.SentimentNegative:
			s.Negative++
			neg += w
		case post.SentimentNeutral:
			s.Neutral++
		default:
			continue
		}
		totalW += w
	}

	if totalW == 0 {
		s.Label = SentimentNone
		return s
	}

	s.Score = (pos - neg) / totalW
	switch {
	case s.Score > deadZone:
		s.Label = SentimentPositive
	case s.Score < -deadZone:
		s.Label = SentimentNegative
	default:
		s.Label = SentimentNeutral
	}
	return s
}

// TagInput is everything the tagger looks at.
type TagInput struct {
	ClusterPerformanceDiff float64
	Sentiment              SentimentLabel
	BottomDecile           bool
}

// AssignTag applies the tagging rules in priority order; the first match
// wins, so every input gets exactly one tag.
func AssignTag(in TagInput, threshold float64) Tag {
	sig := Classify(in.ClusterPerformanceDiff, threshold)
	high, low := sig == Higher, sig == Lower
	negative := in.Sentiment == SentimentNegative

	switch {
	case high && !negative:
		return TagGold
	case low && (negative || in.BottomDecile):
		return TagRed
	case high && negative, low && in.Sentiment == SentimentPositive:
		return TagGray
	default:
		return TagNeutral
	}
}

// decileCutoff returns the nearest-rank 10th percentile of a cluster's
// KPI scores. ok is false for clusters too small to rank.
func decileCutoff(c *Cluster) (cutoff float64, ok bool) {
	if c == nil || c.Size() < 2 {
		return 0, false
	}
	scores := make([]float64, 0, c.Size())
	for _, m := range c.Members {
		scores = append(scores, m.KPIScore)
	}
	sort.Float64s(scores)
	rank := int(math.Ceil(0.1 * float64(len(scores))))
	if rank < 1 {
		rank = 1
	}
	return scores[rank-1], true
}

// InBottomDecile reports whether kpi falls in the bottom decile of c.
func InBottomDecile(kpi float64, c *Cluster) bool {
	cutoff, ok := decileCutoff(c)
	return ok && kpi <= cutoff
}
