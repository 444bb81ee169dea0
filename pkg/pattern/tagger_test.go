package pattern

import (
	"testing"

	"github.com/elonfeng/patternradar/pkg/post"
)

func TestAssignTag(t *testing.T) {
	tests := []struct {
		name string
		in   TagInput
		want Tag
	}{
		{"high none", TagInput{ClusterPerformanceDiff: 0.5, Sentiment: SentimentNone}, TagGold},
		{"high neutral", TagInput{ClusterPerformanceDiff: 0.10, Sentiment: SentimentNeutral}, TagGold},
		{"high positive", TagInput{ClusterPerformanceDiff: 2.57, Sentiment: SentimentPositive}, TagGold},
		{"high negative", TagInput{ClusterPerformanceDiff: 0.5, Sentiment: SentimentNegative}, TagGray},
		{"low negative", TagInput{ClusterPerformanceDiff: -0.5, Sentiment: SentimentNegative}, TagRed},
		{"low bottom decile", TagInput{ClusterPerformanceDiff: -0.5, Sentiment: SentimentNone, BottomDecile: true}, TagRed},
		{"low positive", TagInput{ClusterPerformanceDiff: -0.5, Sentiment: SentimentPositive}, TagGray},
		{"low positive bottom decile", TagInput{ClusterPerformanceDiff: -0.5, Sentiment: SentimentPositive, BottomDecile: true}, TagRed},
		{"low none", TagInput{ClusterPerformanceDiff: -0.5, Sentiment: SentimentNone}, TagNeutral},
		{"float boundary high", TagInput{ClusterPerformanceDiff: 0.0999999999999998, Sentiment: SentimentNone}, TagGold},
		{"flat negative", TagInput{ClusterPerformanceDiff: 0.0999, Sentiment: SentimentNegative}, TagNeutral},
		{"flat bottom decile", TagInput{ClusterPerformanceDiff: 0, BottomDecile: true}, TagNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssignTag(tt.in, DefaultThreshold)
			if got != tt.want {
				t.Errorf("AssignTag(%+v) = %s, want %s", tt.in, got, tt.want)
			}
			// Same inputs, same tag.
			if again := AssignTag(tt.in, DefaultThreshold); again != got {
				t.Errorf("AssignTag not idempotent: %s then %s", got, again)
			}
		})
	}
}

func TestAggregateSentiment(t *testing.T) {
	fb := func(s post.Sentiment, w float64) post.Feedback {
		return post.Feedback{Sentiment: s, Weight: w}
	}

	tests := []struct {
		name    string
		entries []post.Feedback
		want    SentimentLabel
	}{
		{"none", nil, SentimentNone},
		{"positive", []post.Feedback{fb(post.SentimentPositive, 0)}, SentimentPositive},
		{"negative", []post.Feedback{fb(post.SentimentNegative, 1), fb(post.SentimentNeutral, 1)}, SentimentNegative},
		{"balanced", []post.Feedback{fb(post.SentimentPositive, 1), fb(post.SentimentNegative, 1)}, SentimentNeutral},
		// (1 - 0) / (1 + 9) = 0.1 sits inside the dead zone.
		{"dead zone", []post.Feedback{fb(post.SentimentPositive, 1), fb(post.SentimentNeutral, 9)}, SentimentNeutral},
		{"weighted", []post.Feedback{fb(post.SentimentPositive, 3), fb(post.SentimentNegative, 1)}, SentimentPositive},
		{"unknown ignored", []post.Feedback{fb("angry", 5)}, SentimentNone},
	}
	for _, tt := range tests {
		got := AggregateSentiment(tt.entries, DefaultSentimentDeadZone)
		if got.Label != tt.want {
			t.Errorf("%s: label = %s (score %v), want %s", tt.name, got.Label, got.Score, tt.want)
		}
		if got.Score < -1 || got.Score > 1 {
			t.Errorf("%s: score %v out of range", tt.name, got.Score)
		}
	}
}

func TestInBottomDecile(t *testing.T) {
	c := &Cluster{}
	for i, kpi := range []float64{5, 1, 9, 7, 3} {
		c.Members = append(c.Members, Member{PostID: string(rune('a' + i)), KPIScore: kpi})
	}

	if !InBottomDecile(1, c) {
		t.Error("lowest score should be in the bottom decile")
	}
	if InBottomDecile(3, c) {
		t.Error("second lowest of five should not be in the bottom decile")
	}

	solo := &Cluster{Members: []Member{{PostID: "x", KPIScore: 0}}}
	if InBottomDecile(0, solo) {
		t.Error("single-member clusters have no bottom decile")
	}
}
