package pattern

import (
	"sort"

	"github.com/elonfeng/patternradar/pkg/ingest"
)

// PatternSummary aggregates all signals sharing one tag.
type PatternSummary struct {
	Tag                   Tag      `json:"tag"`
	Count                 int      `json:"count"`
	PostIDs               []string `json:"post_ids"`
	AvgKPIScore           float64  `json:"avg_kpi_score"`
	AvgEngagementRate     float64  `json:"avg_engagement_rate"`
	AvgClusterPerformance float64  `json:"avg_cluster_performance_diff"`
	TopHashtags           []string `json:"top_hashtags"`
}

const summaryHashtags = 5

// SummarizeByTag groups signals by tag. Tags without signals are omitted.
func SummarizeByTag(signals []Signal) map[Tag]PatternSummary {
	grouped := make(map[Tag][]Signal)
	for _, s := range signals {
		grouped[s.Tag] = append(grouped[s.Tag], s)
	}

	out := make(map[Tag]PatternSummary, len(grouped))
	for tag, group := range grouped {
		sum := PatternSummary{Tag: tag, Count: len(group)}
		counts := make(map[string]int)
		for _, s := range group {
			sum.PostIDs = append(sum.PostIDs, s.PostID)
			sum.AvgKPIScore += s.KPIScore
			sum.AvgEngagementRate += s.EngagementRate
			sum.AvgClusterPerformance += s.Comparisons.ClusterPerformanceDiff
			for _, h := range uniqueTags(s.Hashtags) {
				counts[h]++
			}
		}
		n := float64(len(group))
		sum.AvgKPIScore /= n
		sum.AvgEngagementRate /= n
		sum.AvgClusterPerformance /= n
		sum.TopHashtags = rankCounts(counts, summaryHashtags)
		out[tag] = sum
	}
	return out
}

// TopHashtags weights each hashtag by the mean KPI score of the posts using
// it, scaled so the best hashtag has weight 1.
func TopHashtags(signals []Signal, limit int) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range signals {
		for _, h := range uniqueTags(s.Hashtags) {
			sums[h] += s.KPIScore
			counts[h]++
		}
	}

	type entry struct {
		tag  string
		mean float64
	}
	entries := make([]entry, 0, len(sums))
	var maxMean float64
	for h, total := range sums {
		mean := total / float64(counts[h])
		if mean > maxMean {
			maxMean = mean
		}
		entries = append(entries, entry{tag: h, mean: mean})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].mean != entries[j].mean {
			return entries[i].mean > entries[j].mean
		}
		return entries[i].tag < entries[j].tag
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	out := make(map[string]float64, len(entries))
	for _, e := range entries {
		w := 0.0
		if maxMean > 0 {
			w = e.mean / maxMean
		}
		out[e.tag] = w
	}
	return out
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		n := ingest.NormalizeHashtag(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func rankCounts(counts map[string]int, limit int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
