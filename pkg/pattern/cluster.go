package pattern

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/elonfeng/patternradar/pkg/ingest"
	"github.com/elonfeng/patternradar/pkg/post"
)

// ClusterOptions tunes the secondary split inside a category.
type ClusterOptions struct {
	MinRefineSize    int     // category groups smaller than this are never split
	MinClusterSize   int     // sub-groups smaller than this are pooled
	RefineSimilarity float64 // pairwise similarity needed to join two posts
}

// DefaultClusterOptions returns the standard refinement settings.
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{MinRefineSize: 5, MinClusterSize: 3, RefineSimilarity: 0.6}
}

// Baseline holds the mean metrics of a cluster's members.
type Baseline struct {
	Reach          float64 `json:"reach"`
	EngagementRate float64 `json:"engagement_rate"`
	SavesRate      float64 `json:"saves_rate"`
	CommentsRate   float64 `json:"comments_rate"`
}

// Member is one post inside a cluster.
type Member struct {
	Post             NormalizedPost `json:"-"`
	PostID           string         `json:"post_id"`
	PerformanceScore float64        `json:"performance_score"`
	KPIScore         float64        `json:"kpi_score"`
}

// Cluster is a peer group of posts compared against each other.
type Cluster struct {
	ID                  string        `json:"id"`
	Label               string        `json:"label"`
	Category            post.Category `json:"category"`
	Centroid            []float64     `json:"centroid"`
	Baseline            Baseline      `json:"baseline"`
	BaselinePerformance float64       `json:"baseline_performance"`
	Members             []Member      `json:"members"`
}

// Size returns the number of member posts.
func (c *Cluster) Size() int { return len(c.Members) }

// Contains reports whether postID is a member of c.
func (c *Cluster) Contains(postID string) bool {
	for _, m := range c.Members {
		if m.PostID == postID {
			return true
		}
	}
	return false
}

// BuildClusters partitions posts into clusters. Every post lands in exactly
// one cluster. Posts are first grouped by category; large groups are split
// further by hashtag overlap, posting-time bucket and title length.
func BuildClusters(posts []NormalizedPost, opts ClusterOptions) []Cluster {
	if opts.MinRefineSize <= 0 {
		opts = DefaultClusterOptions()
	}

	byCategory := make(map[post.Category][]NormalizedPost)
	for _, p := range posts {
		cat := post.NormalizeCategory(p.Post.Category)
		byCategory[cat] = append(byCategory[cat], p)
	}

	cats := make([]post.Category, 0, len(byCategory))
	for c := range byCategory {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	var clusters []Cluster
	for _, cat := range cats {
		group := byCategory[cat]
		sortPosts(group)

		var groups [][]NormalizedPost
		if len(group) >= opts.MinRefineSize {
			groups = refine(group, opts)
		}
		if len(groups) <= 1 {
			clusters = append(clusters, newCluster(string(cat), string(cat), cat, group))
			continue
		}
		for i, g := range groups {
			id := fmt.Sprintf("%s-%d", cat, i+1)
			clusters = append(clusters, newCluster(id, subLabel(cat, g), cat, g))
		}
	}
	return clusters
}

func sortPosts(ps []NormalizedPost) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i].Post, ps[j].Post
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt)
		}
		return a.ID < b.ID
	})
}

// refine splits a category group with union-find over pairwise similarity.
func refine(group []NormalizedPost, opts ClusterOptions) [][]NormalizedPost {
	n := len(group)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(x, y int) {
		px, py := find(x), find(y)
		if px != py {
			parent[px] = py
		}
	}

	tags := make([][]string, n)
	for i, p := range group {
		tags[i] = normalizedTags(p.Post.Hashtags)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if similarity(group[i].Post, group[j].Post, tags[i], tags[j]) >= opts.RefineSimilarity {
				union(i, j)
			}
		}
	}

	// Keep first-seen order of roots so output is deterministic.
	var roots []int
	byRoot := make(map[int][]int)
	for i := 0; i < n; i++ {
		r := find(i)
		if _, ok := byRoot[r]; !ok {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], i)
	}

	var (
		kept      [][]NormalizedPost
		remainder []NormalizedPost
	)
	for _, r := range roots {
		idx := byRoot[r]
		members := make([]NormalizedPost, 0, len(idx))
		for _, i := range idx {
			members = append(members, group[i])
		}
		if len(members) < opts.MinClusterSize {
			remainder = append(remainder, members...)
			continue
		}
		kept = append(kept, members)
	}

	if len(remainder) > 0 {
		if len(remainder) >= opts.MinClusterSize || len(kept) == 0 {
			kept = append(kept, remainder)
		} else {
			largest := 0
			for i := range kept {
				if len(kept[i]) > len(kept[largest]) {
					largest = i
				}
			}
			kept[largest] = append(kept[largest], remainder...)
		}
	}

	for _, g := range kept {
		sortPosts(g)
	}
	return kept
}

// similarity combines hashtag overlap, posting-time bucket and title length.
func similarity(a, b post.Post, tagsA, tagsB []string) float64 {
	s := 0.5 * jaccardSimilarity(tagsA, tagsB)
	if timeBucket(a.PublishedAt) == timeBucket(b.PublishedAt) {
		s += 0.3
	}
	if lengthBucket(a.Title) == lengthBucket(b.Title) {
		s += 0.2
	}
	return s
}

func timeBucket(t time.Time) string {
	switch h := t.UTC().Hour(); {
	case h < 6:
		return "night"
	case h < 12:
		return "morning"
	case h < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

func lengthBucket(title string) string {
	switch n := len([]rune(strings.TrimSpace(title))); {
	case n < 40:
		return "short"
	case n < 120:
		return "medium"
	default:
		return "long"
	}
}

func normalizedTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := ingest.NormalizeHashtag(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// jaccardSimilarity returns the Jaccard index of two token sets.
func jaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]bool)
	for _, t := range a {
		setA[t] = true
	}
	setB := make(map[string]bool)
	for _, t := range b {
		setB[t] = true
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}

	unionSize := len(setA) + len(setB) - intersection
	if unionSize == 0 {
		return 0
	}
	return float64(intersection) / float64(unionSize)
}

// subLabel names a refined cluster after its dominant hashtag and time bucket.
func subLabel(cat post.Category, members []NormalizedPost) string {
	counts := make(map[string]int)
	buckets := make(map[string]int)
	for _, m := range members {
		for _, t := range normalizedTags(m.Post.Hashtags) {
			counts[t]++
		}
		buckets[timeBucket(m.Post.PublishedAt)]++
	}

	parts := []string{string(cat)}
	if tag := topKey(counts); tag != "" {
		parts = append(parts, "#"+tag)
	}
	if b := topKey(buckets); b != "" {
		parts = append(parts, b)
	}
	return strings.Join(parts, " · ")
}

func topKey(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

func newCluster(id, label string, cat post.Category, posts []NormalizedPost) Cluster {
	c := Cluster{ID: id, Label: label, Category: cat}
	if len(posts) == 0 {
		return c
	}

	var (
		centroid [5]float64
		base     Baseline
		perf     float64
	)
	for _, p := range posts {
		v := p.vector()
		for i := range centroid {
			centroid[i] += v[i]
		}
		base.Reach += float64(p.Metrics.Reach)
		base.EngagementRate += p.Metrics.EngagementRate
		base.SavesRate += p.Metrics.SavesRate
		base.CommentsRate += p.Metrics.CommentsRate
		perf += float64(p.Metrics.TotalEngagement)

		c.Members = append(c.Members, Member{
			Post:             p,
			PostID:           p.Post.ID,
			PerformanceScore: float64(p.Metrics.TotalEngagement),
			KPIScore:         p.Metrics.KPIScore,
		})
	}

	n := float64(len(posts))
	c.Centroid = make([]float64, len(centroid))
	for i := range centroid {
		c.Centroid[i] = centroid[i] / n
	}
	c.Baseline = Baseline{
		Reach:          base.Reach / n,
		EngagementRate: base.EngagementRate / n,
		SavesRate:      base.SavesRate / n,
		CommentsRate:   base.CommentsRate / n,
	}
	c.BaselinePerformance = perf / n
	return c
}

// distance is the Euclidean distance between a post's rate vector and v.
func distance(p NormalizedPost, v []float64) float64 {
	pv := p.vector()
	var sum float64
	for i := range pv {
		if i >= len(v) {
			break
		}
		d := pv[i] - v[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
