// Package search fuses independently scored retrieval channels into a
// single ranked list using weighted min-max normalized scores.
package search

import (
	"log/slog"
	"sort"
)

// Channel identifies one retrieval method contributing to fusion.
type Channel string

const (
	ChannelFulltext Channel = "fulltext"
	ChannelVector   Channel = "vector"
	// ChannelGraph is reserved. The weight slot exists but the channel
	// produces no candidates, so it always contributes zero.
	ChannelGraph Channel = "graph"
)

// Hit is one candidate from a single channel with its raw score.
type Hit struct {
	Key   string
	Score float64
}

// Weights maps channels to their fusion weight.
type Weights struct {
	Fulltext float64
	Vector   float64
	Graph    float64
}

// DefaultWeights returns the standard channel weighting.
func DefaultWeights() Weights {
	return Weights{Fulltext: 0.4, Vector: 0.4, Graph: 0.2}
}

// Result is one fused candidate with its combined score and the
// normalized per-channel scores that produced it.
type Result struct {
	Key      string
	Score    float64
	Channels map[Channel]float64
}

// Fuser combines channel result lists into one ranking.
type Fuser struct {
	weights Weights
	logger  *slog.Logger
}

func NewFuser(weights Weights, logger *slog.Logger) *Fuser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fuser{weights: weights, logger: logger}
}

// Fuse unions the fulltext and vector candidates by key, normalizes
// each channel's scores independently, and ranks by weighted sum. A
// candidate absent from a channel contributes zero for that channel.
// Ties keep first-seen order, fulltext candidates before vector ones.
// limit <= 0 returns the full fused list.
func (f *Fuser) Fuse(fulltext, vector []Hit, limit int) []Result {
	normalizeScores(fulltext)
	normalizeScores(vector)

	byKey := make(map[string]*Result, len(fulltext)+len(vector))
	var order []*Result

	getOrCreate := func(key string) *Result {
		if r, ok := byKey[key]; ok {
			return r
		}
		r := &Result{Key: key, Channels: make(map[Channel]float64, 2)}
		byKey[key] = r
		order = append(order, r)
		return r
	}

	for _, h := range fulltext {
		r := getOrCreate(h.Key)
		r.Channels[ChannelFulltext] = h.Score
		r.Score += h.Score * f.weights.Fulltext
	}
	for _, h := range vector {
		r := getOrCreate(h.Key)
		r.Channels[ChannelVector] = h.Score
		r.Score += h.Score * f.weights.Vector
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Score > order[j].Score
	})

	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	out := make([]Result, len(order))
	for i, r := range order {
		out[i] = *r
	}
	f.logger.Debug("fused channel results",
		"fulltext", len(fulltext), "vector", len(vector), "returned", len(out))
	return out
}

// normalizeScores min-max scales a channel's scores to [0,1] in place.
// When every hit shares one raw score there is no spread to scale, so
// the raw scores are kept as computed.
func normalizeScores(hits []Hit) {
	if len(hits) == 0 {
		return
	}
	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	if maxScore == minScore {
		return
	}
	spread := maxScore - minScore
	for i := range hits {
		hits[i].Score = (hits[i].Score - minScore) / spread
	}
}
