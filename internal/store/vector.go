package store

import (
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"

	lserrors "github.com/redwell/law-search/internal/errors"
)

// vectorIndex ranks stored vectors by cosine similarity using a pure
// Go HNSW graph. It is rebuilt from the documents table on open and
// never persisted separately.
type vectorIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]

	// storage key <-> internal graph key
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	dims int
}

func newVectorIndex() *vectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	return &vectorIndex{
		graph:  graph,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Add inserts or replaces one vector. Replacement is lazy: the old
// graph node is orphaned from the mappings rather than removed, which
// sidesteps graph corruption when deleting the last node.
func (v *vectorIndex) Add(id string, vec []float32) error {
	if len(vec) == 0 {
		return lserrors.New(lserrors.ErrCodeStorageInsert, "empty vector for "+id, nil)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dims == 0 {
		v.dims = len(vec)
	}
	if len(vec) != v.dims {
		return lserrors.New(lserrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("vector has %d dimensions, index has %d", len(vec), v.dims), nil)
	}

	if oldKey, exists := v.idMap[id]; exists {
		delete(v.keyMap, oldKey)
		delete(v.idMap, id)
	}

	key := v.nextKey
	v.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeVectorInPlace(normalized)

	v.graph.Add(hnsw.MakeNode(key, normalized))
	v.idMap[id] = key
	v.keyMap[key] = id
	return nil
}

// Remove drops ids from the index. Graph nodes are orphaned, not
// deleted, and simply stop appearing in results.
func (v *vectorIndex) Remove(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range ids {
		if key, exists := v.idMap[id]; exists {
			delete(v.keyMap, key)
			delete(v.idMap, id)
		}
	}
}

type vectorHit struct {
	ID       string
	Distance float32
	Score    float64
}

// Search returns up to k nearest stored vectors as similarity scores
// in [0,1], best first.
func (v *vectorIndex) Search(query []float32, k int) ([]vectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.graph.Len() == 0 {
		return nil, nil
	}
	if v.dims != 0 && len(query) != v.dims {
		return nil, lserrors.New(lserrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query has %d dimensions, index has %d", len(query), v.dims), nil)
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	// Orphaned nodes still occupy the graph, so overfetch and filter.
	orphans := v.graph.Len() - len(v.idMap)
	nodes := v.graph.Search(normalized, k+orphans)

	hits := make([]vectorHit, 0, k)
	for _, node := range nodes {
		id, exists := v.keyMap[node.Key]
		if !exists {
			continue
		}
		distance := v.graph.Distance(normalized, node.Value)
		hits = append(hits, vectorHit{
			ID:       id,
			Distance: distance,
			Score:    float64(1.0 - distance/2.0),
		})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

func (v *vectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

func normalizeVectorInPlace(vec []float32) {
	var sumSquares float64
	for _, val := range vec {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= inv
	}
}
