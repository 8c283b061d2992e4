package store

import (
	"encoding/binary"
	"math"
	"time"
)

// Record is the persisted form of an embedded fragment. Uniqueness is
// by Key only; (LawID, ArticleNumber) is indexed but not unique, so
// callers decide between insert and replace.
type Record struct {
	// Key is the system-assigned storage key, a ULID.
	Key            string
	LawID          string
	ArticleNumber  string
	Content        string
	Vector         []float32
	Metadata       map[string]any
	ModelName      string
	GenerationTime float64
	Category       string
	EffectiveDate  string
	InsertedAt     time.Time
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) < 4 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
