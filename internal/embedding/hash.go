package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// DefaultHashDim matches the width of common small sentence encoders.
const DefaultHashDim = 384

// HashProvider is a deterministic offline embedder. It hashes character
// unigrams and bigrams into a fixed number of buckets and L2-normalizes the
// counts, so texts that share characters land close together. It needs no
// model server, which makes it the fallback for offline runs and tests.
type HashProvider struct {
	dim int
}

// NewHashProvider returns a HashProvider with dim buckets. dim <= 0 selects
// DefaultHashDim.
func NewHashProvider(dim int) *HashProvider {
	if dim <= 0 {
		dim = DefaultHashDim
	}
	return &HashProvider{dim: dim}
}

// Dimensions returns the vector width.
func (h *HashProvider) Dimensions() int {
	return h.dim
}

func (h *HashProvider) ID() string {
	return "hash:" + strconv.Itoa(h.dim)
}

func (h *HashProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

func (h *HashProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *HashProvider) embed(text string) []float32 {
	vec := make([]float32, h.dim)

	var runes []rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			runes = append(runes, r)
		}
	}

	for i, r := range runes {
		vec[h.bucket(string(r))] += 1
		if i+1 < len(runes) {
			// Bigrams carry most of the signal for CJK food names.
			vec[h.bucket(string(runes[i:i+2]))] += 2
		}
	}
	return normalize(vec)
}

func (h *HashProvider) bucket(gram string) int {
	f := fnv.New64a()
	f.Write([]byte(gram))
	return int(f.Sum64() % uint64(h.dim))
}

// normalize scales vec to unit length in place. Zero vectors are returned
// unchanged.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	n := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

var _ Provider = (*HashProvider)(nil)
