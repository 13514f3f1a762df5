package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasad-erp/hasad/pkg/config"
)

// bagOfWords embeds text as normalized hashed word counts, so texts sharing
// words are similar
func bagOfWords(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 64)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,:;!?")))
		v[h.Sum32()%64]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0], norm = 1, 1
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v, nil
}

var _ chromem.EmbeddingFunc = bagOfWords

func TestIndex(t *testing.T) {
	ctx := context.Background()
	x, err := NewIndex(bagOfWords)
	require.NoError(t, err)

	hits, err := x.Query(ctx, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, x.Upsert(ctx, "wheat", "wheat irrigation every week"))
	require.NoError(t, x.Upsert(ctx, "dates", "date palm pollination in spring"))
	require.NoError(t, x.Upsert(ctx, "olive", "olive harvest in november"))
	assert.Equal(t, 3, x.Len())

	hits, err = x.Query(ctx, "wheat irrigation", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "wheat", hits[0].ID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)

	// Upserting replaces the text
	require.NoError(t, x.Upsert(ctx, "olive", "wheat irrigation every week"))
	assert.Equal(t, 3, x.Len())

	require.NoError(t, x.Remove(ctx, "wheat"))
	hits, err = x.Query(ctx, "wheat irrigation", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "olive", hits[0].ID)
}

func TestEmbeddingFunc(t *testing.T) {
	cfg := config.Default()

	ef, err := EmbeddingFunc(cfg)
	require.NoError(t, err)
	assert.Nil(t, ef)

	cfg.EmbeddingProvider = "ollama"
	ef, err = EmbeddingFunc(cfg)
	require.NoError(t, err)
	assert.NotNil(t, ef)

	cfg.EmbeddingProvider = "openai"
	t.Setenv("OPENAI_API_KEY", "")
	_, err = EmbeddingFunc(cfg)
	assert.Error(t, err)

	cfg.EmbeddingURL = "http://localhost:8080/v1"
	ef, err = EmbeddingFunc(cfg)
	require.NoError(t, err)
	assert.NotNil(t, ef)

	cfg.EmbeddingProvider = "bert"
	_, err = EmbeddingFunc(cfg)
	assert.Error(t, err)
}
