package memory

import (
	"context"
	"testing"
)

func TestDeterministicEmbedderIsStableAndNormalized(t *testing.T) {
	e := DeterministicEmbedder{}
	v1, err := e.Embed(context.Background(), "the quick brown fox")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	v2, err := e.Embed(context.Background(), "the quick brown fox")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(v1) != embeddingDims {
		t.Fatalf("len(v1) = %d, want %d", len(v1), embeddingDims)
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("Embed() not deterministic at index %d: %v != %v", i, v1[i], v2[i])
		}
	}

	var sumSq float64
	for _, x := range v1 {
		sumSq += float64(x) * float64(x)
	}
	if sumSq < 0.99 || sumSq > 1.01 {
		t.Fatalf("||v1||^2 = %v, want ~1.0", sumSq)
	}
}

func TestDeterministicEmbedderDiffersForDifferentText(t *testing.T) {
	e := DeterministicEmbedder{}
	v1, _ := e.Embed(context.Background(), "alpha")
	v2, _ := e.Embed(context.Background(), "beta")
	same := true
	for i := range v1 {
		if v1[i] != v2[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("Embed() returned identical vectors for different text")
	}
}

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	v := []float32{0.6, 0.8}
	got := cosineSimilarity(v, v)
	if got < 0.999 || got > 1.001 {
		t.Fatalf("cosineSimilarity(v, v) = %v, want ~1.0", got)
	}
}

func TestCosineSimilarityOrthogonalVectorsIsZero(t *testing.T) {
	got := cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if got != 0 {
		t.Fatalf("cosineSimilarity() = %v, want 0", got)
	}
}

func TestCosineSimilarityMismatchedLengthsIsZero(t *testing.T) {
	got := cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	if got != 0 {
		t.Fatalf("cosineSimilarity() = %v, want 0 for mismatched lengths", got)
	}
}

func TestCosineSimilarityEmptyIsZero(t *testing.T) {
	if got := cosineSimilarity(nil, []float32{1}); got != 0 {
		t.Fatalf("cosineSimilarity(nil, ...) = %v, want 0", got)
	}
}
