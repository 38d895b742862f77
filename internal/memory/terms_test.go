package memory

import "testing"

func TestSplitTermsLowercasesAndSplits(t *testing.T) {
	got := splitTerms("  Quick  Brown Fox ")
	want := []string{"quick", "brown", "fox"}
	if len(got) != len(want) {
		t.Fatalf("splitTerms() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitTerms()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTermOverlapCountsFractionOfHits(t *testing.T) {
	terms := []string{"fox", "lazy", "dog"}
	got := termOverlap(terms, "the quick brown fox jumps over the lazy dog")
	if got != 1.0 {
		t.Fatalf("termOverlap() = %v, want 1.0", got)
	}

	got = termOverlap(terms, "the quick brown fox")
	if got < 0.33 || got > 0.34 {
		t.Fatalf("termOverlap() = %v, want ~0.333", got)
	}
}

func TestTermOverlapEmptyTermsIsZero(t *testing.T) {
	if got := termOverlap(nil, "anything"); got != 0 {
		t.Fatalf("termOverlap(nil, ...) = %v, want 0", got)
	}
}

func TestRecencyDecayDecreasesWithAge(t *testing.T) {
	fresh := recencyDecay(0)
	old := recencyDecay(30)
	older := recencyDecay(300)

	if fresh != 1.0 {
		t.Fatalf("recencyDecay(0) = %v, want 1.0", fresh)
	}
	if old >= fresh {
		t.Fatalf("recencyDecay(30) = %v, should be less than recencyDecay(0) = %v", old, fresh)
	}
	if older >= old {
		t.Fatalf("recencyDecay(300) = %v, should be less than recencyDecay(30) = %v", older, old)
	}
}

func TestRecencyDecayClampsNegativeAge(t *testing.T) {
	if got := recencyDecay(-5); got != 1.0 {
		t.Fatalf("recencyDecay(-5) = %v, want 1.0", got)
	}
}
