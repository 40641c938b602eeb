package retrieval

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitShortText(t *testing.T) {
	chunks := Split("  hello world  ", 1000, 200)
	want := []Chunk{{ID: 0, Content: "hello world"}}
	if diff := cmp.Diff(want, chunks); diff != "" {
		t.Errorf("Split mismatch (-want +got):\n%s", diff)
	}
	if got := Split("   ", 1000, 200); got != nil {
		t.Errorf("Split(blank) = %v, want nil", got)
	}
}

func TestSplitOverlapAndCoverage(t *testing.T) {
	words := make([]string, 600)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	chunks := Split(text, 1000, 200)
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want at least 3", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c.Content)); n > 1000 {
			t.Errorf("chunk %d has %d runes", i, n)
		}
		if c.ID != i {
			t.Errorf("chunk %d has ID %d", i, c.ID)
		}
		if strings.HasPrefix(c.Content, "ord") || strings.HasSuffix(c.Content, "wor") {
			t.Errorf("chunk %d splits a word", i)
		}
	}
	last := chunks[len(chunks)-1].Content
	if !strings.HasSuffix(text, last) {
		t.Error("last chunk should end at the end of the text")
	}
}

func TestSplitWithoutWhitespace(t *testing.T) {
	text := strings.Repeat("a", 2500)
	chunks := Split(text, 1000, 200)
	// windows start at 0, 800, 1600
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(chunks[2].Content) != 900 {
		t.Errorf("last chunk len = %d, want 900", len(chunks[2].Content))
	}
}

func TestTopKOrdersByScore(t *testing.T) {
	doc := strings.Repeat("filler text about nothing in particular. ", 30) +
		"\n\nInstallation: run pip install mypackage to install the package.\n\n" +
		strings.Repeat("unrelated prose about weather patterns. ", 30)
	idx := NewIndex(doc)
	if idx.Len() < 2 {
		t.Fatalf("expected several chunks, got %d", idx.Len())
	}

	matches := idx.TopK("package installation availability", 2)
	if len(matches) == 0 {
		t.Fatal("expected a match")
	}
	if !strings.Contains(matches[0].Content, "pip install") {
		t.Errorf("best match does not contain the installation text")
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not sorted: %v", matches)
		}
	}
	if got := idx.TopK("zzz qqq", 3); len(got) != 0 {
		t.Errorf("TopK with no overlap = %v, want none", got)
	}
	if got := idx.TopK("a b", 3); got != nil {
		t.Errorf("TopK with only short tokens = %v, want nil", got)
	}
}

func TestVerifyClaims(t *testing.T) {
	readme := "# Tool\n\nA Python implementation with fast performance optimization and caching.\n"
	got := VerifyClaims(readme, []string{
		"Python implementation",
		"performance optimization claims",
		"compatibility and support claims",
	})
	if len(got) != 3 {
		t.Fatalf("got %d verdicts", len(got))
	}
	if !got[0].Found || got[0].Score != 1 {
		t.Errorf("verdict[0] = %+v, want found with score 1", got[0])
	}
	if !got[1].Found {
		t.Errorf("verdict[1] = %+v, want found", got[1])
	}
	if got[2].Found || got[2].Evidence != "" {
		t.Errorf("verdict[2] = %+v, want not found", got[2])
	}
}

func TestVerifyClaimsEmptyContent(t *testing.T) {
	got := VerifyClaims("", []string{"anything here"})
	if len(got) != 1 || got[0].Found {
		t.Errorf("VerifyClaims on empty content = %+v", got)
	}
}
