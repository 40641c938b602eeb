// Package retrieval finds README passages that support a claim using
// lexical overlap between the claim and overlapping text chunks.
package retrieval

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200

	// FoundThreshold is the minimum score for a claim to count as supported.
	FoundThreshold = 0.5
)

// Chunk is a window of the source text.
type Chunk struct {
	ID      int
	Content string
}

// Match is a scored chunk.
type Match struct {
	Chunk
	Score float64
}

// Verdict is the outcome of checking one claim.
type Verdict struct {
	Claim    string
	Found    bool
	Score    float64
	Evidence string
}

// Split cuts text into windows of at most size runes, each starting
// size-overlap runes after the previous one. A window end is pulled back to
// the last whitespace in its second half so words are not split.
func Split(text string, size, overlap int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		if end < len(runes) {
			for i := end - 1; i > start+size/2; i-- {
				if unicode.IsSpace(runes[i]) {
					end = i
					break
				}
			}
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			chunks = append(chunks, Chunk{ID: len(chunks), Content: s})
		}
		if end >= len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// Index holds the chunks of one document.
type Index struct {
	chunks []Chunk
	terms  []map[string]struct{}
}

// NewIndex chunks content with the default window.
func NewIndex(content string) *Index {
	chunks := Split(content, DefaultChunkSize, DefaultOverlap)
	idx := &Index{chunks: chunks, terms: make([]map[string]struct{}, len(chunks))}
	for i, c := range chunks {
		set := make(map[string]struct{})
		for _, tok := range tokenize(c.Content) {
			set[tok] = struct{}{}
		}
		idx.terms[i] = set
	}
	return idx
}

// Len returns the number of chunks.
func (x *Index) Len() int { return len(x.chunks) }

// TopK returns the k best chunks for query, highest score first. Chunks
// sharing no term with the query are omitted.
func (x *Index) TopK(query string, k int) []Match {
	q := unique(tokenize(query))
	if len(q) == 0 || k <= 0 {
		return nil
	}
	var matches []Match
	for i, c := range x.chunks {
		hits := 0
		for _, tok := range q {
			if _, ok := x.terms[i][tok]; ok {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		matches = append(matches, Match{Chunk: c, Score: float64(hits) / float64(len(q))})
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// VerifyClaims checks every claim against content.
func VerifyClaims(content string, claims []string) []Verdict {
	idx := NewIndex(content)
	out := make([]Verdict, 0, len(claims))
	for _, claim := range claims {
		v := Verdict{Claim: claim}
		if best := idx.TopK(claim, 1); len(best) > 0 {
			v.Score = best[0].Score
			v.Evidence = best[0].Content
			v.Found = v.Score >= FoundThreshold
		}
		out = append(out, v)
	}
	return out
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"are": {}, "from": {}, "into": {}, "you": {}, "your": {}, "its": {},
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func unique(toks []string) []string {
	seen := make(map[string]struct{}, len(toks))
	out := toks[:0]
	for _, t := range toks {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
