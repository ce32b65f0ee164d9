// Package chunk splits extracted article text into quality-scored passages
// suitable for embedding.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Regex patterns for prose splitting, mirroring the teacher's markdown
// chunker's use of package-level patterns.
var (
	// sentenceBoundaryPattern matches the end of a sentence: a terminator
	// (., ! or ?) followed by one or more whitespace characters.
	sentenceBoundaryPattern = regexp.MustCompile(`([.!?])\s+`)

	// paragraphBreakPattern matches blank-line paragraph separators.
	paragraphBreakPattern = regexp.MustCompile(`\n\s*\n`)

	alphaPattern = regexp.MustCompile(`[A-Za-z]`)
)

// Chunker splits extracted text into Passages. It is a pure function with
// no I/O, matching spec.md §4.1's contract.
type Chunker struct {
	options Options
}

// New creates a Chunker with default options.
func New() *Chunker {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a Chunker with custom options; zero fields fall
// back to package defaults.
func NewWithOptions(opts Options) *Chunker {
	return &Chunker{options: opts.withDefaults()}
}

// Chunk splits text into quality-scored passages. Input shorter than the
// minimum length returns an empty (not error) result. Oversized text is
// truncated to ContentCapChars before chunking.
func (c *Chunker) Chunk(text string) []Passage {
	text = strings.TrimSpace(text)
	if len(text) > c.options.ContentCapChars {
		text = truncateRunes(text, c.options.ContentCapChars)
	}

	if len(text) < minInputChars || len(strings.Fields(text)) < minInputWords {
		return nil
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	rawPassages := c.aggregateSentences(sentences)

	passages := make([]Passage, 0, len(rawPassages))
	for _, raw := range rawPassages {
		words := strings.Fields(raw)
		if len(words) < c.options.MinPassageWords {
			continue
		}
		quality := scoreQuality(raw, words, sentenceEndsStrong(raw))
		if quality < c.options.MinQuality {
			continue
		}
		passages = append(passages, Passage{
			Text:      raw,
			WordCount: len(words),
			Quality:   quality,
		})
		if len(passages) >= c.options.MaxPassagesPerPage {
			break
		}
	}

	for i := range passages {
		passages[i].Position = i
		passages[i].ID = passageID(passages[i].Text, i)
	}

	return passages
}

// aggregateSentences greedily walks sentences, closing a passage once
// appending the next sentence would exceed MaxWordsPerPassage, or once the
// passage has reached SiblingMergeThreshold × MaxWordsPerPassage and the
// next sentence opens a new paragraph.
func (c *Chunker) aggregateSentences(sentences []sentence) []string {
	var passages []string
	var current strings.Builder
	currentWords := 0
	closeThreshold := int(float64(c.options.MaxWordsPerPassage) * c.options.SiblingMergeThreshold)

	flush := func() {
		if current.Len() > 0 {
			passages = append(passages, strings.TrimSpace(current.String()))
			current.Reset()
			currentWords = 0
		}
	}

	for _, s := range sentences {
		words := len(strings.Fields(s.text))

		if currentWords > 0 && currentWords+words > c.options.MaxWordsPerPassage {
			flush()
		} else if currentWords >= closeThreshold && s.startsParagraph {
			flush()
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s.text)
		currentWords += words
	}
	flush()

	return passages
}

type sentence struct {
	text            string
	startsParagraph bool
}

// splitSentences splits text at strong sentence boundaries, tracking which
// sentences open a new paragraph.
func splitSentences(text string) []sentence {
	paragraphs := paragraphBreakPattern.Split(text, -1)

	var sentences []sentence
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		parts := splitOnBoundary(para)
		for i, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			sentences = append(sentences, sentence{
				text:            p,
				startsParagraph: i == 0,
			})
		}
	}
	return sentences
}

// splitOnBoundary splits a paragraph into sentences at ".", "!", "?".
func splitOnBoundary(para string) []string {
	indices := sentenceBoundaryPattern.FindAllStringIndex(para, -1)
	if len(indices) == 0 {
		return []string{para}
	}

	var out []string
	start := 0
	for _, idx := range indices {
		out = append(out, para[start:idx[1]])
		start = idx[1]
	}
	if start < len(para) {
		out = append(out, para[start:])
	}
	return out
}

func sentenceEndsStrong(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	last := text[len(text)-1]
	return last == '.' || last == '!' || last == '?'
}

// scoreQuality is a bounded function of word count (peaking near 50-150
// words), alpha-character ratio, and sentence-boundary alignment.
func scoreQuality(text string, words []string, endsStrong bool) float64 {
	wordScore := wordCountScore(len(words))
	alphaScore := alphaRatio(text)

	boundaryScore := 0.7
	if endsStrong {
		boundaryScore = 1.0
	}

	quality := 0.5*wordScore + 0.3*alphaScore + 0.2*boundaryScore
	if quality < 0 {
		return 0
	}
	if quality > 1 {
		return 1
	}
	return quality
}

// wordCountScore peaks at 1.0 for passages in the 50-150 word range and
// falls off linearly outside it.
func wordCountScore(n int) float64 {
	switch {
	case n >= 50 && n <= 150:
		return 1.0
	case n < 50:
		return float64(n) / 50.0
	default: // n > 150
		over := float64(n - 150)
		score := 1.0 - over/200.0
		if score < 0 {
			return 0
		}
		return score
	}
}

func alphaRatio(text string) float64 {
	if text == "" {
		return 0
	}
	alpha := len(alphaPattern.FindAllString(text, -1))
	return float64(alpha) / float64(len(text))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// passageID derives a stable id from a page-local ordinal and the
// passage's content, mirroring the teacher's generateChunkID convention.
func passageID(text string, position int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", position, text)))
	return hex.EncodeToString(hash[:])[:16]
}
