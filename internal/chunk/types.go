package chunk

// Size defaults, mirroring spec.md's "Config knobs" section.
const (
	MaxWordsPerPassage    = 200
	MaxPassagesPerPage    = 30
	SiblingMergeThreshold = 0.80
	MinQuality            = 0.3
	MinPassageWords       = 5
	ContentCapChars       = 10000

	minInputChars = 200
	minInputWords = 10
)

// Passage is a bounded text span extracted from a page, the unit of embedding.
type Passage struct {
	ID        string
	Text      string
	WordCount int
	Position  int
	Quality   float64
	Embedding []float32
}

// Options configures Chunker behavior. Zero values fall back to the
// package defaults above.
type Options struct {
	MaxWordsPerPassage    int
	MaxPassagesPerPage    int
	SiblingMergeThreshold float64
	MinQuality            float64
	MinPassageWords       int
	ContentCapChars       int
}

func (o Options) withDefaults() Options {
	if o.MaxWordsPerPassage == 0 {
		o.MaxWordsPerPassage = MaxWordsPerPassage
	}
	if o.MaxPassagesPerPage == 0 {
		o.MaxPassagesPerPage = MaxPassagesPerPage
	}
	if o.SiblingMergeThreshold == 0 {
		o.SiblingMergeThreshold = SiblingMergeThreshold
	}
	if o.MinQuality == 0 {
		o.MinQuality = MinQuality
	}
	if o.MinPassageWords == 0 {
		o.MinPassageWords = MinPassageWords
	}
	if o.ContentCapChars == 0 {
		o.ContentCapChars = ContentCapChars
	}
	return o
}
