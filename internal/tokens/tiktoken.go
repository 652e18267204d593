package tokens

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	tiktoken "github.com/pkoukk/tiktoken-go"
	"github.com/zeebo/xxh3"
)

const (
	// encodingCL100kBase is the cl100k_base encoding used by GPT-4 and
	// as an approximation for Anthropic and Google models.
	encodingCL100kBase = "cl100k_base"

	// encodingO200kBase is the o200k_base encoding used by the GPT-4o
	// family.
	encodingO200kBase = "o200k_base"

	// countCacheSize bounds the per-counter cache of text hashes to
	// token counts. Tool outputs repeat across pipeline runs, so the
	// cache hit rate is high in practice.
	countCacheSize = 4096
)

// encodingPrefixes maps model identifier prefixes to encoding names.
// Longest match wins.
var encodingPrefixes = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", encodingO200kBase},
	{"gpt-4.1", encodingO200kBase},
	{"o1", encodingO200kBase},
	{"o3", encodingO200kBase},
	{"gpt-4", encodingCL100kBase},
	{"gpt-3.5", encodingCL100kBase},
	{"claude", encodingCL100kBase},
	{"gemini", encodingCL100kBase},
}

// EncodingForModel resolves a model identifier to a tiktoken encoding name
// by longest prefix match. Models from vendors without a public tokenizer
// approximate with cl100k_base, which is also the fallback for unknown
// identifiers.
func EncodingForModel(model string) string {
	model = strings.ToLower(model)
	best := encodingCL100kBase
	bestLen := 0
	for _, entry := range encodingPrefixes {
		if len(entry.prefix) > bestLen && strings.HasPrefix(model, entry.prefix) {
			best = entry.encoding
			bestLen = len(entry.prefix)
		}
	}
	return best
}

// encoder is the subset of the tiktoken API the counter uses.
type encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// BPECounter is an exact Counter backed by a tiktoken BPE encoding, with a
// bounded cache of previously counted texts keyed by content hash.
type BPECounter struct {
	enc   encoder
	cache *lru.Cache[uint64, int]
}

var _ Counter = (*BPECounter)(nil)

// NewBPECounter loads the named encoding (e.g. "cl100k_base"). The first
// load of an encoding may fetch its rank data through tiktoken's loader.
func NewBPECounter(encodingName string) (*BPECounter, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding %q: %w", encodingName, err)
	}
	return newBPECounter(enc)
}

// NewBPECounterForModel loads the encoding appropriate for a model
// identifier, per EncodingForModel.
func NewBPECounterForModel(model string) (*BPECounter, error) {
	return NewBPECounter(EncodingForModel(model))
}

func newBPECounter(enc encoder) (*BPECounter, error) {
	cache, err := lru.New[uint64, int](countCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating token count cache: %w", err)
	}
	return &BPECounter{enc: enc, cache: cache}, nil
}

// Count implements Counter.
func (c *BPECounter) Count(text string) int {
	if text == "" {
		return 0
	}
	key := xxh3.HashString(text)
	if n, ok := c.cache.Get(key); ok {
		return n
	}
	n := len(c.enc.Encode(text, nil, nil))
	c.cache.Add(key, n)
	return n
}
