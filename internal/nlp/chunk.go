// Package nlp implements text chunking and embedding blocks: splitting
// long documents into model-sized windows and delegating to a pluggable
// embedder.
package nlp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// ChunkStrategy selects how a text is split into units before packing.
type ChunkStrategy string

const (
	ChunkTokens           ChunkStrategy = "tokens"
	ChunkSentences        ChunkStrategy = "sentences"
	ChunkParagraphs       ChunkStrategy = "paragraphs"
	ChunkMarkdownHeadings ChunkStrategy = "markdown_headings"
)

// NamedText pairs a source label with its text, the unit chunk_texts
// operates over.
type NamedText struct {
	Source string
	Text   string
}

// Chunk is one output window of a chunked text.
type Chunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
	Tokens *int   `json:"tokens,omitempty"`
}

// ChunkConfig configures ChunkTexts.
type ChunkConfig struct {
	Strategy            ChunkStrategy `json:"strategy"`
	MaxTokens           int           `json:"max_tokens"`
	OverlapTokens       int           `json:"overlap_tokens"`
	NormalizeWhitespace bool          `json:"normalize_whitespace"`
}

// NewChunkConfig returns the spec defaults: tokens strategy, max_tokens
// 400, overlap_tokens 40, whitespace normalized.
func NewChunkConfig() ChunkConfig {
	return ChunkConfig{Strategy: ChunkTokens, MaxTokens: 400, OverlapTokens: 40, NormalizeWhitespace: true}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// ChunkTexts splits each input text into model-sized chunks. The tokens
// strategy requires a BPE tokenizer and fails with DEPENDENCY_NOT_FOUND
// if cl100k_base can't be loaded; the remaining strategies split into
// sentence/paragraph/heading units and pack them into character-bounded
// chunks (chars approximated as 4x tokens).
func ChunkTexts(texts []NamedText, cfg ChunkConfig) ([]Chunk, error) {
	if len(texts) == 0 {
		return nil, blockerr.NewInputError("texts", "non-empty list of {source, text}", texts)
	}
	switch cfg.Strategy {
	case ChunkTokens, ChunkSentences, ChunkParagraphs, ChunkMarkdownHeadings:
	default:
		return nil, blockerr.NewInputError("strategy", "one of tokens, sentences, paragraphs, markdown_headings", cfg.Strategy)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 400
	}

	var out []Chunk
	for idx, nt := range texts {
		text := nt.Text
		if cfg.NormalizeWhitespace {
			text = normalizeSpaces(text)
		}
		if text == "" {
			continue
		}

		var chunks []Chunk
		var err error
		if cfg.Strategy == ChunkTokens {
			chunks, err = chunkByTokens(idx, nt.Source, text, maxTokens, cfg.OverlapTokens)
			if err != nil {
				return nil, err
			}
		} else {
			units := splitIntoUnits(cfg.Strategy, text)
			chunks = packUnits(idx, nt.Source, units, maxTokens*4)
		}
		out = append(out, chunks...)
	}
	return out, nil
}

func normalizeSpaces(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func chunkByTokens(idx int, source, text string, maxTokens, overlapTokens int) ([]Chunk, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, blockerr.NewDependencyError("tiktoken cl100k_base encoding", "install/vendor a tiktoken-go encoding data file").WithDetails(map[string]any{"cause": err.Error()})
	}
	toks := enc.Encode(text, nil, nil)

	step := maxTokens - overlapTokens
	if step < 1 {
		step = 1
	}

	var chunks []Chunk
	c := 0
	for pos := 0; pos < len(toks); pos += step {
		end := pos + maxTokens
		if end > len(toks) {
			end = len(toks)
		}
		window := toks[pos:end]
		chunkText := enc.Decode(window)
		n := len(window)
		chunks = append(chunks, Chunk{
			ID:     fmt.Sprintf("%d-%d", idx, c),
			Source: source,
			Start:  0,
			End:    len(chunkText),
			Text:   chunkText,
			Tokens: &n,
		})
		c++
	}
	return chunks, nil
}

func splitIntoUnits(strategy ChunkStrategy, text string) []string {
	switch strategy {
	case ChunkSentences:
		return splitSentences(text)
	case ChunkParagraphs:
		return splitParagraphs(text)
	default:
		return splitMarkdownHeadings(text)
	}
}

var sentenceTerminators = map[rune]bool{'.': true, '!': true, '?': true, '。': true, '！': true, '？': true}

func splitSentences(text string) []string {
	var parts []string
	var buf strings.Builder
	for _, ch := range text {
		buf.WriteRune(ch)
		if sentenceTerminators[ch] {
			if s := strings.TrimSpace(buf.String()); s != "" {
				parts = append(parts, s)
			}
			buf.Reset()
		}
	}
	if rest := strings.TrimSpace(buf.String()); rest != "" {
		parts = append(parts, rest)
	}

	merged := make([]string, 0, len(parts))
	for _, s := range parts {
		if len(merged) > 0 && len(s) < 12 {
			merged[len(merged)-1] = strings.TrimSpace(merged[len(merged)-1] + " " + s)
		} else {
			merged = append(merged, s)
		}
	}
	return merged
}

var blankLineRe = regexp.MustCompile(`\n\s*\n+`)

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range blankLineRe.Split(text, -1) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
	}
	return out
}

func splitMarkdownHeadings(text string) []string {
	lines := strings.Split(text, "\n")
	var chunks []string
	var buf []string
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "#") && len(buf) > 0 {
			if v := strings.TrimSpace(strings.Join(buf, "\n")); v != "" {
				chunks = append(chunks, v)
			}
			buf = []string{line}
		} else {
			buf = append(buf, line)
		}
	}
	if len(buf) > 0 {
		if v := strings.TrimSpace(strings.Join(buf, "\n")); v != "" {
			chunks = append(chunks, v)
		}
	}
	if len(chunks) == 0 {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
	}
	return chunks
}

func packUnits(idx int, source string, units []string, maxChars int) []Chunk {
	if maxChars <= 0 {
		maxChars = 1600
	}
	var chunks []Chunk
	var buf []string
	curLen := 0
	c := 0

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, " "))
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{ID: fmt.Sprintf("%d-%d", idx, c), Source: source, Start: 0, End: len(text), Text: text})
		c++
	}

	for _, u := range units {
		ul := len(u)
		if len(buf) > 0 && curLen+1+ul > maxChars {
			flush()
			buf = []string{u}
			curLen = ul
			continue
		}
		if len(buf) > 0 {
			curLen += 1 + ul
		} else {
			curLen = ul
		}
		buf = append(buf, u)
	}
	if len(buf) > 0 {
		flush()
	}
	return chunks
}
