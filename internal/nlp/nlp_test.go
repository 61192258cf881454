package nlp

import "testing"

func TestChunkTextsParagraphsPacksUnits(t *testing.T) {
	texts := []NamedText{{Source: "doc:0", Text: "Para one.\n\nPara two is a bit longer than the first one."}}
	cfg := NewChunkConfig()
	cfg.Strategy = ChunkParagraphs
	cfg.MaxTokens = 5

	chunks, err := ChunkTexts(texts, cfg)
	if err != nil {
		t.Fatalf("chunk_texts: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}
	for _, c := range chunks {
		if c.Source != "doc:0" {
			t.Fatalf("source = %q", c.Source)
		}
	}
}

func TestChunkTextsRequiresNonEmptyInput(t *testing.T) {
	if _, err := ChunkTexts(nil, NewChunkConfig()); err == nil {
		t.Fatalf("expected error for empty texts")
	}
}

func TestChunkTextsRejectsUnknownStrategy(t *testing.T) {
	cfg := NewChunkConfig()
	cfg.Strategy = "unknown"
	if _, err := ChunkTexts([]NamedText{{Source: "a", Text: "x"}}, cfg); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestSplitSentencesMergesShortFragments(t *testing.T) {
	sentences := splitSentences("This is a longer sentence that stands alone. Hi.")
	if len(sentences) != 1 {
		t.Fatalf("expected the trailing short fragment merged into the prior sentence, got %+v", sentences)
	}
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(texts []string) ([][]float64, string, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{3, 4}
	}
	return out, "stub", nil
}

func TestEmbedTextsNormalizes(t *testing.T) {
	vecs, label, err := EmbedTexts(stubEmbedder{}, []string{"a", "b"}, true)
	if err != nil {
		t.Fatalf("embed_texts: %v", err)
	}
	if label != "stub" {
		t.Fatalf("label = %q", label)
	}
	if vecs[0][0] != 0.6 || vecs[0][1] != 0.8 {
		t.Fatalf("vec = %+v, want [0.6, 0.8]", vecs[0])
	}
}
