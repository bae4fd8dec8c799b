package rag

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prophet73/ai-chat-test/pkg/llm"
	"github.com/Prophet73/ai-chat-test/pkg/vectorstore"
)

type fakeEmbedder struct {
	vector []float64
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

// fakeLLM fails generation so query expansion falls back to the raw
// query and retrieval stays deterministic.
type fakeLLM struct{}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", errors.New("generation disabled in test")
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string, schema llm.Schema, out any) error {
	return errors.New("generation disabled in test")
}

func (f *fakeLLM) Stream(ctx context.Context, history []llm.Message, systemPrompt string, options ...llm.Option) (<-chan llm.Chunk, error) {
	return nil, errors.New("generation disabled in test")
}

type chunkFile struct {
	ChunkID       int       `json:"chunk_id"`
	Text          string    `json:"text"`
	Vector        []float64 `json:"vector"`
	SectionHeader string    `json:"section_header"`
	DocName       string    `json:"doc_name"`
}

type metaFile struct {
	DocName string                 `json:"doc_name"`
	TOC     []vectorstore.TocEntry `json:"table_of_contents"`
}

func writeIndex(t *testing.T, dir, docID string, chunks []chunkFile, meta metaFile) {
	t.Helper()
	rawChunks, err := json.Marshal(chunks)
	require.NoError(t, err)
	rawMeta, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, docID+"_vectors.json"), rawChunks, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, docID+"_metadata.json"), rawMeta, 0644))
}

// longText pads a passage beyond the boilerplate cutoff.
func longText(prefix string) string {
	return prefix + " " + strings.Repeat("требование нормативного документа ", 3)
}

func newTestEngine(t *testing.T, dir string, embedder *fakeEmbedder) *Engine {
	t.Helper()
	reader := vectorstore.NewReader(dir)
	return NewEngine(embedder, &fakeLLM{}, reader, log.New(os.Stderr, "", 0))
}

func TestRetrieveFlatFiltersAndRanks(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, dir, "1", []chunkFile{
		{ChunkID: 0, Text: longText("точное совпадение"), Vector: []float64{1, 0}, SectionHeader: "5.1 Сварные швы", DocName: "СП 70"},
		{ChunkID: 1, Text: longText("слабое совпадение"), Vector: []float64{0, 1}, SectionHeader: "6.2 Опалубка", DocName: "СП 70"},
		{ChunkID: 2, Text: "коротко", Vector: []float64{1, 0}, SectionHeader: "7.1 Заголовок", DocName: "СП 70"},
	}, metaFile{DocName: "СП 70"})

	engine := newTestEngine(t, dir, &fakeEmbedder{vector: []float64{1, 0}})

	passages, contextText, err := engine.Retrieve(context.Background(), []string{"1"}, "сварка", 8, 0.4)
	require.NoError(t, err)

	// The orthogonal chunk is under threshold and the short chunk is
	// boilerplate; only one passage survives.
	require.Len(t, passages, 1)
	assert.Equal(t, "5.1 Сварные швы", passages[0].Header)
	assert.InDelta(t, 1.0, passages[0].Similarity, 1e-9)
	assert.Contains(t, contextText, "Из документа 'СП 70', раздел '5.1 Сварные швы':")
	assert.NotContains(t, contextText, "Опалубка")
}

func TestRetrieveFlatReassemblesSplitSections(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, dir, "1", []chunkFile{
		{ChunkID: 0, Text: longText("первая часть раздела"), Vector: []float64{1, 0}, SectionHeader: "4.3 Бетонирование (часть 1)", DocName: "СП 70"},
		{ChunkID: 1, Text: longText("вторая часть раздела"), Vector: []float64{0, 1}, SectionHeader: "4.3 Бетонирование (часть 2)", DocName: "СП 70"},
	}, metaFile{DocName: "СП 70"})

	engine := newTestEngine(t, dir, &fakeEmbedder{vector: []float64{1, 0}})

	passages, contextText, err := engine.Retrieve(context.Background(), []string{"1"}, "бетон", 8, 0.4)
	require.NoError(t, err)

	// Part 2 scored below threshold on its own but rides along with
	// part 1, inheriting its similarity.
	require.Len(t, passages, 2)
	assert.Equal(t, "4.3 Бетонирование (часть 1)", passages[0].Header)
	assert.Equal(t, "4.3 Бетонирование (часть 2)", passages[1].Header)
	assert.Equal(t, passages[0].Similarity, passages[1].Similarity)
	assert.Contains(t, contextText, "первая часть раздела")
	assert.Contains(t, contextText, "вторая часть раздела")
}

func TestRetrieveFlatDeduplicatesAcrossDocuments(t *testing.T) {
	dir := t.TempDir()
	// Same chunk id in two documents must not collapse into one.
	writeIndex(t, dir, "1", []chunkFile{
		{ChunkID: 0, Text: longText("документ один"), Vector: []float64{1, 0}, SectionHeader: "1.1 Общие", DocName: "СП 70"},
	}, metaFile{DocName: "СП 70"})
	writeIndex(t, dir, "2", []chunkFile{
		{ChunkID: 0, Text: longText("документ два"), Vector: []float64{1, 0}, SectionHeader: "2.1 Общие", DocName: "ГОСТ 123"},
	}, metaFile{DocName: "ГОСТ 123"})

	engine := newTestEngine(t, dir, &fakeEmbedder{vector: []float64{1, 0}})

	passages, _, err := engine.Retrieve(context.Background(), []string{"1", "2"}, "общие требования", 8, 0.4)
	require.NoError(t, err)
	assert.Len(t, passages, 2)
}

func TestRetrieveHierarchicalTier(t *testing.T) {
	dir := t.TempDir()
	sectionBody := strings.Repeat("пункт раздела о защитном слое бетона ", 20)
	writeIndex(t, dir, "1", []chunkFile{
		{ChunkID: 0, Text: sectionBody, Vector: []float64{1, 0}, SectionHeader: "5 Бетонные работы", DocName: "СП 70"},
		{ChunkID: 1, Text: longText("другой раздел"), Vector: []float64{0, 1}, SectionHeader: "6 Опалубка", DocName: "СП 70"},
	}, metaFile{
		DocName: "СП 70",
		TOC: []vectorstore.TocEntry{
			{FullPath: "5 Бетонные работы", StartChunkIndex: 0, NumChunks: 1, Embedding: []float64{1, 0}},
			{FullPath: "6 Опалубка", StartChunkIndex: 1, NumChunks: 1, Embedding: []float64{0, 1}},
		},
	})

	engine := newTestEngine(t, dir, &fakeEmbedder{vector: []float64{1, 0}})

	passages, contextText, err := engine.Retrieve(context.Background(), []string{"1"}, "защитный слой", 8, 0.4)
	require.NoError(t, err)

	// topK=8 admits ceil(8/2)=4 sections, but only one clears the
	// threshold.
	require.Len(t, passages, 1)
	assert.Equal(t, "5 Бетонные работы", passages[0].Header)

	// The passage carries a bounded preview while the context carries
	// the whole section.
	assert.LessOrEqual(t, len([]rune(passages[0].Text)), 203)
	assert.True(t, strings.HasSuffix(passages[0].Text, "..."))
	assert.Contains(t, contextText, sectionBody)
}

func TestRetrieveHierarchicalBudgetIsHalfTopK(t *testing.T) {
	dir := t.TempDir()
	toc := make([]vectorstore.TocEntry, 0, 6)
	chunks := make([]chunkFile, 0, 6)
	for i := 0; i < 6; i++ {
		toc = append(toc, vectorstore.TocEntry{
			FullPath:        string(rune('а'+i)) + " Раздел",
			StartChunkIndex: i,
			NumChunks:       1,
			Embedding:       []float64{1, 0},
		})
		chunks = append(chunks, chunkFile{
			ChunkID: i, Text: longText("содержимое"), Vector: []float64{1, 0},
			SectionHeader: "Раздел", DocName: "СП 70",
		})
	}
	writeIndex(t, dir, "1", chunks, metaFile{DocName: "СП 70", TOC: toc})

	engine := newTestEngine(t, dir, &fakeEmbedder{vector: []float64{1, 0}})

	passages, _, err := engine.Retrieve(context.Background(), []string{"1"}, "раздел", 5, 0.4)
	require.NoError(t, err)
	// ceil(5/2) = 3 sections even though all six match.
	assert.Len(t, passages, 3)
}

func TestRetrieveErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("embedding failure", func(t *testing.T) {
		engine := newTestEngine(t, dir, &fakeEmbedder{err: errors.New("boom")})
		_, _, err := engine.Retrieve(context.Background(), []string{"1"}, "запрос", 8, 0.4)
		assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	})

	t.Run("missing index files", func(t *testing.T) {
		engine := newTestEngine(t, dir, &fakeEmbedder{vector: []float64{1, 0}})
		_, _, err := engine.Retrieve(context.Background(), []string{"missing"}, "запрос", 8, 0.4)
		assert.ErrorIs(t, err, ErrNoIndexedContent)
	})

	t.Run("nothing above threshold", func(t *testing.T) {
		writeIndex(t, dir, "1", []chunkFile{
			{ChunkID: 0, Text: longText("нерелевантно"), Vector: []float64{0, 1}, SectionHeader: "1.1", DocName: "СП 70"},
		}, metaFile{DocName: "СП 70"})

		engine := newTestEngine(t, dir, &fakeEmbedder{vector: []float64{1, 0}})
		_, _, err := engine.Retrieve(context.Background(), []string{"1"}, "запрос", 8, 0.4)
		assert.ErrorIs(t, err, ErrNoRelevantContent)
	})
}

func TestRetrieveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, dir, "1", []chunkFile{
		{ChunkID: 0, Text: longText("альфа"), Vector: []float64{1, 0}, SectionHeader: "1.1 Альфа", DocName: "СП 70"},
		{ChunkID: 1, Text: longText("бета"), Vector: []float64{0.8, 0.6}, SectionHeader: "2.2 Бета", DocName: "СП 70"},
	}, metaFile{DocName: "СП 70"})

	engine := newTestEngine(t, dir, &fakeEmbedder{vector: []float64{1, 0}})

	first, firstCtx, err := engine.Retrieve(context.Background(), []string{"1"}, "альфа", 8, 0.4)
	require.NoError(t, err)
	second, secondCtx, err := engine.Retrieve(context.Background(), []string{"1"}, "альфа", 8, 0.4)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstCtx, secondCtx)
}

func TestBaseHeader(t *testing.T) {
	assert.Equal(t, "4.3 Бетонирование", baseHeader("4.3 Бетонирование (часть 2)"))
	assert.Equal(t, "4.3 Бетонирование", baseHeader("4.3 Бетонирование"))
	assert.Equal(t, "раздел (часть 1) приложение", baseHeader("раздел (часть 1) приложение"))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}
