package rag

import (
	"context"
	"fmt"
	"log"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Prophet73/ai-chat-test/internal/constant"
	"github.com/Prophet73/ai-chat-test/pkg/embedding"
	"github.com/Prophet73/ai-chat-test/pkg/llm"
	"github.com/Prophet73/ai-chat-test/pkg/store"
	"github.com/Prophet73/ai-chat-test/pkg/vectorstore"
)

const (
	// DefaultTopK and DefaultThreshold are the plain Q&A retrieval
	// parameters; the prescription flow narrows TopK to 5.
	DefaultTopK      = 8
	DefaultThreshold = 0.4

	// Chunks at or under this many characters are boilerplate
	// (headings, page furniture) and never retrieved on their own.
	minChunkRunes = 50

	// Source listings carry a preview, not the whole section.
	previewRunes = 200

	contextSeparator = "\n\n---\n\n"
)

// splitPartSuffix marks a section header continuation produced by the
// indexer when a long section is split across chunks.
var splitPartSuffix = regexp.MustCompile(` \(часть \d+\)$`)

// Engine selects relevant passages from precomputed document vectors.
type Engine struct {
	embedder embedding.Provider
	llm      llm.Provider
	reader   *vectorstore.Reader
	logger   *log.Logger
}

// NewEngine creates a retrieval engine over the given vector store.
func NewEngine(embedder embedding.Provider, llmProvider llm.Provider, reader *vectorstore.Reader, logger *log.Logger) *Engine {
	return &Engine{
		embedder: embedder,
		llm:      llmProvider,
		reader:   reader,
		logger:   logger,
	}
}

// Retrieve returns ranked, deduplicated passages for the query across
// the given documents, plus the assembled context text. Hierarchical
// (TOC) search is preferred; flat chunk search runs only when no
// loaded TOC entry carries an embedding.
func (e *Engine) Retrieve(
	ctx context.Context,
	docIDs []string,
	query string,
	topK int,
	threshold float64,
) ([]store.Passage, string, error) {

	queries := []string{query}
	if expanded := e.expandQuery(ctx, query); expanded != "" && expanded != query {
		queries = append(queries, expanded)
	}

	vectors, err := e.embedder.Embed(ctx, queries, embedding.TaskRetrievalQuery)
	if err != nil || len(vectors) == 0 {
		e.logger.Printf("[ERROR] Query embedding failed: %v", err)
		return nil, "", fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	index, err := e.reader.Load(docIDs)
	if err != nil {
		return nil, "", err
	}
	if index.Empty() {
		return nil, "", ErrNoIndexedContent
	}

	if refs := index.EmbeddedTocRefs(); len(refs) > 0 {
		e.logger.Printf("[SEARCH] Hierarchical tier: %d TOC entries across %d docs", len(refs), len(index.Docs))
		return e.searchHierarchical(refs, vectors, topK, threshold)
	}

	e.logger.Printf("[SEARCH] Flat tier: %d chunks across %d docs", len(index.AllChunks()), len(index.Docs))
	return e.searchFlat(index, vectors, topK, threshold)
}

// expandQuery asks the generation service for a keyword-enriched
// rewrite. Any failure falls back to the original query.
func (e *Engine) expandQuery(ctx context.Context, query string) string {
	prompt := fmt.Sprintf(constant.QueryExpansionPrompt, query)
	expanded, err := e.llm.Generate(ctx, prompt, llm.WithTemperature(0.1))
	if err != nil {
		e.logger.Printf("[WARN] Query expansion failed: %v", err)
		return ""
	}
	expanded = strings.TrimSpace(expanded)
	if expanded != "" && expanded != query {
		e.logger.Printf("[SEARCH] Query expanded: %q -> %q", query, expanded)
	}
	return expanded
}

// --- Tier A: hierarchical section search ---

type scoredToc struct {
	ref        vectorstore.TocRef
	similarity float64
}

func (e *Engine) searchHierarchical(
	refs []vectorstore.TocRef,
	queryVectors [][]float64,
	topK int,
	threshold float64,
) ([]store.Passage, string, error) {

	scored := make([]scoredToc, 0, len(refs))
	for _, ref := range refs {
		scored = append(scored, scoredToc{
			ref:        ref,
			similarity: averagedSimilarity(queryVectors, ref.Entry.Embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].similarity != scored[j].similarity {
			return scored[i].similarity > scored[j].similarity
		}
		if scored[i].ref.Entry.FullPath != scored[j].ref.Entry.FullPath {
			return scored[i].ref.Entry.FullPath < scored[j].ref.Entry.FullPath
		}
		return scored[i].ref.Doc.ID < scored[j].ref.Doc.ID
	})

	// Whole sections are large, so hierarchical search takes only half
	// the requested budget.
	take := (topK + 1) / 2
	if take > len(scored) {
		take = len(scored)
	}

	var passages []store.Passage
	var contextParts []string

	for _, sc := range scored[:take] {
		if sc.similarity < threshold {
			continue
		}

		chunks := sc.ref.Doc.SectionChunks(sc.ref.Entry)
		texts := make([]string, 0, len(chunks))
		for _, ch := range chunks {
			texts = append(texts, ch.Text)
		}
		sectionText := strings.Join(texts, "\n")

		contextParts = append(contextParts, fmt.Sprintf("Раздел '%s':\n%s", sc.ref.Entry.FullPath, sectionText))
		passages = append(passages, store.Passage{
			Header:     sc.ref.Entry.FullPath,
			Text:       truncateRunes(sectionText, previewRunes),
			DocName:    sc.ref.Doc.Name,
			Similarity: sc.similarity,
		})

		e.logger.Printf("[SEARCH] Section %q score=%.4f [KEEP]", sc.ref.Entry.FullPath, sc.similarity)
	}

	if len(passages) == 0 {
		return nil, "", ErrNoRelevantContent
	}

	return passages, strings.Join(contextParts, contextSeparator), nil
}

// --- Tier B: flat chunk search with section reassembly ---

type scoredChunk struct {
	chunk      vectorstore.Chunk
	similarity float64
}

func (e *Engine) searchFlat(
	index *vectorstore.Index,
	queryVectors [][]float64,
	topK int,
	threshold float64,
) ([]store.Passage, string, error) {

	allChunks := index.AllChunks()

	// Filter and deduplicate. Chunk ids are unique within one document
	// only, so the dedup key includes the document id.
	best := make(map[string]scoredChunk)
	for _, ch := range allChunks {
		sim := averagedSimilarity(queryVectors, ch.Vector)
		if sim < threshold || utf8.RuneCountInString(ch.Text) <= minChunkRunes {
			continue
		}
		key := chunkKey(ch)
		if prev, ok := best[key]; !ok || sim > prev.similarity {
			best[key] = scoredChunk{chunk: ch, similarity: sim}
		}
	}

	if len(best) == 0 {
		return nil, "", ErrNoRelevantContent
	}

	top := make([]scoredChunk, 0, len(best))
	for _, sc := range best {
		top = append(top, sc)
	}
	sortScoredChunks(top)
	if len(top) > topK {
		top = top[:topK]
	}

	// Reassemble split sections: a chunk pulls in every sibling that
	// shares its base header so a partial match never loses the rest
	// of its section. Siblings inherit the matching chunk's score.
	siblings := make(map[string][]vectorstore.Chunk)
	for _, ch := range allChunks {
		key := ch.DocID + "\x00" + baseHeader(ch.SectionHeader)
		siblings[key] = append(siblings[key], ch)
	}

	var expanded []scoredChunk
	seen := make(map[string]bool)
	for _, sc := range top {
		key := sc.chunk.DocID + "\x00" + baseHeader(sc.chunk.SectionHeader)
		for _, related := range siblings[key] {
			if seen[chunkKey(related)] {
				continue
			}
			seen[chunkKey(related)] = true
			expanded = append(expanded, scoredChunk{chunk: related, similarity: sc.similarity})
		}
	}
	sortScoredChunks(expanded)

	passages := make([]store.Passage, 0, len(expanded))
	contextParts := make([]string, 0, len(expanded))
	for _, sc := range expanded {
		passages = append(passages, store.Passage{
			Header:     sc.chunk.SectionHeader,
			Text:       sc.chunk.Text,
			DocName:    sc.chunk.DocName,
			Similarity: sc.similarity,
		})
		contextParts = append(contextParts, fmt.Sprintf(
			"Из документа '%s', раздел '%s':\n%s",
			sc.chunk.DocName, sc.chunk.SectionHeader, sc.chunk.Text,
		))
	}

	return passages, strings.Join(contextParts, contextSeparator), nil
}

func sortScoredChunks(chunks []scoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].similarity != chunks[j].similarity {
			return chunks[i].similarity > chunks[j].similarity
		}
		if chunks[i].chunk.SectionHeader != chunks[j].chunk.SectionHeader {
			return chunks[i].chunk.SectionHeader < chunks[j].chunk.SectionHeader
		}
		return chunks[i].chunk.ChunkID < chunks[j].chunk.ChunkID
	})
}

func chunkKey(ch vectorstore.Chunk) string {
	return fmt.Sprintf("%s\x00%d", ch.DocID, ch.ChunkID)
}

func baseHeader(header string) string {
	return splitPartSuffix.ReplaceAllString(header, "")
}

// averagedSimilarity scores a document vector against every query
// vector and averages. Two vectors exist when query expansion
// produced a distinct rewrite.
func averagedSimilarity(queryVectors [][]float64, docVector []float64) float64 {
	var sum float64
	for _, qv := range queryVectors {
		sum += cosineSimilarity(qv, docVector)
	}
	return sum / float64(len(queryVectors))
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func truncateRunes(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
