package vectorstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Chunk is one embedded slice of a document, as written by the
// offline indexer.
type Chunk struct {
	ChunkID       int       `json:"chunk_id"`
	Text          string    `json:"text"`
	Vector        []float64 `json:"vector"`
	SectionHeader string    `json:"section_header"`
	DocName       string    `json:"doc_name"`

	// Set by the reader, not present in the chunk file.
	DocID string `json:"-"`
}

// TocEntry describes a contiguous run of chunks forming one section.
// Entries without an embedding cannot take part in hierarchical search.
type TocEntry struct {
	FullPath        string    `json:"full_path"`
	StartChunkIndex int       `json:"start_chunk_index"`
	NumChunks       int       `json:"num_chunks"`
	Embedding       []float64 `json:"embedding,omitempty"`
}

// docMetadata mirrors the {id}_metadata.json file layout.
type docMetadata struct {
	DocName string     `json:"doc_name"`
	TOC     []TocEntry `json:"table_of_contents"`
}

// DocumentIndex is the loaded vector index of a single document.
type DocumentIndex struct {
	ID     string
	Name   string
	Chunks []Chunk
	TOC    []TocEntry
}

// SectionChunks returns the chunk run covered by one TOC entry,
// clamped to the document bounds.
func (d *DocumentIndex) SectionChunks(entry TocEntry) []Chunk {
	start := entry.StartChunkIndex
	end := start + entry.NumChunks
	if start < 0 {
		start = 0
	}
	if end > len(d.Chunks) {
		end = len(d.Chunks)
	}
	if start >= end {
		return nil
	}
	return d.Chunks[start:end]
}

// TocRef points at one TOC entry together with its owning document.
type TocRef struct {
	Doc   *DocumentIndex
	Entry TocEntry
}

// Index is the combined in-memory view over every requested document.
type Index struct {
	Docs []*DocumentIndex
}

// Empty reports whether no requested document had index files on disk.
func (ix *Index) Empty() bool {
	return len(ix.Docs) == 0
}

// AllChunks returns every loaded chunk across all documents.
func (ix *Index) AllChunks() []Chunk {
	var chunks []Chunk
	for _, doc := range ix.Docs {
		chunks = append(chunks, doc.Chunks...)
	}
	return chunks
}

// EmbeddedTocRefs returns every TOC entry that carries an embedding.
// A non-empty result selects hierarchical search over flat search.
func (ix *Index) EmbeddedTocRefs() []TocRef {
	var refs []TocRef
	for _, doc := range ix.Docs {
		for _, entry := range doc.TOC {
			if len(entry.Embedding) > 0 {
				refs = append(refs, TocRef{Doc: doc, Entry: entry})
			}
		}
	}
	return refs
}

// Reader loads per-document chunk vectors and TOC metadata from the
// vector store directory.
type Reader struct {
	dir string
}

func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Load reads the index files for the given document ids. Documents
// with a missing or unreadable chunk or metadata file are silently
// skipped; the caller decides whether an empty index is an error.
func (r *Reader) Load(docIDs []string) (*Index, error) {
	index := &Index{}

	for _, docID := range docIDs {
		doc, err := r.loadOne(docID)
		if err != nil {
			continue
		}
		index.Docs = append(index.Docs, doc)
	}

	return index, nil
}

func (r *Reader) loadOne(docID string) (*DocumentIndex, error) {
	vectorFile := filepath.Join(r.dir, docID+"_vectors.json")
	metaFile := filepath.Join(r.dir, docID+"_metadata.json")

	rawChunks, err := os.ReadFile(vectorFile)
	if err != nil {
		return nil, fmt.Errorf("read chunk file: %w", err)
	}
	rawMeta, err := os.ReadFile(metaFile)
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}

	var chunks []Chunk
	if err := json.Unmarshal(rawChunks, &chunks); err != nil {
		return nil, fmt.Errorf("parse chunk file for %s: %w", docID, err)
	}

	var meta docMetadata
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata file for %s: %w", docID, err)
	}

	for i := range chunks {
		chunks[i].DocID = docID
		if chunks[i].DocName == "" {
			chunks[i].DocName = meta.DocName
		}
	}

	return &DocumentIndex{
		ID:     docID,
		Name:   meta.DocName,
		Chunks: chunks,
		TOC:    meta.TOC,
	}, nil
}
