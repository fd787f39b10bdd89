// Package corpus loads the regulatory document corpus from a document
// store and presents it as an immutable in-memory snapshot for indexing.
package corpus

import "fmt"

// MetaUnknown is the sentinel returned for missing metadata keys.
const MetaUnknown = "Unknown"

// Well-known metadata keys carried by ingested regulatory chunks.
const (
	MetaSourceFile = "source_file"
	MetaJSONFile   = "json_file"
)

// Chunk is one retrievable unit of regulatory text.
// ID is assigned at load time and is corpus-ordinal and zero-padded, so
// lexicographic ID order equals corpus order.
type Chunk struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Meta returns the metadata value for key, or MetaUnknown when absent
// or blank.
func (c Chunk) Meta(key string) string {
	if v, ok := c.Metadata[key]; ok && v != "" {
		return v
	}
	return MetaUnknown
}

// Corpus is an ordered, immutable snapshot of all chunks in a collection.
type Corpus struct {
	chunks []Chunk
	byID   map[string]int
}

// NewCorpus builds a Corpus from chunks in corpus order, assigning
// ordinal IDs.
func NewCorpus(chunks []Chunk) *Corpus {
	c := &Corpus{
		chunks: make([]Chunk, len(chunks)),
		byID:   make(map[string]int, len(chunks)),
	}
	for i, ch := range chunks {
		ch.ID = OrdinalID(i)
		c.chunks[i] = ch
		c.byID[ch.ID] = i
	}
	return c
}

// OrdinalID formats a corpus position as a stable document ID.
func OrdinalID(i int) string {
	return fmt.Sprintf("%08d", i)
}

// Len returns the number of chunks.
func (c *Corpus) Len() int {
	return len(c.chunks)
}

// Chunks returns the chunks in corpus order. Callers must not mutate.
func (c *Corpus) Chunks() []Chunk {
	return c.chunks
}

// Get returns the chunk with the given ID.
func (c *Corpus) Get(id string) (Chunk, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Chunk{}, false
	}
	return c.chunks[i], true
}

// Position returns the corpus-order position of id, or -1 when unknown.
func (c *Corpus) Position(id string) int {
	if i, ok := c.byID[id]; ok {
		return i
	}
	return -1
}
