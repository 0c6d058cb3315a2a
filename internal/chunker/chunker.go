// Package chunker splits document text into overlapping fixed-size passages.
// Sizes are measured in runes so multi-byte text never splits inside a
// character.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/54b3r/supportai-go/internal/rag"
)

const (
	// DefaultSize is the default chunk length in runes.
	DefaultSize = 500

	// DefaultOverlap is the default number of runes shared by consecutive chunks.
	DefaultOverlap = 100
)

// Split cuts text into windows of size runes, each starting size-overlap
// runes after its predecessor. Only the final window may be shorter than
// size. Empty text yields no chunks.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// validate checks the size/overlap pair.
func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("chunker: size must be positive, got %d: %w", size, rag.ErrInvalidConfig)
	}
	if overlap < 0 {
		return fmt.Errorf("chunker: overlap must not be negative, got %d: %w", overlap, rag.ErrInvalidConfig)
	}
	if overlap >= size {
		return fmt.Errorf("chunker: overlap %d must be smaller than size %d: %w", overlap, size, rag.ErrInvalidConfig)
	}
	return nil
}

// Options configures a Chunker.
type Options struct {
	// Size is the chunk length in runes (default: 500).
	Size int

	// Overlap is the number of runes shared with the previous chunk (default: 100).
	Overlap int

	// NormalizeWhitespace collapses whitespace runs to one space and trims
	// the text before splitting.
	NormalizeWhitespace bool
}

// DefaultOptions returns the defaults used when no configuration is given.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap, NormalizeWhitespace: true}
}

// Chunker turns documents into identified chunks.
type Chunker struct {
	// opts holds the validated options.
	opts Options
}

// New returns a Chunker, rejecting invalid options with rag.ErrInvalidConfig.
func New(opts Options) (*Chunker, error) {
	if err := validate(opts.Size, opts.Overlap); err != nil {
		return nil, err
	}
	return &Chunker{opts: opts}, nil
}

// Prepare applies the configured whitespace normalization.
func (c *Chunker) Prepare(text string) string {
	if !c.opts.NormalizeWhitespace {
		return text
	}
	return strings.Join(strings.Fields(text), " ")
}

// Chunk splits doc into chunks carrying the document source and metadata.
// Chunk IDs are derived from the document ID and sequence, so chunking the
// same document twice yields the same IDs.
func (c *Chunker) Chunk(doc rag.Document) ([]rag.Chunk, error) {
	parts, err := Split(c.Prepare(doc.Text), c.opts.Size, c.opts.Overlap)
	if err != nil {
		return nil, err
	}

	ns := uuid.NewSHA1(uuid.NameSpaceOID, []byte(doc.ID))
	chunks := make([]rag.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, rag.Chunk{
			ID:         uuid.NewSHA1(ns, []byte(strconv.Itoa(i))).String(),
			DocumentID: doc.ID,
			Source:     doc.Source,
			Seq:        i,
			Text:       part,
			Metadata:   maps.Clone(doc.Metadata),
		})
	}
	return chunks, nil
}

// DocumentID derives a stable document ID from its source and text.
func DocumentID(source, text string) string {
	sum := sha256.Sum256([]byte(text))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+hex.EncodeToString(sum[:]))).String()
}
