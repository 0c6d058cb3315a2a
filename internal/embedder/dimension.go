package embedder

import (
	"fmt"
	"sync/atomic"

	"github.com/54b3r/supportai-go/internal/rag"
)

// dimension holds a neural model's output length: configured up front or
// learned from the first successful response, then enforced on every call.
type dimension struct {
	// v is zero until known.
	v atomic.Int64
}

func (d *dimension) set(n int) {
	if n > 0 {
		d.v.Store(int64(n))
	}
}

func (d *dimension) get() int { return int(d.v.Load()) }

// check verifies every vector has the known dimension, learning it first if needed.
func (d *dimension) check(who string, vectors [][]float32) error {
	for i, vec := range vectors {
		if len(vec) == 0 {
			return fmt.Errorf("%s: embedding %d is empty: %w", who, i, rag.ErrEmbedding)
		}
		d.v.CompareAndSwap(0, int64(len(vec)))
		if want := d.get(); len(vec) != want {
			return fmt.Errorf("%s: embedding %d has dimension %d, expected %d: %w", who, i, len(vec), want, rag.ErrEmbedding)
		}
	}
	return nil
}
