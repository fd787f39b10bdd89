package corpus

import (
	"context"
	"log/slog"
)

// Load fetches every chunk of the named collection and builds an
// in-memory Corpus snapshot with corpus-ordinal IDs.
//
// A missing or unreachable store surfaces as a fatal store error; an
// empty collection loads as an empty Corpus.
func Load(ctx context.Context, store DocumentStore, collection string) (*Corpus, error) {
	coll, err := store.GetCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	chunks, err := coll.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	// Blank chunks carry no retrievable signal; drop them at load time
	// so both indexes see the same snapshot.
	kept := chunks[:0]
	dropped := 0
	for _, ch := range chunks {
		if ch.Content == "" {
			dropped++
			continue
		}
		kept = append(kept, ch)
	}
	if dropped > 0 {
		slog.Warn("dropped empty chunks during corpus load",
			"collection", collection, "dropped", dropped)
	}

	c := NewCorpus(kept)
	slog.Info("corpus loaded", "collection", collection, "chunks", c.Len())
	return c, nil
}
