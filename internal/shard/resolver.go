// Package shard adapts the admin engine to the one entity type whose
// records live in one physical collection per owner: character
// inventories. The resolver maps a raw owner display name to its shard
// collection; the adapter reimplements the gateway operations at owner
// granularity.
package shard

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"

	"github.com/tavernkeep/tavernkeep/internal/docstore"
	"github.com/tavernkeep/tavernkeep/internal/telemetry"
)

var folder = cases.Fold()

// FoldOwnerKey normalizes a raw owner display name into the shard key:
// surrounding whitespace is trimmed and the remainder is case-folded, so
// "Zelda", " zelda " and "ZELDA" all resolve to the same shard.
func FoldOwnerKey(display string) string {
	return folder.String(strings.TrimSpace(display))
}

// collectionName derives a deterministic physical collection name from a
// folded owner key. The readable prefix keeps operator queries sane; the
// hash suffix disambiguates keys that sanitize to the same characters.
func collectionName(ownerKey string) string {
	var b strings.Builder
	b.WriteString("inv_")
	for _, r := range ownerKey {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= 40 {
			break
		}
	}
	h := fnv.New32a()
	h.Write([]byte(ownerKey))
	fmt.Fprintf(&b, "_%08x", h.Sum32())
	return b.String()
}

// Resolver opens shard collections by owner key, keeping a bounded cache
// of handles so hot owners do not pay the open-or-create round trip on
// every request.
type Resolver struct {
	db      *docstore.DB
	handles *lru.Cache[string, *docstore.Collection]
}

// NewResolver builds a resolver with a bounded handle cache.
func NewResolver(db *docstore.DB, cacheSize int) (*Resolver, error) {
	if cacheSize < 1 {
		cacheSize = 128
	}
	handles, err := lru.New[string, *docstore.Collection](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create shard handle cache: %w", err)
	}
	return &Resolver{db: db, handles: handles}, nil
}

// Open resolves the shard for a raw owner display name, creating the
// backing collection on first use. It returns the handle together with the
// folded owner key.
func (r *Resolver) Open(ctx context.Context, display string) (*docstore.Collection, string, error) {
	key := FoldOwnerKey(display)
	if key == "" {
		return nil, "", fmt.Errorf("empty owner name")
	}
	if col, ok := r.handles.Get(key); ok {
		telemetry.InventoryShardOpensTotal.WithLabelValues("hit").Inc()
		return col, key, nil
	}
	telemetry.InventoryShardOpensTotal.WithLabelValues("miss").Inc()
	col, err := r.db.OpenCollection(ctx, collectionName(key))
	if err != nil {
		return nil, "", err
	}
	r.handles.Add(key, col)
	return col, key, nil
}
