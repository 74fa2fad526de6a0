// Package domain defines the changeset tag lookup contract
package domain

import (
	"context"

	"taghist/internal/core/osm"
)

// TagsPort resolves a changeset id to its stored tag pairs in their
// stored order. found=false means the changeset is unknown to the
// store, which callers render as empty rather than failing
type TagsPort interface {
	Tags(ctx context.Context, id uint64) ([]osm.TagPair, bool, error)
}
