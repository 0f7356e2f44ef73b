// Package tags turns free-text tag input into canonical tag rows.
package tags

import (
	"context"
	"fmt"
	"strings"

	"github.com/quillhq/quillfeed/internal/models"
)

// Normalize trims and lowercases raw tag names, drops blanks and duplicates,
// and keeps at most models.MaxTagsPerPost names in first-seen order.
// Extra names are dropped silently.
func Normalize(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		name := strings.ToLower(strings.TrimSpace(r))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
		if len(out) == models.MaxTagsPerPost {
			break
		}
	}
	return out
}

// NormalizeOne canonicalizes a single tag name used as a filter.
func NormalizeOne(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Store finds or creates a tag by canonical name. Implementations must
// return the existing row when a concurrent create wins.
type Store interface {
	FindOrCreate(ctx context.Context, name string) (*models.Tag, error)
}

// Resolver maps raw tag input to canonical tags
type Resolver struct {
	store Store
}

// NewResolver creates a new tag resolver
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve normalizes raw and returns the matching tag rows, creating any
// that do not exist yet.
func (r *Resolver) Resolve(ctx context.Context, raw []string) ([]models.Tag, error) {
	names := Normalize(raw)
	resolved := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag, err := r.store.FindOrCreate(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve tag %q: %w", name, err)
		}
		resolved = append(resolved, *tag)
	}
	return resolved, nil
}
