// Package directory resolves extensions to display names for the dashboard.
// The provider only reports numeric extensions; names live in our own DB.
package directory

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("directory: extension not found")

// Repo looks up extension metadata for one account.
type Repo interface {
	// DisplayName returns the name registered for an extension, or
	// ErrNotFound when the extension has no directory entry.
	DisplayName(ctx context.Context, accountCode, extension string) (string, error)
}

// Decorate annotates a name map for the given extensions, skipping the ones
// without entries. Lookups are best-effort; a repo error for one extension
// does not abort the rest.
func Decorate(ctx context.Context, repo Repo, accountCode string, extensions []string) map[string]string {
	out := make(map[string]string, len(extensions))
	if repo == nil {
		return out
	}
	seen := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		name, err := repo.DisplayName(ctx, accountCode, ext)
		if err != nil {
			continue
		}
		out[ext] = name
	}
	return out
}
