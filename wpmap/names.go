package wpmap

import (
	"fmt"
	"strings"
)

// NameAllocator hands out unique usernames and display names during one
// sync run. It is seeded with the names already present in the target
// before the run starts, so re-imports keep their resolved names stable:
// the same source id always ends up with the same name as long as the
// source data does not change.
//
// Ownership is tracked per lowercase name: a user keeps a name it already
// owns, anyone else gets the deterministic fallback.
type NameAllocator struct {
	usernames map[string]int64
	names     map[string]int64
}

// NewNameAllocator returns an empty allocator.
func NewNameAllocator() *NameAllocator {
	return &NameAllocator{
		usernames: map[string]int64{},
		names:     map[string]int64{},
	}
}

// SeedUsername records an existing target username and its owner id.
func (a *NameAllocator) SeedUsername(username string, ownerID int64) {
	if username != "" {
		a.usernames[strings.ToLower(username)] = ownerID
	}
}

// SeedDisplayName records an existing target display name and its owner id.
func (a *NameAllocator) SeedDisplayName(name string, ownerID int64) {
	if name != "" {
		a.names[strings.ToLower(name)] = ownerID
	}
}

// Username resolves a unique username for userID. On collision with a
// different owner the id is appended: "ivan" -> "ivan_17".
func (a *NameAllocator) Username(base string, userID int64) string {
	username := SanitizeText(base)
	if username == "" {
		username = fmt.Sprintf("user_%d", userID)
	}
	lower := strings.ToLower(username)
	if owner, taken := a.usernames[lower]; taken && owner != userID {
		username = fmt.Sprintf("%s_%d", username, userID)
		lower = strings.ToLower(username)
	}
	a.usernames[lower] = userID
	return username
}

// DisplayName resolves a unique display name for userID. On collision a
// " #<n>" suffix is tried with increasing n until a free name is found.
func (a *NameAllocator) DisplayName(base string, userID int64) string {
	name := SanitizeText(base)
	if name == "" {
		name = fmt.Sprintf("user_%d", userID)
	}
	candidate := name
	for n := 1; ; n++ {
		owner, taken := a.names[strings.ToLower(candidate)]
		if !taken || owner == userID {
			break
		}
		candidate = fmt.Sprintf("%s #%d", name, n)
	}
	a.names[strings.ToLower(candidate)] = userID
	return candidate
}
