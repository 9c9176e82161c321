// Package wpmap turns raw rows pulled from a legacy WordPress database into
// Legio-shaped records. Everything here is a pure function over its inputs:
// no I/O, no clocks except the documented date fallback, so the whole
// mapping layer is replayable in tests.
package wpmap

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Roles assigned during import. The serialized capability blob is the only
// role signal the source carries.
const (
	RoleAdmin   = "admin"
	RoleCreator = "creator"
	RoleUser    = "user"
)

// PointsSettings is the singleton configuration row controlling starting
// points for imported users and the base award for poll winners.
type PointsSettings struct {
	StartPoints int `json:"start_points" yaml:"start_points"`
	WinsPoints  int `json:"wins_points" yaml:"wins_points"`
	LevelPoints int `json:"level_points" yaml:"level_points"`
}

// DefaultPointsSettings applies when the source has no points_settings table.
var DefaultPointsSettings = PointsSettings{
	StartPoints: 100,
	WinsPoints:  100,
	LevelPoints: 1000,
}

// levelThresholds maps accumulated points to a level, highest tier first.
var levelThresholds = []struct {
	min   int
	level int
}{
	{50000, 6},
	{30000, 5},
	{9000, 4},
	{3000, 3},
	{1000, 2},
	{0, 1},
}

// CalculateLevel returns the level for a points balance. Total over all
// inputs: negative balances clamp to the first tier.
func CalculateLevel(points int) int {
	for _, tier := range levelThresholds {
		if points >= tier.min {
			return tier.level
		}
	}
	return 1
}

// RoleFromCapabilities classifies a serialized WordPress capability blob.
// Substring match, case-insensitive; administrator wins over editor/author.
func RoleFromCapabilities(capabilities string) string {
	serialized := strings.ToLower(capabilities)
	switch {
	case serialized == "":
		return RoleUser
	case strings.Contains(serialized, "administrator"):
		return RoleAdmin
	case strings.Contains(serialized, "editor"), strings.Contains(serialized, "author"):
		return RoleCreator
	default:
		return RoleUser
	}
}

var wsRun = regexp.MustCompile(`\s+`)

// SanitizeText collapses whitespace runs to single spaces and trims.
func SanitizeText(s string) string {
	return strings.TrimSpace(wsRun.ReplaceAllString(s, " "))
}

// CleanDate passes through a usable source datetime string and substitutes
// the current UTC time for empty or zeroed values ("0000-00-00..." is
// MySQL's way of saying the column was never set).
func CleanDate(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" || strings.HasPrefix(v, "0000-00-00") {
		return time.Now().UTC().Format("2006-01-02 15:04:05")
	}
	return v
}

// FallbackAvatar builds a deterministic generated-avatar URL for users
// without a custom avatar in the source.
func FallbackAvatar(seed string) string {
	if seed == "" {
		seed = "user"
	}
	return fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", url.QueryEscape(seed))
}

// categoryEntry pairs a Legio category slug with the needles that select
// it. Needles cover both the transliterated slugs the old site used and
// the Cyrillic names editors typed.
type categoryEntry struct {
	slug    string
	needles []string
}

var categoryTable = []categoryEntry{
	{"avto", []string{"avto", "auto", "авто"}},
	{"bankovskij-sektor", []string{"bankovskij-sektor", "finance", "bank", "финанс", "банк"}},
	{"zhile", []string{"zhile", "housing", "realty", "жиль", "недвиж"}},
	{"zdorove", []string{"zdorove", "health", "мед", "здоров"}},
	{"kino", []string{"kino", "cinema", "movie", "кино", "сериал"}},
	{"kriptovalyuta", []string{"kriptovalyuta", "crypto", "bitcoin", "крипт", "биткоин"}},
	{"obshhestvo", []string{"obshhestvo", "society", "обще"}},
	{"politika", []string{"politika", "politics", "policy", "полит"}},
	{"semya", []string{"semya", "family", "семь"}},
	{"sport", []string{"sport", "спорт"}},
	{"turizm", []string{"turizm", "tourism", "travel", "тури", "путеш"}},
	{"ekologiya", []string{"ekologiya", "ecology", "eco", "эколог"}},
	{"ekonomika", []string{"ekonomika", "economy", "эконом"}},
	{"blagoustrojstvo", []string{"blagoustrojstvo", "благоустрой"}},
	{"bez-rubriki", []string{"bez-rubriki", "uncategorized", "без рубрики"}},
}

var bareSlug = regexp.MustCompile(`^[a-z0-9-]+$`)

// MapCategory maps a source category slug or display name onto the Legio
// category vocabulary. First table match wins; unknown but URL-safe slugs
// pass through so legacy permalinks keep working; everything else lands in
// "general".
func MapCategory(raw string) string {
	value := strings.ToLower(SanitizeText(raw))
	if value == "" {
		return "general"
	}
	for _, entry := range categoryTable {
		for _, needle := range entry.needles {
			if strings.Contains(value, needle) {
				return entry.slug
			}
		}
	}
	if bareSlug.MatchString(value) {
		return value
	}
	return "general"
}
