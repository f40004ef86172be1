package idmap

import "strings"

// DefaultTitleAliases maps legacy meditation titles to the titles the
// editorial team gave them on the new platform. Hand-curated; extended via
// config. Lookups are exact after whitespace trimming.
var DefaultTitleAliases = map[string]string{
	"Body Scan (short)":        "Short Body Scan",
	"Loving Kindness Practice": "Loving Kindness",
	"SOS Calm":                 "SOS: Calm Down",
	"Evening Wind-Down":        "Evening Wind Down",
}

// MergeAliases overlays user-configured aliases on the defaults without
// mutating either input.
func MergeAliases(extra map[string]string) map[string]string {
	merged := make(map[string]string, len(DefaultTitleAliases)+len(extra))
	for k, v := range DefaultTitleAliases {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// ResolveByTitle resolves a legacy numeric id through the natural-key chain:
// id → legacy title (titles), title → destination id (destByTitle). When the
// direct title lookup misses, the alias table supplies the destination-side
// title for known renames and the lookup is retried once. A miss anywhere
// returns ok=false; the caller decides whether that is worth a warning.
func ResolveByTitle(sourceID int64, titles map[int64]string, destByTitle map[string]string, aliases map[string]string) (string, bool) {
	title, ok := titles[sourceID]
	if !ok {
		return "", false
	}
	title = strings.TrimSpace(title)
	if destID, ok := destByTitle[title]; ok {
		return destID, true
	}
	alias, ok := aliases[title]
	if !ok {
		return "", false
	}
	destID, ok := destByTitle[strings.TrimSpace(alias)]
	return destID, ok
}
