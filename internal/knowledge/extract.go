package knowledge

import (
	"regexp"
	"sort"
	"strings"

	"limner/internal/textutil"
)

// clausePattern matches the small fixed set of descriptive clauses scanned
// for after an entity name: "wearing X", "holding X", "carrying X",
// "with X", "in X". The captured text runs to the next clause or sentence
// boundary.
var clausePattern = regexp.MustCompile(`(?i)\b(wearing|holding|carrying|with|in)\s+([^,.;:!?\n]+)`)

// windowRunes caps how far past an entity name the clause scan looks when no
// sentence boundary appears first.
const windowRunes = 200

// ExtractNewDetails scans a scene description for descriptive clauses that
// follow any already-known entity's name and returns those that are
// genuinely new for that entity. The catalog is not mutated; the returned
// updates are re-checked under the lock by ApplyUpdates.
func (c *Catalog) ExtractNewDetails(scene, sourceUnit string) []Update {
	var updates []Update
	for _, name := range c.Names() {
		entity := c.Entities[name]
		for _, window := range nameWindows(scene, entity.Name) {
			for _, match := range clausePattern.FindAllStringSubmatch(window, -1) {
				detail := strings.TrimSpace(match[1] + " " + strings.TrimSpace(match[2]))
				if detail == "" || entity.HasDetail(detail) {
					continue
				}
				if containsUpdate(updates, name, detail) {
					continue
				}
				updates = append(updates, Update{
					Entity:     name,
					Detail:     detail,
					SourceUnit: sourceUnit,
				})
			}
		}
	}
	return updates
}

// nameWindows returns the text windows following each occurrence of name in
// scene, each ending at the next sentence boundary or windowRunes runes,
// whichever comes first. Matching is case-insensitive on word boundaries.
func nameWindows(scene, name string) []string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil
	}
	nameRe, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(trimmed) + `\b`)
	if err != nil {
		return nil
	}
	var windows []string
	for _, loc := range nameRe.FindAllStringIndex(scene, -1) {
		rest := scene[loc[1]:]
		if end := strings.IndexAny(rest, ".!?"); end >= 0 {
			rest = rest[:end]
		}
		runes := []rune(rest)
		if len(runes) > windowRunes {
			rest = string(runes[:windowRunes])
		}
		windows = append(windows, rest)
	}
	return windows
}

func containsUpdate(updates []Update, entity, detail string) bool {
	for _, update := range updates {
		if update.Entity == entity && textutil.EqualFold(update.Detail, detail) {
			return true
		}
	}
	return false
}

// sortNames orders entity names deterministically: case-folded comparison
// first, raw comparison as the tiebreaker.
func sortNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		fi, fj := textutil.Fold(names[i]), textutil.Fold(names[j])
		if fi != fj {
			return fi < fj
		}
		return names[i] < names[j]
	})
}
