package knowledge

import (
	"strings"
	"time"

	"limner/internal/textutil"
)

// Kind classifies a catalog entity.
type Kind string

const (
	KindCharacter Kind = "character"
	KindCreature  Kind = "creature"
	KindPlace     Kind = "place"
	KindItem      Kind = "item"
)

// KindOrder is the fixed order kinds appear in the text projection.
var KindOrder = []Kind{KindCharacter, KindCreature, KindPlace, KindItem}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range KindOrder {
		if kind == normalized {
			return kind, true
		}
	}
	return "", false
}

// Enrichment is one deduplicated, source-tagged fact appended to an entity.
type Enrichment struct {
	Detail     string    `json:"detail"`
	SourceUnit string    `json:"source_unit"`
	AddedAt    time.Time `json:"added_at"`
}

// Entity is one named element of the document world.
type Entity struct {
	Name            string       `json:"name"`
	Kind            Kind         `json:"kind"`
	BaseDescription string       `json:"base_description"`
	Enrichments     []Enrichment `json:"enrichments,omitempty"`
	LastUpdated     time.Time    `json:"last_updated"`
}

// HasDetail reports whether candidate already occurs, case-insensitively, in
// the entity's base description or any existing enrichment. This check is
// the dedup invariant that keeps the catalog from growing without bound.
func (e *Entity) HasDetail(candidate string) bool {
	if textutil.ContainsFold(e.BaseDescription, candidate) {
		return true
	}
	for _, enrichment := range e.Enrichments {
		if textutil.ContainsFold(enrichment.Detail, candidate) {
			return true
		}
	}
	return false
}

// Catalog is the persisted entity catalog for one document or series.
type Catalog struct {
	Version  int                `json:"version"`
	Entities map[string]*Entity `json:"entities"`
}

// CurrentVersion is the catalog schema version written by this build.
const CurrentVersion = 1

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Version:  CurrentVersion,
		Entities: make(map[string]*Entity),
	}
}

// Lookup finds an entity by name under Unicode case folding.
func (c *Catalog) Lookup(name string) (*Entity, bool) {
	if entity, ok := c.Entities[name]; ok {
		return entity, true
	}
	for _, entity := range c.Entities {
		if textutil.EqualFold(entity.Name, name) {
			return entity, true
		}
	}
	return nil, false
}

// Names returns entity names sorted for deterministic iteration.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Entities))
	for name := range c.Entities {
		names = append(names, name)
	}
	sortNames(names)
	return names
}

// Seed is a name/kind/context triple produced by the entity-seeding
// capability before enrichment begins.
type Seed struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Context string `json:"context"`
}

// Update is a candidate enrichment produced by detail extraction.
type Update struct {
	Entity     string
	Detail     string
	SourceUnit string
}

// Result summarizes one EnrichFromScenes call.
type Result struct {
	FactsAdded int
	Entities   []string
}
