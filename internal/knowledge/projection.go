package knowledge

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// Projection grammar: one section per kind, one sub-entry per entity, a
// description line, then an "Appears in" line and a bulleted enrichment list
// tagged with the source unit. Rendering is a pure function of catalog
// state: identical catalogs produce byte-identical projections.

var kindHeadings = map[Kind]string{
	KindCharacter: "Characters",
	KindCreature:  "Creatures",
	KindPlace:     "Places",
	KindItem:      "Items",
}

var headingKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(kindHeadings))
	for kind, heading := range kindHeadings {
		m[heading] = kind
	}
	return m
}()

var enrichmentLine = regexp.MustCompile(`^- (.*?)(?: \(unit ([^)]+)\))?$`)

// RenderProjection serializes the catalog into its text projection. Entities
// group by kind in fixed order and sort by name; enrichments keep insertion
// order.
func RenderProjection(c *Catalog) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Elements\n")

	for _, kind := range KindOrder {
		names := make([]string, 0)
		for name, entity := range c.Entities {
			if entity.Kind == kind {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			continue
		}
		sortNames(names)

		fmt.Fprintf(&buf, "\n## %s\n", kindHeadings[kind])
		for _, name := range names {
			entity := c.Entities[name]
			fmt.Fprintf(&buf, "\n### %s\n", entity.Name)
			fmt.Fprintf(&buf, "Description: %s\n", strings.TrimSpace(entity.BaseDescription))
			if units := appearanceUnits(entity); len(units) > 0 {
				fmt.Fprintf(&buf, "Appears in: %s\n", strings.Join(units, ", "))
			}
			for _, enrichment := range entity.Enrichments {
				if enrichment.SourceUnit != "" {
					fmt.Fprintf(&buf, "- %s (unit %s)\n", enrichment.Detail, enrichment.SourceUnit)
				} else {
					fmt.Fprintf(&buf, "- %s\n", enrichment.Detail)
				}
			}
		}
	}
	return buf.Bytes()
}

// appearanceUnits lists the distinct source units of an entity's
// enrichments, in insertion order.
func appearanceUnits(entity *Entity) []string {
	seen := make(map[string]struct{})
	var units []string
	for _, enrichment := range entity.Enrichments {
		if enrichment.SourceUnit == "" {
			continue
		}
		if _, dup := seen[enrichment.SourceUnit]; dup {
			continue
		}
		seen[enrichment.SourceUnit] = struct{}{}
		units = append(units, enrichment.SourceUnit)
	}
	return units
}

// ParseProjection rebuilds a catalog from a text projection. It exists so an
// existing Elements file can bootstrap the structured catalog when the JSON
// file is absent. "Appears in" lines are derived data and are skipped.
func ParseProjection(data []byte) (*Catalog, error) {
	catalog := NewCatalog()

	var currentKind Kind
	var currentEntity *Entity
	haveKind := false

	for lineNo, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimRight(raw, " \t")
		switch {
		case line == "" || line == "# Elements":
			continue
		case strings.HasPrefix(line, "## "):
			heading := strings.TrimSpace(strings.TrimPrefix(line, "## "))
			kind, ok := headingKinds[heading]
			if !ok {
				return nil, fmt.Errorf("projection line %d: unknown section %q", lineNo+1, heading)
			}
			currentKind = kind
			currentEntity = nil
			haveKind = true
		case strings.HasPrefix(line, "### "):
			if !haveKind {
				return nil, fmt.Errorf("projection line %d: entity before any section", lineNo+1)
			}
			name := strings.TrimSpace(strings.TrimPrefix(line, "### "))
			currentEntity = &Entity{Name: name, Kind: currentKind}
			catalog.Entities[name] = currentEntity
		case strings.HasPrefix(line, "Description: "):
			if currentEntity == nil {
				return nil, fmt.Errorf("projection line %d: description outside entity", lineNo+1)
			}
			currentEntity.BaseDescription = strings.TrimPrefix(line, "Description: ")
		case strings.HasPrefix(line, "Appears in: "):
			continue
		case strings.HasPrefix(line, "- "):
			if currentEntity == nil {
				return nil, fmt.Errorf("projection line %d: enrichment outside entity", lineNo+1)
			}
			match := enrichmentLine.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			currentEntity.Enrichments = append(currentEntity.Enrichments, Enrichment{
				Detail:     match[1],
				SourceUnit: match[2],
			})
		default:
			return nil, fmt.Errorf("projection line %d: unrecognized line %q", lineNo+1, line)
		}
	}
	return catalog, nil
}
