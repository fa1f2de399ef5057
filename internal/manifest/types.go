package manifest

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// UnitStatus represents the lifecycle of one processing unit (chapter/section).
type UnitStatus string

const (
	UnitPending      UnitStatus = "pending"
	UnitAnalyzed     UnitStatus = "analyzed"
	UnitIllustrating UnitStatus = "illustrating"
	UnitIllustrated  UnitStatus = "illustrated"
	UnitError        UnitStatus = "error"
)

var allUnitStatuses = []UnitStatus{
	UnitPending,
	UnitAnalyzed,
	UnitIllustrating,
	UnitIllustrated,
	UnitError,
}

// KBStatus represents the lifecycle of the shared knowledge base.
type KBStatus string

const (
	KBPending    KBStatus = "pending"
	KBInProgress KBStatus = "inprogress"
	KBComplete   KBStatus = "complete"
	KBError      KBStatus = "error"
)

// AllUnitStatuses returns the ordered list of known unit statuses.
func AllUnitStatuses() []UnitStatus {
	cp := make([]UnitStatus, len(allUnitStatuses))
	copy(cp, allUnitStatuses)
	return cp
}

// ParseUnitStatus converts a string into a known UnitStatus.
func ParseUnitStatus(value string) (UnitStatus, bool) {
	normalized := UnitStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allUnitStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether a unit status admits no further transitions
// short of an explicit reset.
func (s UnitStatus) IsTerminal() bool {
	return s == UnitIllustrated || s == UnitError
}

// UnitState captures per-unit progress and metadata.
type UnitState struct {
	Status        UnitStatus `json:"status"`
	AnalyzedAt    *time.Time `json:"analyzed_at,omitempty"`
	IllustratedAt *time.Time `json:"illustrated_at,omitempty"`
	FactCount     *int       `json:"fact_count,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Manifest is the persisted processing record for one document.
type Manifest struct {
	Version            int                  `json:"version"`
	DocumentID         string               `json:"document_id"`
	KnowledgeBase      KBStatus             `json:"knowledge_base_status"`
	AnalyzeComplete    bool                 `json:"analyze_phase_complete"`
	IllustrateComplete bool                 `json:"illustrate_phase_complete"`
	Units              map[string]UnitState `json:"units"`
	LastUpdated        time.Time            `json:"last_updated"`
}

// CurrentVersion is the manifest schema version written by this build.
const CurrentVersion = 1

// NewManifest returns a manifest populated with defaults. An absent manifest
// file loads as exactly this value: "not yet initialized" is valid state.
func NewManifest() *Manifest {
	return &Manifest{
		Version:       CurrentVersion,
		KnowledgeBase: KBPending,
		Units:         make(map[string]UnitState),
	}
}

// UnitIDs returns all unit ids in ascending order.
func (m *Manifest) UnitIDs() []string {
	ids := make([]string, 0, len(m.Units))
	for id := range m.Units {
		ids = append(ids, id)
	}
	SortUnitIDs(ids)
	return ids
}

// CountByStatus returns the number of units currently in the given status.
func (m *Manifest) CountByStatus(status UnitStatus) int {
	count := 0
	for _, unit := range m.Units {
		if unit.Status == status {
			count++
		}
	}
	return count
}

// SortUnitIDs orders unit ids ascending, comparing numerically when both ids
// are integers so "2" sorts before "10".
func SortUnitIDs(ids []string) {
	slices.SortFunc(ids, compareUnitIDs)
}

func compareUnitIDs(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return cmp.Compare(an, bn)
	}
	return strings.Compare(a, b)
}
