package migration

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/opst/somigrate/pkg/savedobjects"
	"github.com/opst/somigrate/pkg/savedobjects/indexmeta"
	"github.com/opst/somigrate/pkg/savedobjects/modelversion"
	"github.com/opst/somigrate/pkg/savedobjects/registry"
	"k8s.io/apimachinery/pkg/util/sets"
)

var (
	// ErrIndexNewer means the index has been migrated by a newer release.
	ErrIndexNewer = errors.New("migration: index is newer than the registered types")

	// ErrReindexRequired means the plan cannot be applied without moving documents.
	ErrReindexRequired = errors.New("migration: reindex is required")
)

// Status is the decision for a type.
type Status string

const (
	// the stored version equals the latest.
	UpToDate Status = "upToDate"

	// the stored version is older than the latest.
	// Mappings should be updated, and documents of the type should be picked up.
	Updated Status = "updated"

	// the index has no record of the type.
	New Status = "new"

	// the index has a legacy hash for the type, but it is not recorded in the hash-to-version map.
	// It is handled like New.
	UnknownLegacy Status = "unknownLegacy"

	// the stored version is newer than the latest.
	Newer Status = "newer"

	// the type was stored in another index, and it should be moved into this index.
	MovedIn Status = "movedIn"

	// the type was stored in this index, but now it belongs to another index.
	MovedOut Status = "movedOut"
)

// Action is what should be done on the index.
type Action string

const (
	ActionNone           Action = "none"
	ActionCreate         Action = "create"
	ActionUpdateMappings Action = "updateMappings"
	ActionReindex        Action = "reindex"
)

type TypeDecision struct {
	Type          savedobjects.Type `json:"type"`
	Status        Status            `json:"status"`
	IndexVersion  string            `json:"indexVersion,omitempty"`
	LatestVersion string            `json:"latestVersion,omitempty"`
	FromIndex     string            `json:"fromIndex,omitempty"`
	ToIndex       string            `json:"toIndex,omitempty"`

	// Retained is set on MovedOut types which the destination does not hold yet.
	// Their documents stay in this index, and so does their assignment.
	Retained bool `json:"retained,omitempty"`
}

// Plan is a migration plan for an index.
type Plan struct {
	Index  string           `json:"index"`
	Action Action           `json:"action"`
	Source indexmeta.Source `json:"source"`

	// Comparison between the latest mappings versions and versions stored in the index.
	Comparison modelversion.Status `json:"comparison"`

	// Types are decisions per type, sorted by type name.
	Types []TypeDecision `json:"types"`

	// Meta is `_meta` which should be stored after migration.
	Meta indexmeta.Meta `json:"meta"`
}

// TypesWith returns types having one of the statuses, sorted.
func (p Plan) TypesWith(status ...Status) []savedobjects.Type {
	ts := []savedobjects.Type{}
	for _, d := range p.Types {
		if slices.Contains(status, d.Status) {
			ts = append(ts, d.Type)
		}
	}
	return ts
}

// PickupTypes returns types whose documents should be migrated, sorted.
func (p Plan) PickupTypes() []savedobjects.Type {
	return p.TypesWith(Updated, MovedIn)
}

// RetainedTypes returns types moving out but kept in this index, sorted.
func (p Plan) RetainedTypes() []savedobjects.Type {
	ts := []savedobjects.Type{}
	for _, d := range p.Types {
		if d.Retained {
			ts = append(ts, d.Type)
		}
	}
	return ts
}

func (p Plan) String() string {
	lines := []string{fmt.Sprintf("%s: %s (versions from %s, %s)", p.Index, p.Action, p.Source, p.Comparison)}
	for _, d := range p.Types {
		line := fmt.Sprintf("  %s: %s", d.Type, d.Status)
		if d.IndexVersion != "" || d.LatestVersion != "" {
			line += fmt.Sprintf(" [%s -> %s]", orDash(d.IndexVersion), orDash(d.LatestVersion))
		}
		if d.FromIndex != "" || d.ToIndex != "" {
			line += fmt.Sprintf(" (%s -> %s)", orDash(d.FromIndex), orDash(d.ToIndex))
		}
		if d.Retained {
			line += " retained"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Live is `_meta` of live indices by name.
//
// An index without `_meta` maps to nil. Indices not in the map are regarded as missing.
type Live map[string]*indexmeta.Meta

// holds reports whether the index records the type as its own.
//
// Indices without indexTypesMap are regarded as in the legacy layout.
func holds(index string, meta *indexmeta.Meta, t savedobjects.Type) bool {
	home, ok := meta.IndexTypes().IndexOf(t)
	return ok && home == index
}

// holderOf finds the live index, other than except, which holds the type.
func (l Live) holderOf(t savedobjects.Type, except string) (string, *indexmeta.Meta, bool) {
	indices := make([]string, 0, len(l))
	for index := range l {
		indices = append(indices, index)
	}
	slices.Sort(indices)
	for _, index := range indices {
		if index == except {
			continue
		}
		if holds(index, l[index], t) {
			return index, l[index], true
		}
	}
	return "", nil, false
}

// Planner decides how indices should be migrated to the registered types.
type Planner struct {
	registry *registry.Registry
}

func NewPlanner(r *registry.Registry) *Planner {
	return &Planner{registry: r}
}

// Plan makes a migration plan for the index.
//
// # Args
//
// - index: name of the index.
//
// - exists: whether the index exists.
//
// - meta: `_meta` of the index. nil if the index has no `_meta`.
//
// - live: other live indices. nil if unknown.
// Without it, relocation into a missing index can not be detected,
// and types moving out are retained in this index.
//
// # Returns
//
// - Plan: the plan. It is returned even if error is ErrIndexNewer.
//
// - error: wraps ErrIndexNewer when some types in the index are newer than registered.
func (p *Planner) Plan(index string, exists bool, meta *indexmeta.Meta, live Live) (Plan, error) {
	current := p.registry.IndexTypesMap()
	types, _ := current.TypesIn(index)
	latest := p.registry.LatestMappingsVersions()

	plan := Plan{
		Index:      index,
		Source:     indexmeta.SourceNone,
		Comparison: modelversion.Equal,
		Types:      []TypeDecision{},
		Meta: indexmeta.Meta{
			MappingVersions: map[savedobjects.Type]string{},
			IndexTypesMap:   current,
		},
	}
	for _, t := range types {
		plan.Meta.MappingVersions[t] = latest[t]
	}

	if !exists {
		for _, t := range types {
			d := TypeDecision{Type: t, Status: New, LatestVersion: latest[t]}
			if from, fromMeta, ok := live.holderOf(t, index); ok {
				versions, _, _ := fromMeta.Versions()
				d.Status = MovedIn
				d.IndexVersion = versions[t]
				d.FromIndex = from
				d.ToIndex = index
			}
			plan.Types = append(plan.Types, d)
		}
		plan.Action = ActionCreate
		if len(plan.TypesWith(MovedIn)) != 0 {
			plan.Action = ActionReindex
		}
		return plan, nil
	}

	stored := meta.IndexTypes()
	versions, source, unknown := meta.Versions()
	unknownSet := sets.New(unknown...)
	plan.Source = source

	appVersions := make(map[savedobjects.Type]string, len(types))
	for _, t := range types {
		appVersions[t] = latest[t]
	}
	plan.Comparison = modelversion.CompareMaps(appVersions, versions).Status

	newer := []savedobjects.Type{}
	for _, t := range types {
		d := TypeDecision{Type: t, LatestVersion: latest[t]}
		iv, recorded := versions[t]
		if recorded {
			d.IndexVersion = iv
		}

		prev, assigned := stored.IndexOf(t)
		if !assigned {
			prev, _, assigned = live.holderOf(t, index)
		}
		if assigned && prev != index {
			d.Status = MovedIn
			d.FromIndex = prev
			d.ToIndex = index
			plan.Types = append(plan.Types, d)
			continue
		}

		switch {
		case source == indexmeta.SourceNone:
			// without any record, all types are handled as updated.
			d.Status = Updated
		case !recorded && unknownSet.Has(t):
			d.Status = UnknownLegacy
		case !recorded:
			d.Status = New
		default:
			switch c := modelversion.Compare(latest[t], iv); {
			case c == 0:
				d.Status = UpToDate
			case c > 0:
				d.Status = Updated
			default:
				d.Status = Newer
				newer = append(newer, t)
			}
		}
		plan.Types = append(plan.Types, d)
	}

	if storedTypes, ok := stored.TypesIn(index); ok {
		for _, t := range storedTypes {
			to, ok := current.IndexOf(t)
			if !ok || to == index {
				continue
			}
			d := TypeDecision{
				Type: t, Status: MovedOut, FromIndex: index, ToIndex: to,
				IndexVersion: versions[t], LatestVersion: latest[t],
			}
			if toMeta, ok := live[to]; !ok || !holds(to, toMeta, t) {
				d.Retained = true
				plan.Meta.IndexTypesMap = retain(plan.Meta.IndexTypesMap, t, to, index)
				if iv, ok := versions[t]; ok {
					plan.Meta.MappingVersions[t] = iv
				}
			}
			plan.Types = append(plan.Types, d)
		}
	}
	slices.SortFunc(plan.Types, func(a, b TypeDecision) int {
		return strings.Compare(string(a.Type), string(b.Type))
	})

	plan.Action = decideAction(plan, meta)

	if len(newer) != 0 {
		slices.Sort(newer)
		return plan, fmt.Errorf("%w: %s: %v", ErrIndexNewer, index, newer)
	}
	return plan, nil
}

// retain reassigns the type from the index to another.
func retain(m savedobjects.IndexTypesMap, t savedobjects.Type, from, to string) savedobjects.IndexTypesMap {
	m[from] = slices.DeleteFunc(m[from], func(x savedobjects.Type) bool { return x == t })
	m[to] = append(m[to], t)
	slices.Sort(m[to])
	return m
}

func decideAction(plan Plan, meta *indexmeta.Meta) Action {
	if len(plan.TypesWith(MovedIn)) != 0 {
		return ActionReindex
	}
	if plan.Source == indexmeta.SourceNone {
		return ActionUpdateMappings
	}
	if len(plan.TypesWith(Updated, New, UnknownLegacy)) != 0 {
		return ActionUpdateMappings
	}
	if plan.Source == indexmeta.SourceHashes {
		// versions should be recorded instead of md5 hashes.
		return ActionUpdateMappings
	}
	if meta.IndexTypesMap == nil || !sameAssignment(meta.IndexTypesMap, plan.Meta.IndexTypesMap) {
		return ActionUpdateMappings
	}
	return ActionNone
}

func sameAssignment(a, b savedobjects.IndexTypesMap) bool {
	return maps.EqualFunc(a, b, func(x, y []savedobjects.Type) bool {
		return sets.New(x...).Equal(sets.New(y...))
	})
}
