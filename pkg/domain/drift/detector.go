package drift

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
)

// Convention derives the signature keys entities and facts pair under.
type Convention interface {
	EntityKeys(e artifact.SpecEntity) []string
	FactKeys(f artifact.CodeFact) []string
}

// Detector pairs spec entities with code facts and grades every pairing.
type Detector struct {
	conv   Convention
	policy Policy
	isLink func(string) bool
	now    func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithPolicy overrides the grading policy.
func WithPolicy(p Policy) Option {
	return func(d *Detector) {
		if _, ok := ParseSeverity(string(p.UndocumentedSeverity)); !ok {
			p.UndocumentedSeverity = SeverityMinor
		}
		d.policy = p
	}
}

// WithClock sets the clock used for DetectedAt.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// WithLinkAttributes tells the detector which entity attributes hold references
// rather than comparable values.
func WithLinkAttributes(isLink func(string) bool) Option {
	return func(d *Detector) { d.isLink = isLink }
}

// NewDetector creates a detector using the given naming convention.
func NewDetector(conv Convention, opts ...Option) *Detector {
	d := &Detector{conv: conv, policy: DefaultPolicy(), now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// pairable reports whether an entity kind can pair with a fact kind.
func pairable(e artifact.EntityKind, f artifact.FactKind) bool {
	switch e {
	case artifact.KindDesignElement:
		return f == artifact.FactComponent || f == artifact.FactDataModel
	case artifact.KindAPIContract:
		return f == artifact.FactAPIEndpoint
	}
	return false
}

type run struct {
	entities []artifact.SpecEntity
	facts    []artifact.CodeFact
	byID     map[string]artifact.SpecEntity
	pairs    map[string]int // entity id -> fact index
	factUsed []bool
	realized map[string]string // entity id -> fact id that realizes it
}

// Detect computes the findings for the scope. Output is sorted by severity
// descending, then entity id, then status.
func (d *Detector) Detect(entities []artifact.SpecEntity, facts []artifact.CodeFact, scope Scope) []Finding {
	r := &run{
		entities: append([]artifact.SpecEntity(nil), entities...),
		facts:    append([]artifact.CodeFact(nil), facts...),
		pairs:    make(map[string]int),
		realized: make(map[string]string),
	}
	artifact.SortEntities(r.entities)
	artifact.SortFacts(r.facts)
	r.byID = artifact.Index(r.entities)
	r.factUsed = make([]bool, len(r.facts))

	d.pair(r)
	d.realize(r)

	now := d.now().UTC()
	inScope := make(map[artifact.EntityKind]bool)
	for _, k := range scope.SpecKinds() {
		inScope[k] = true
	}

	findings := make([]Finding, 0)
	seen := make(map[string]bool)
	for _, e := range r.entities {
		if !inScope[e.Kind] || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		if f, ok := d.entityFinding(r, e); ok {
			f.DetectedAt = now
			findings = append(findings, f)
		}
	}

	undocumented := make(map[artifact.FactKind]bool)
	for _, k := range scope.UndocumentedKinds() {
		undocumented[k] = true
	}
	for i, f := range r.facts {
		if r.factUsed[i] || !undocumented[f.Kind] || r.linked(f) {
			continue
		}
		findings = append(findings, Finding{
			ID:          artifact.StableID("drift", "", f.ID),
			CodeFactID:  f.ID,
			Kind:        string(f.Kind),
			Status:      StatusMissingInSpec,
			Severity:    d.policy.UndocumentedSeverity,
			Description: fmt.Sprintf("%s %s at %s is not documented in any spec", label(f.Kind), f.Name, f.Location),
			Document:    f.Location.Path,
			Location:    f.Location.String(),
			Hint:        "Run sync to add it to the spec, or reference a spec id in its doc comment.",
			DetectedAt:  now,
		})
	}

	Sort(findings)
	return findings
}

// Sort orders findings by severity descending, then id, then status.
func Sort(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.SortKey() != b.SortKey() {
			return a.SortKey() < b.SortKey()
		}
		return a.Status < b.Status
	})
}

// pair assigns facts to design elements and contracts, first by declared
// trace id, then by signature key.
func (d *Detector) pair(r *run) {
	candidates := make([]artifact.SpecEntity, 0)
	seen := make(map[string]bool)
	for _, e := range r.entities {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		if e.Kind == artifact.KindDesignElement || e.Kind == artifact.KindAPIContract {
			candidates = append(candidates, e)
		}
	}

	for _, e := range candidates {
		for i, f := range r.facts {
			if r.factUsed[i] || !pairable(e.Kind, f.Kind) || !contains(f.TraceIDs, e.ID) {
				continue
			}
			r.pairs[e.ID] = i
			r.factUsed[i] = true
			break
		}
	}

	for _, e := range candidates {
		if _, done := r.pairs[e.ID]; done {
			continue
		}
		keys := d.conv.EntityKeys(e)
		if len(keys) == 0 {
			continue
		}
	facts:
		for i, f := range r.facts {
			if r.factUsed[i] || !pairable(e.Kind, f.Kind) || r.tracedElsewhere(f, e.ID) {
				continue
			}
			for _, fk := range d.conv.FactKeys(f) {
				if contains(keys, fk) {
					r.pairs[e.ID] = i
					r.factUsed[i] = true
					break facts
				}
			}
		}
	}
}

// tracedElsewhere reports whether a fact declares a trace to another design
// element or contract, which rules it out for key pairing.
func (r *run) tracedElsewhere(f artifact.CodeFact, id string) bool {
	for _, t := range f.TraceIDs {
		if t == id {
			continue
		}
		if e, ok := r.byID[t]; ok && (e.Kind == artifact.KindDesignElement || e.Kind == artifact.KindAPIContract) {
			return true
		}
	}
	return false
}

// linked reports whether an unpaired fact still references a declared entity.
func (r *run) linked(f artifact.CodeFact) bool {
	for _, t := range f.TraceIDs {
		if _, ok := r.byID[t]; ok {
			return true
		}
	}
	return false
}

// realize propagates implementation from paired entities and traced facts
// along satisfies and implements links until nothing changes.
func (d *Detector) realize(r *run) {
	for id, i := range r.pairs {
		r.realized[id] = r.facts[i].ID
	}
	for _, f := range r.facts {
		for _, t := range f.TraceIDs {
			if e, ok := r.byID[t]; ok && e.Kind != artifact.KindDesignElement && e.Kind != artifact.KindAPIContract {
				if _, done := r.realized[t]; !done {
					r.realized[t] = f.ID
				}
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, e := range r.entities {
			factID, ok := r.realized[e.ID]
			if !ok {
				continue
			}
			if e.Kind == artifact.KindTask && !taskDone(e) {
				continue
			}
			for _, l := range e.Links {
				if !l.Relation.Structural() {
					continue
				}
				target, exists := r.byID[l.Target]
				if !exists || target.Kind == artifact.KindDesignElement || target.Kind == artifact.KindAPIContract {
					continue
				}
				if _, done := r.realized[l.Target]; !done {
					r.realized[l.Target] = factID
					changed = true
				}
			}
		}
		// done tasks are realized by any realized entity they implement
		for _, e := range r.entities {
			if e.Kind != artifact.KindTask || !taskDone(e) {
				continue
			}
			if _, done := r.realized[e.ID]; done {
				continue
			}
			for _, l := range e.Links {
				if factID, ok := r.realized[l.Target]; ok && l.Relation.Structural() {
					r.realized[e.ID] = factID
					changed = true
					break
				}
			}
		}
	}
}

func (d *Detector) entityFinding(r *run, e artifact.SpecEntity) (Finding, bool) {
	base := Finding{
		SpecEntityID: e.ID,
		Kind:         string(e.Kind),
		Document:     e.SourceDocument,
		Location:     fmt.Sprintf("%s:%d", e.SourceDocument, e.SourceLine),
	}

	switch e.Kind {
	case artifact.KindDesignElement, artifact.KindAPIContract:
		i, ok := r.pairs[e.ID]
		if !ok {
			return d.missing(e, base), true
		}
		fact := r.facts[i]
		base.ID = artifact.StableID("drift", e.ID, fact.ID)
		base.CodeFactID = fact.ID
		base.Differences = compare(e, fact, d.isLink)
		if len(base.Differences) == 0 {
			base.Status = StatusMatched
			base.Severity = SeverityMinor
			base.Description = fmt.Sprintf("%s matches %s %s at %s", e.ID, label(fact.Kind), fact.Name, fact.Location)
			return base, true
		}
		base.Status = StatusChanged
		base.Severity = SeverityMinor
		names := make([]string, len(base.Differences))
		for j, diff := range base.Differences {
			names[j] = diff.Attribute
			if diff.Severity.Rank() > base.Severity.Rank() {
				base.Severity = diff.Severity
			}
		}
		base.Description = fmt.Sprintf("%s differs from %s %s at %s: %s", e.ID, label(fact.Kind), fact.Name, fact.Location, strings.Join(names, ", "))
		base.Hint = "Run sync to update the spec from code, or change the code to match the spec."
		return base, true

	case artifact.KindTask:
		if !taskDone(e) {
			return Finding{}, false
		}
	}

	factID, ok := r.realized[e.ID]
	if !ok {
		return d.missing(e, base), true
	}
	base.ID = artifact.StableID("drift", e.ID, factID)
	base.CodeFactID = factID
	base.Status = StatusMatched
	base.Severity = SeverityMinor
	base.Description = fmt.Sprintf("%s is implemented by %s", e.ID, factID)
	return base, true
}

func (d *Detector) missing(e artifact.SpecEntity, base Finding) Finding {
	base.ID = artifact.StableID("drift", e.ID, "")
	base.Status = StatusMissingInCode
	base.Severity = SeverityMajor
	if e.Kind == artifact.KindRequirement {
		prio := strings.ToLower(strings.TrimSpace(e.Attr("priority")))
		for _, p := range d.policy.CriticalPriorities {
			if prio != "" && strings.EqualFold(p, prio) {
				base.Severity = SeverityCritical
			}
		}
	}
	title := e.Title
	if title == "" || title == e.ID {
		base.Description = fmt.Sprintf("%s has no implementation in code", e.ID)
	} else {
		base.Description = fmt.Sprintf("%s (%s) has no implementation in code", e.ID, title)
	}
	base.Hint = "Implement it, reference its id in a doc comment, or remove it from the spec."
	return base
}

func taskDone(e artifact.SpecEntity) bool {
	switch strings.ToLower(e.Attr("status")) {
	case "done", "complete", "completed", "closed", "x":
		return true
	}
	return false
}

func label(k artifact.FactKind) string {
	return strings.ReplaceAll(string(k), "_", " ")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
