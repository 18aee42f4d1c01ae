package rules

import "fmt"

// Rule is one declarative entry in the rule registry: a trigger predicate
// over a FeatureContext, an action formula, and static metadata. Rules must
// be total and side-effect-free: missing metrics mean "do not trigger",
// never a panic, and no rule may observe another rule's output.
type Rule struct {
	// ID uniquely identifies the rule. Lexical order of IDs breaks
	// priority ties during conflict resolution.
	ID string

	// Name is a human-readable rule label.
	Name string

	// ActionType is the kind of change the rule proposes.
	ActionType ActionType

	// RiskTier is the static risk classification of the rule's changes.
	RiskTier RiskTier

	// Priority ranks urgency; lower is more urgent.
	Priority int

	// Predicate reports whether the rule triggers for the context. It must
	// return false when required metrics are absent.
	Predicate func(*FeatureContext) bool

	// Action computes the current and recommended values. ok=false means
	// the rule cannot produce a change for this context (e.g. the target
	// value is missing) and no recommendation is emitted.
	Action func(*FeatureContext) (current, recommended float64, ok bool)

	// Rationale renders the human-readable explanation.
	Rationale func(fc *FeatureContext, current, recommended float64) string

	// Confidence computes the confidence in [0, 1]. Nil means the default
	// volume-based confidence.
	Confidence func(*FeatureContext) float64

	// Evidence collects the metric values the rule triggered on.
	Evidence func(*FeatureContext) map[string]any
}

// Registry is a statically constructed, ordered table of rules. Rules are
// evaluated in registration order; because rules are independent, the order
// affects only the ordering of the produced list, never its contents.
type Registry struct {
	rules []*Rule
	byID  map[string]*Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*Rule),
	}
}

// Register adds a rule to the registry. Duplicate IDs and rules missing a
// predicate or action are rejected.
func (r *Registry) Register(rule *Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("rule id must not be empty")
	}
	if _, exists := r.byID[rule.ID]; exists {
		return fmt.Errorf("duplicate rule id %q", rule.ID)
	}
	if rule.Predicate == nil {
		return fmt.Errorf("rule %q: predicate must not be nil", rule.ID)
	}
	if rule.Action == nil {
		return fmt.Errorf("rule %q: action must not be nil", rule.ID)
	}
	if rule.Rationale == nil {
		return fmt.Errorf("rule %q: rationale must not be nil", rule.ID)
	}

	r.rules = append(r.rules, rule)
	r.byID[rule.ID] = rule
	return nil
}

// MustRegister registers a rule and panics on error. It is intended for
// building the static catalog at startup, where a bad rule definition is a
// programming error.
func (r *Registry) MustRegister(rule *Rule) {
	if err := r.Register(rule); err != nil {
		panic(err)
	}
}

// Rules returns the registered rules in registration order.
func (r *Registry) Rules() []*Rule {
	out := make([]*Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Get returns the rule with the given ID, or nil.
func (r *Registry) Get(id string) *Rule {
	return r.byID[id]
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.rules)
}
