// Package checks defines the pluggable compliance check framework: each
// Module consumes the shared scan context (site snapshot plus registry
// records) and produces a typed, evidence-bearing result. Modules are
// read-only and independent; absence of input data yields an inconclusive
// result, never a failure, since missing data is not evidence of
// non-compliance.
package checks

import (
	"context"

	"github.com/provmon/provmon/internal/crawler"
	"github.com/provmon/provmon/internal/matching"
	"github.com/provmon/provmon/internal/registry"
)

// Status is the outcome class of one check.
type Status string

const (
	StatusPass         Status = "pass"
	StatusFail         Status = "fail"
	StatusWarn         Status = "warn"
	StatusInconclusive Status = "inconclusive"
)

// Severity ranks how serious a failing check is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Tier is the subscription level at which a check's full detail is visible.
type Tier string

const (
	TierFree   Tier = "free"
	TierReport Tier = "report"
	TierShield Tier = "shield"
)

var tierOrder = map[Tier]int{TierFree: 0, TierReport: 1, TierShield: 2}

// ValidTier reports whether t names a known tier.
func ValidTier(t Tier) bool {
	_, ok := tierOrder[t]
	return ok
}

// TierAtLeast reports whether have grants visibility into want.
func TierAtLeast(have, want Tier) bool {
	return tierOrder[have] >= tierOrder[want]
}

// Context is the shared, immutable input to every check in one scan.
type Context struct {
	NPI       string
	URL       string
	Snapshot  *crawler.Snapshot
	Org       *registry.OrgRecord
	Providers []registry.ProviderRecord
	Synonyms  matching.SynonymTable
}

// Result is the output of one check execution. Created once, never
// modified.
type Result struct {
	ID               string         `json:"id"`
	Category         string         `json:"category"`
	Name             string         `json:"name"`
	Status           Status         `json:"status"`
	Score            int            `json:"score"`
	Title            string         `json:"title"`
	Detail           string         `json:"detail"`
	Evidence         map[string]any `json:"evidence,omitempty"`
	RemediationSteps []string       `json:"remediation_steps,omitempty"`
	Severity         Severity       `json:"severity"`
	Tier             Tier           `json:"tier"`
}

// Module is one independent compliance check.
type Module interface {
	ID() string
	Category() string
	Name() string
	Severity() Severity
	Tier() Tier
	Run(ctx context.Context, sc *Context) Result
}

// Registry holds the ordered set of check modules.
type Registry struct {
	modules []Module
}

// NewRegistry returns a registry with the default module set.
func NewRegistry() *Registry {
	return &Registry{modules: []Module{
		&AddressCheck{},
		&PhoneCheck{},
		&TaxonomyCheck{},
		&RosterCountCheck{},
		&RosterNameCheck{},
	}}
}

// Register appends a module.
func (r *Registry) Register(m Module) {
	r.modules = append(r.modules, m)
}

// ForTier returns the modules visible at the given tier, in registration
// order.
func (r *Registry) ForTier(tier Tier) []Module {
	var out []Module
	for _, m := range r.modules {
		if TierAtLeast(tier, m.Tier()) {
			out = append(out, m)
		}
	}
	return out
}

// All returns every registered module.
func (r *Registry) All() []Module {
	return r.modules
}

// Inconclusive builds the no-penalty result used when a check's required
// inputs are missing or the check could not complete.
func Inconclusive(m Module, title, detail string) Result {
	return inconclusive(m, title, detail)
}

func inconclusive(m Module, title, detail string) Result {
	return Result{
		ID:       m.ID(),
		Category: m.Category(),
		Name:     m.Name(),
		Status:   StatusInconclusive,
		Score:    0,
		Title:    title,
		Detail:   detail,
		Severity: m.Severity(),
		Tier:     m.Tier(),
	}
}
