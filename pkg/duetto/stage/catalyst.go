package stage

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"github.com/randalmurphal/duetto/pkg/duetto/chain"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// Catalyst categories.
const (
	CatalystMergerAcquisition       = "merger_acquisition"
	CatalystFDA                     = "fda_catalyst"
	CatalystOfferingDilution        = "offering_dilution"
	CatalystContractPartnership     = "contract_partnership"
	CatalystInsiderActivity         = "insider_activity"
	CatalystBankruptcyRestructuring = "bankruptcy_restructuring"
)

type catalystRule struct {
	category string
	patterns []*regexp.Regexp
}

func compileWords(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(`(?i)\b` + w + `\b`)
	}
	return out
}

// catalystRules is ordered; Classify reports categories in this order.
var catalystRules = []catalystRule{
	{CatalystMergerAcquisition, compileWords(
		"merger", "acquisition", "acquire[sd]?", "buyout", "tender offer",
		"definitive agreement", "going private", "takeover",
	)},
	{CatalystFDA, compileWords(
		"fda", "pdufa", "approval", "clearance", "phase [123]", "clinical trial",
		"nda", "bla", "inda", "breakthrough therapy",
	)},
	{CatalystOfferingDilution, compileWords(
		"offering", "placement", "dilution", "shelf registration", "s-3",
		"securities act", "prospectus", "warrant",
	)},
	{CatalystContractPartnership, compileWords(
		"contract", "agreement", "partnership", "license", "collaboration",
		"alliance", "distribution", "supply agreement",
	)},
	{CatalystInsiderActivity, compileWords(
		"form 4", "insider", "director", "officer", "purchase", "acquisition of",
		"open market",
	)},
	{CatalystBankruptcyRestructuring, compileWords(
		"bankruptcy", "chapter 11", "chapter 7", "restructuring", "default",
		"insolvency",
	)},
}

// Catalysts lists every known catalyst category.
func Catalysts() []string {
	out := make([]string, len(catalystRules))
	for i, r := range catalystRules {
		out[i] = r.category
	}
	return out
}

// Classify returns the catalyst categories whose patterns match the event's
// title or summary.
func Classify(evt event.Event) []string {
	text := strings.ToLower(evt.Text())
	var cats []string
	for _, rule := range catalystRules {
		for _, re := range rule.patterns {
			if re.MatchString(text) {
				cats = append(cats, rule.category)
				break
			}
		}
	}
	return cats
}

// Classifier tags events with catalysts and upgrades their priority.
// M&A, FDA, and bankruptcy catalysts raise priority to High; partnerships
// and insider activity raise Low to Medium. Catalysts are stored in
// Payload["catalysts"].
type Classifier struct {
	name string
}

var _ chain.Stage = (*Classifier)(nil)

// NewClassifier creates a classify stage.
func NewClassifier(name string) *Classifier {
	return &Classifier{name: name}
}

// Name implements chain.Stage.
func (c *Classifier) Name() string { return c.name }

// Process implements chain.Stage. It never drops.
func (c *Classifier) Process(_ context.Context, evt event.Event) (chain.Outcome, error) {
	cats := Classify(evt)

	switch {
	case hasAny(cats, CatalystMergerAcquisition, CatalystFDA, CatalystBankruptcyRestructuring):
		evt = evt.WithPriority(event.High)
	case hasAny(cats, CatalystContractPartnership, CatalystInsiderActivity):
		if evt.Priority == event.Low {
			evt = evt.WithPriority(event.Medium)
		}
	}

	if cats == nil {
		cats = []string{}
	}
	return chain.Pass(evt.WithPayloadValue("catalysts", cats)), nil
}

func hasAny(cats []string, want ...string) bool {
	for _, w := range want {
		if slices.Contains(cats, w) {
			return true
		}
	}
	return false
}

// CatalystFilter passes only events tagged with one of the allowed
// catalysts. Events that were not classified upstream are classified here.
type CatalystFilter struct {
	name  string
	allow []string
}

var _ chain.Stage = (*CatalystFilter)(nil)

// NewCatalystFilter creates a catalyst allow-list filter. An empty allow
// list passes everything.
func NewCatalystFilter(name string, allow []string) *CatalystFilter {
	return &CatalystFilter{name: name, allow: slices.Clone(allow)}
}

// Name implements chain.Stage.
func (f *CatalystFilter) Name() string { return f.name }

// Process implements chain.Stage.
func (f *CatalystFilter) Process(_ context.Context, evt event.Event) (chain.Outcome, error) {
	if len(f.allow) == 0 {
		return chain.Pass(evt), nil
	}
	cats := evt.Catalysts()
	if _, tagged := evt.Payload["catalysts"]; !tagged {
		cats = Classify(evt)
	}
	if hasAny(cats, f.allow...) {
		return chain.Pass(evt), nil
	}
	return chain.Drop("no allowed catalyst"), nil
}
