package stage

import (
	"context"
	"fmt"
	"regexp"

	"github.com/randalmurphal/duetto/pkg/duetto/chain"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// DefaultNoisePatterns match routine filings.
var DefaultNoisePatterns = []string{
	`\broutine\b.*\bfiling\b`,
	`\bquarterly report\b`,
	`\bannual report\b`,
	`\b10-k\b`,
	`\b10-q\b`,
	`\bproxy statement\b`,
}

// Noise drops events whose title or summary matches a noise pattern.
type Noise struct {
	name     string
	patterns []*regexp.Regexp
}

var _ chain.Stage = (*Noise)(nil)

// NewNoise compiles patterns case-insensitively. A nil slice uses
// DefaultNoisePatterns.
func NewNoise(name string, patterns []string) (*Noise, error) {
	if patterns == nil {
		patterns = DefaultNoisePatterns
	}
	n := &Noise{name: name}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("noise pattern %q: %w", p, err)
		}
		n.patterns = append(n.patterns, re)
	}
	return n, nil
}

// Name implements chain.Stage.
func (n *Noise) Name() string { return n.name }

// Process implements chain.Stage.
func (n *Noise) Process(_ context.Context, evt event.Event) (chain.Outcome, error) {
	text := evt.Text()
	for _, re := range n.patterns {
		if re.MatchString(text) {
			return chain.Drop("noise: " + re.String()[4:]), nil
		}
	}
	return chain.Pass(evt), nil
}
