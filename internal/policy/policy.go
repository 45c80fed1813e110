// Package policy holds the tunable scoring and planning constants.
// The defaults reproduce the reference behavior; a YAML file can
// override any of them per deployment.
package policy

import (
	"os"

	"github.com/rotisserie/eris"
)

// Thresholds maps a 0-100 score onto a priority tier. These are
// pipeline-wide constants, not per-contact values.
type Thresholds struct {
	High   int `yaml:"high"`
	Medium int `yaml:"medium"`
}

// Fallback configures the deterministic heuristic used when the scoring
// oracle is unavailable or returns a malformed response.
type Fallback struct {
	IndustryMatch int `yaml:"industry_match"`
	Base          int `yaml:"base"`

	ExecTitleBonus   int `yaml:"exec_title_bonus"`
	ProviderOrgBonus int `yaml:"provider_org_bonus"`

	ExecTitleKeywords   []string `yaml:"exec_title_keywords"`
	ProviderOrgKeywords []string `yaml:"provider_org_keywords"`
}

// Templates holds the role-based outreach message templates. Each is a
// fmt string receiving (contact name, user company, contact company, goal,
// conference).
type Templates struct {
	ExecutiveMessage string `yaml:"executive_message"`
	GeneralMessage   string `yaml:"general_message"`

	HighPriorityReason string `yaml:"high_priority_reason"` // (company, industry)
	GeneralReason      string `yaml:"general_reason"`       // (company, industry)
}

// Policy is the full scoring and planning policy.
type Policy struct {
	Thresholds Thresholds `yaml:"thresholds"`
	Fallback   Fallback   `yaml:"fallback"`
	Slots      []string   `yaml:"slots"`
	Templates  Templates  `yaml:"templates"`
}

// Default returns the reference policy.
func Default() *Policy {
	return &Policy{
		Thresholds: Thresholds{High: 75, Medium: 50},
		Fallback: Fallback{
			IndustryMatch:    60,
			Base:             30,
			ExecTitleBonus:   20,
			ProviderOrgBonus: 15,
			ExecTitleKeywords: []string{
				"ceo", "cto", "cfo", "coo", "chief", "vp", "vice president",
				"president", "director", "founder", "partner",
			},
			ProviderOrgKeywords: []string{
				"hospital", "health system", "medical center", "clinic",
			},
		},
		Slots: []string{
			"Day 1, 9:00 AM", "Day 1, 10:00 AM", "Day 1, 11:00 AM",
			"Day 1, 1:00 PM", "Day 1, 2:00 PM", "Day 1, 3:00 PM",
			"Day 2, 9:00 AM", "Day 2, 10:00 AM", "Day 2, 11:00 AM",
			"Day 2, 1:00 PM", "Day 2, 2:00 PM", "Day 2, 3:00 PM",
			"Day 3, 9:00 AM", "Day 3, 10:00 AM", "Day 3, 11:00 AM",
		},
		Templates: Templates{
			ExecutiveMessage: "Hi %s, I'm with %s and have been following %s's work closely. I'd value 30 minutes of your time to discuss %s. Would you be open to meeting at %s?",
			GeneralMessage:   "Hi %s, I'm with %s and noticed your work at %s. I'd love to discuss %s. Available for coffee at %s?",

			HighPriorityReason: "Strategic partnership opportunity with %s in %s",
			GeneralReason:      "Networking opportunity with %s in %s",
		},
	}
}

// Load reads a policy file and overlays it on the defaults. Zero values
// in the file keep the default.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "policy: read %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML policy data over the defaults.
func Parse(data []byte) (*Policy, error) {
	p := Default()
	if err := unmarshalStrict(data, p); err != nil {
		return nil, eris.Wrap(err, "policy: parse")
	}
	if p.Thresholds.High <= p.Thresholds.Medium {
		return nil, eris.Errorf("policy: high threshold %d must exceed medium %d",
			p.Thresholds.High, p.Thresholds.Medium)
	}
	if len(p.Slots) == 0 {
		return nil, eris.New("policy: slot list is empty")
	}
	return p, nil
}
