package powercfg

import (
	_ "embed"
	"strings"

	"github.com/BurntSushi/toml"
	pkgerrors "github.com/pkg/errors"

	"github.com/aipc-tools/powerd/pkg/powerplan"
)

//go:embed names.toml
var defaultNamesTOML string

// NameTable maps localized scheme display names to plans. Entries are
// tried in order.
type NameTable struct {
	Plans []PlanNames `toml:"plan"`
}

// PlanNames holds the display names of one plan.
type PlanNames struct {
	Plan  powerplan.Plan `toml:"name"`
	Match []string       `toml:"match"`
}

// DefaultNames returns the embedded name table.
func DefaultNames() NameTable {
	t, err := ParseNames(defaultNamesTOML)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseNames decodes a name table from TOML.
func ParseNames(data string) (NameTable, error) {
	var t NameTable
	if _, err := toml.Decode(data, &t); err != nil {
		return NameTable{}, pkgerrors.Wrapf(err, "failed to decode plan names")
	}
	return t, t.validate()
}

// LoadNames reads a name table from a TOML file. An empty path returns
// DefaultNames.
func LoadNames(path string) (NameTable, error) {
	if path == "" {
		return DefaultNames(), nil
	}
	var t NameTable
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return NameTable{}, pkgerrors.Wrapf(err, "failed to decode plan names from %s", path)
	}
	return t, t.validate()
}

func (t NameTable) validate() error {
	for _, p := range t.Plans {
		if !p.Plan.Valid() {
			return pkgerrors.Wrapf(powerplan.ErrInvalidPlan, "plan names: %q", p.Plan)
		}
	}
	return nil
}

// Lookup finds the first plan whose display name appears in text.
func (t NameTable) Lookup(text string) (powerplan.Plan, bool) {
	text = strings.ToLower(text)
	for _, p := range t.Plans {
		for _, name := range p.Match {
			if name != "" && strings.Contains(text, strings.ToLower(name)) {
				return p.Plan, true
			}
		}
	}
	return "", false
}
