package harvest

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/sonar-harvest/internal/store"
	"github.com/Sternrassler/sonar-harvest/pkg/sonar"
)

// ViolationsKind is one of the three violation sets written per project.
type ViolationsKind struct {
	Name   string
	Dir    string
	Filter sonar.ViolationsFilter
}

var (
	KindFixed   = ViolationsKind{Name: "fixed", Dir: store.FixedDir, Filter: sonar.FilterFixed}
	KindOpen    = ViolationsKind{Name: "open", Dir: store.OpenDir, Filter: sonar.FilterOpen}
	KindWontFix = ViolationsKind{Name: "wontfix-fp", Dir: store.WontFixDir, Filter: sonar.FilterWontFixFalsePositive}
)

// AllKinds lists the kinds in harvest order.
var AllKinds = []ViolationsKind{KindFixed, KindOpen, KindWontFix}

// ParseKind returns the kind named s.
func ParseKind(s string) (ViolationsKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllKinds {
		if k.Name == name {
			return k, nil
		}
	}
	return ViolationsKind{}, fmt.Errorf("unknown violations kind %q (want fixed, open or wontfix-fp)", s)
}

// PhaseName is the report name of the kind's phase.
func (k ViolationsKind) PhaseName() string {
	return "violations-" + k.Name
}
