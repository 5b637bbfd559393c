package sonar

import (
	"fmt"
	"strings"
)

// ProjectMetricKeys are requested for the project itself (qualifier TRK).
const ProjectMetricKeys = "complexity_in_classes,last_commit_date,ncloc,sqale_rating,overall_coverage," +
	"alert_status,reliability_rating,security_rating,classes"

// MeasuresProfile captures how a server deployment exposes file measures.
type MeasuresProfile struct {
	Name string

	// ComponentParam names the project selector of /measures/component_tree.
	ComponentParam string

	// FileMetricKeys are requested for every file.
	FileMetricKeys string

	// ProjectMetrics enables the project-level measures request.
	ProjectMetrics bool

	// ResourcesListing lists files through the pre-5.x /resources endpoint,
	// without measures.
	ResourcesListing bool
}

var (
	ProfileDefault = MeasuresProfile{
		Name:           "default",
		ComponentParam: "component",
		FileMetricKeys: "ncloc,overall_coverage,coverage,lines,complexity,cognitive_complexity",
		ProjectMetrics: true,
	}

	// ProfileApache matches servers that predate cognitive complexity and
	// still name the component parameter baseComponentKey.
	ProfileApache = MeasuresProfile{
		Name:           "apache",
		ComponentParam: "baseComponentKey",
		FileMetricKeys: "ncloc,overall_coverage,coverage,lines,complexity",
		ProjectMetrics: true,
	}

	ProfileEclipse = MeasuresProfile{
		Name:             "eclipse",
		ResourcesListing: true,
	}
)

// ParseProfile returns the measures profile named s. Empty means default.
func ParseProfile(s string) (MeasuresProfile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", ProfileDefault.Name:
		return ProfileDefault, nil
	case ProfileApache.Name:
		return ProfileApache, nil
	case ProfileEclipse.Name:
		return ProfileEclipse, nil
	default:
		return MeasuresProfile{}, fmt.Errorf("unknown measures profile %q (want default, apache or eclipse)", s)
	}
}
