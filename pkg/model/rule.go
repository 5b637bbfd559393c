package model

// Rule is a coding rule from /rules/search, keyed by Key.
type Rule struct {
	Key      string `json:"key"`
	Repo     string `json:"repo"`
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Status   string `json:"status"`
	Type     string `json:"type"`
	Lang     string `json:"lang"`
	LangName string `json:"langName"`
}

// SameAs reports whether r and other are the same rule.
func (r Rule) SameAs(other Rule) bool {
	return r.Key == other.Key
}
