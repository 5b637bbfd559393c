package sonar

import (
	"context"

	"github.com/Sternrassler/sonar-harvest/pkg/model"
	"github.com/Sternrassler/sonar-harvest/pkg/pagination"
)

// RulesRetriever lists the Java rule catalog.
type RulesRetriever struct {
	base
}

// NewRulesRetriever creates a rules retriever.
func NewRulesRetriever(getter pagination.Getter, opts Options) (*RulesRetriever, error) {
	b, err := newBase(getter, opts, DefaultRulesThrottle, "rules")
	if err != nil {
		return nil, err
	}
	return &RulesRetriever{base: b}, nil
}

// Retrieve returns every Java rule.
func (r *RulesRetriever) Retrieve(ctx context.Context) ([]model.Rule, error) {
	r.fetcher.Reset()
	r.logger.Info().Msg("Retrieving Java rules")

	q := r.query("/rules/search", "rules", map[string]string{"languages": "java"})
	items, err := r.fetcher.Fetch(ctx, q, pagination.Limits{})
	if err != nil {
		return nil, err
	}

	rules, err := decodeAll[model.Rule](items)
	if err != nil {
		return nil, err
	}
	r.logger.Info().Int("count", len(rules)).Msg("Rules retrieved")
	return rules, nil
}
