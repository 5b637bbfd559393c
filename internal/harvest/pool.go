package harvest

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/Sternrassler/sonar-harvest/pkg/model"
	"github.com/Sternrassler/sonar-harvest/pkg/sonar"
	"golang.org/x/sync/errgroup"
)

// unitResult is the outcome of one per-project unit.
type unitResult struct {
	retrieved bool
	files     []string
	failures  []sonar.Failure
}

func failed(p *model.Project, err error) unitResult {
	return unitResult{failures: []sonar.Failure{{Resource: p.Key, Err: err}}}
}

type unitFunc func(ctx context.Context, i int, p *model.Project) unitResult

// forEachProject runs unit once per project on at most Workers goroutines
// and folds the results into res. Once ctx is done no further unit starts
// and the first project left out is reported as failed. Files and failures
// are sorted so reports do not depend on scheduling.
func (h *Harvester) forEachProject(ctx context.Context, res *PhaseResult, projects []*model.Project, unit unitFunc) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(h.opts.Workers)

	for i, p := range projects {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			res.Failures = append(res.Failures, sonar.Failure{Resource: p.Key, Err: err})
			mu.Unlock()
			break
		}

		g.Go(func() error {
			r := unit(ctx, i, p)

			mu.Lock()
			if r.retrieved {
				res.Retrieved++
			}
			res.Files = append(res.Files, r.files...)
			res.Failures = append(res.Failures, r.failures...)
			mu.Unlock()

			if h.opts.PartitionWait > 0 && ctx.Err() == nil {
				h.logger.Info().
					Str("project", p.Key).
					Dur("wait", h.opts.PartitionWait).
					Msg("Waiting before next project")
				_ = h.sleep(ctx, h.opts.PartitionWait)
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(res.Files)
	slices.SortStableFunc(res.Failures, func(a, b sonar.Failure) int {
		return cmp.Compare(a.Resource, b.Resource)
	})
}
