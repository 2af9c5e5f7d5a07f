package ranking

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/dpup/saferoute/server/internal/lib/routing"
	"github.com/dpup/saferoute/server/internal/lib/safety"
)

// ErrNoRoutes is returned when there is nothing to rank
var ErrNoRoutes = errors.New("no routes to rank")

// Ranking holds a score per input route and the chosen route
type Ranking struct {
	// Scores[i] belongs to routes[i]
	Scores           []safety.RouteScore
	RecommendedIndex int
}

// Ranker scores candidate routes and picks the recommended one
type Ranker struct {
	matcher     routing.CameraMatcher
	scorer      *safety.Scorer
	parallelism int
}

// NewRanker creates a new Ranker
func NewRanker(matcher routing.CameraMatcher, scorer *safety.Scorer) *Ranker {
	return &Ranker{
		matcher:     matcher,
		scorer:      scorer,
		parallelism: runtime.GOMAXPROCS(0),
	}
}

// WithParallelism limits how many routes are scored at once. 1 scores sequentially.
func (r *Ranker) WithParallelism(n int) *Ranker {
	if n < 1 {
		n = 1
	}
	r.parallelism = n
	return r
}

// Rank matches and scores every route against the same camera set
func (r *Ranker) Rank(ctx context.Context, routes []routing.Route, cameras []routing.CameraObservation) (Ranking, error) {
	if len(routes) == 0 {
		return Ranking{}, ErrNoRoutes
	}

	scores := make([]safety.RouteScore, len(routes))
	// Match errors are kept per route so the lowest failing index is
	// reported whatever order the goroutines finish in
	matchErrs := make([]error, len(routes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)

	for i := range routes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matches, err := r.matcher.Match(routes[i], i, cameras)
			if err != nil {
				matchErrs[i] = err
				return nil
			}
			scores[i] = r.scorer.Score(i, matches)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Ranking{}, err
	}
	if err := ctx.Err(); err != nil {
		return Ranking{}, err
	}
	for _, err := range matchErrs {
		if err != nil {
			return Ranking{}, err
		}
	}

	return Ranking{
		Scores:           scores,
		RecommendedIndex: Recommend(routes, scores),
	}, nil
}

// Recommend picks the best route: highest score, then fewer hazards, then
// shorter distance, then lowest index.
func Recommend(routes []routing.Route, scores []safety.RouteScore) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if better(routes, scores, i, best) {
			best = i
		}
	}
	return best
}

func better(routes []routing.Route, scores []safety.RouteScore, i, j int) bool {
	a, b := scores[i], scores[j]
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.HazardCount != b.HazardCount {
		return a.HazardCount < b.HazardCount
	}
	if routes[i].DistanceKm != routes[j].DistanceKm {
		return routes[i].DistanceKm < routes[j].DistanceKm
	}
	return i < j
}
