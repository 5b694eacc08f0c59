package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/odata-mobility-chart/internal/domain"
)

// collect fetches and enriches every dataset concurrently and concatenates
// the rows in dataset declaration order. The first error cancels the rest.
func (p *Pipeline) collect(ctx context.Context, logger *slog.Logger) ([]domain.DataRow, error) {
	perDataset := make([][]domain.DataRow, len(p.datasets))

	g, gctx := errgroup.WithContext(ctx)
	for i, url := range p.datasets {
		g.Go(func() error {
			rows, err := p.loadDataset(gctx, url, logger.With("dataset", url))
			if err != nil {
				return fmt.Errorf("dataset %s: %w", url, err)
			}
			perDataset[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.Concat(perDataset...), nil
}

// loadDataset resolves the index, then fetches the fact table and the three
// lookup tables in parallel and joins them.
func (p *Pipeline) loadDataset(ctx context.Context, url string, logger *slog.Logger) ([]domain.DataRow, error) {
	logger.Info("fetching data")

	idx, err := p.fetcher.FetchIndex(ctx, url)
	if err != nil {
		return nil, err
	}

	var (
		facts []domain.FactRecord
		lk    domain.Lookups
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("getting", "resource", domain.ResourceTypedDataSet)
		var err error
		facts, err = p.fetcher.FetchFacts(gctx, idx)
		return err
	})
	lookup := func(name string, dst **domain.LookupTable) {
		g.Go(func() error {
			logger.Info("getting", "resource", name)
			t, err := p.fetcher.FetchLookup(gctx, idx, name)
			if err != nil {
				return err
			}
			*dst = t
			return nil
		})
	}
	lookup(domain.TableGender, &lk.Gender)
	lookup(domain.TablePersonTrait, &lk.PersonTrait)
	lookup(domain.TablePeriod, &lk.Period)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("mapping data", "facts", len(facts),
		"genders", lk.Gender.Len(), "traits", lk.PersonTrait.Len(), "periods", lk.Period.Len())

	rows, err := domain.EnrichAll(url, facts, lk)
	if err != nil {
		return nil, err
	}
	p.metrics.RowsEnriched.WithLabelValues(url).Add(float64(len(rows)))
	return rows, nil
}
