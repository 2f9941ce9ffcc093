package datasource

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/wintree/pkg/debug"
	"github.com/vanderheijden86/wintree/pkg/metrics"
	"github.com/vanderheijden86/wintree/pkg/model"
)

// DefaultBatchSize is the page size used when none is configured.
const DefaultBatchSize = 200

// Pager fetches fixed-size pages from a Source. Concurrent requests for
// the same page share one fetch.
type Pager struct {
	src   Source
	batch int
	group singleflight.Group
}

// NewPager creates a pager over src. A non-positive batch size uses
// DefaultBatchSize.
func NewPager(src Source, batchSize int) *Pager {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Pager{src: src, batch: batchSize}
}

// Source returns the underlying source.
func (p *Pager) Source() Source { return p.src }

// BatchSize returns the page size.
func (p *Pager) BatchSize() int { return p.batch }

// Page fetches items [offset, offset+limit). Errors are *FetchError.
func (p *Pager) Page(ctx context.Context, offset, limit int) ([]model.Item, error) {
	key := strconv.Itoa(offset) + ":" + strconv.Itoa(limit)
	v, err, shared := p.group.Do(key, func() (any, error) {
		defer metrics.Timer(metrics.SourceFetch)()
		return p.src.Fetch(ctx, offset, limit)
	})
	debug.LogIf(shared, "datasource: shared fetch %s", key)
	if err != nil {
		if _, ok := err.(*FetchError); !ok {
			err = &FetchError{Offset: offset, Limit: limit, Cause: err}
		}
		return nil, err
	}
	items, _ := v.([]model.Item)
	return items, nil
}

// Next fetches the page that follows loaded items.
func (p *Pager) Next(ctx context.Context, loaded int) ([]model.Item, error) {
	return p.Page(ctx, loaded, p.batch)
}

// Initial is the first view of a paged source.
type Initial struct {
	Total int
	Items []model.Item
}

// OpenPaged counts the source and fetches its first page in parallel.
func (p *Pager) OpenPaged(ctx context.Context) (Initial, error) {
	var first Initial
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)

	g.Go(func() error {
		n, err := p.src.Count(gctx)
		if err != nil {
			return fmt.Errorf("counting source: %w", err)
		}
		first.Total = n
		return nil
	})
	g.Go(func() error {
		items, err := p.Page(gctx, 0, p.batch)
		if err != nil {
			return err
		}
		first.Items = items
		return nil
	})

	if err := g.Wait(); err != nil {
		return Initial{}, err
	}
	debug.Log("datasource: opened %s source, %d of %d items", p.src.Kind(), len(first.Items), first.Total)
	return first, nil
}

// All fetches every page, up to workers pages at a time, and returns the
// items in source order.
func (p *Pager) All(ctx context.Context, workers int) ([]model.Item, error) {
	total, err := p.src.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting source: %w", err)
	}
	if total == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = 4
	}

	pages := make([][]model.Item, (total+p.batch-1)/p.batch)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range pages {
		g.Go(func() error {
			items, err := p.Page(gctx, i*p.batch, p.batch)
			if err != nil {
				return err
			}
			pages[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.Item, 0, total)
	for _, page := range pages {
		out = append(out, page...)
	}
	return out, nil
}
