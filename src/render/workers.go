package render

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sofmeright/buildfreight/src/params"
)

// DefaultWorkerConcurrency bounds RenderWorkers when no limit is given.
const DefaultWorkerConcurrency = 4

// RenderWorkers renders one worker build per platform from the orchestrator
// request. Each worker gets its own copy of the parameters; renders share
// nothing but the template cache. The first failure cancels the rest.
func (e *Engine) RenderWorkers(ctx context.Context, req Request, platforms []string, limit int) (map[string]*Result, error) {
	if req.Params == nil {
		return nil, fmt.Errorf("render %s: no parameters", Worker)
	}
	if limit <= 0 {
		limit = DefaultWorkerConcurrency
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*Result, len(platforms))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, platform := range platforms {
		g.Go(func() error {
			p, err := workerParams(req.Params, platform)
			if err != nil {
				return fmt.Errorf("worker %s: %w", platform, err)
			}
			res, err := e.Render(ctx, Request{
				BuildType:     Worker,
				Params:        p,
				Repo:          req.Repo,
				ClientVersion: req.ClientVersion,
			})
			if err != nil {
				return fmt.Errorf("worker %s: %w", platform, err)
			}
			mu.Lock()
			results[platform] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// workerParams derives a worker's parameters: the platform is set, the
// platform list dropped and the unique image tag suffixed with the
// platform.
func workerParams(orchestrator *params.Set, platform string) (*params.Set, error) {
	p := orchestrator.Clone()
	if err := p.Set(params.Platform, platform); err != nil {
		return nil, err
	}
	p.Unset(params.Platforms)
	if tag := p.String(params.ImageTag); tag != "" {
		if err := p.Set(params.ImageTag, tag+"-"+platform); err != nil {
			return nil, err
		}
	}
	return p, nil
}
