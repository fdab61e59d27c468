package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	pgtable "github.com/arm-lpae/iopgtable"
	"github.com/arm-lpae/iopgtable/internal/alloc"
	"github.com/arm-lpae/iopgtable/internal/alloc/coherency"
)

// domainResult is the outcome of one scenario run against one domain.
type domainResult struct {
	Domain   string
	Scenario string
	Err      error
	Elapsed  time.Duration
}

// arenaSize is large enough for every scenario's worst-case tree depth
// across the three granules; domains never share an arena so there is no
// risk of one domain's tables colliding with another's addresses.
const arenaSize = 64 << 20

func buildHandle(d domainConfig) (*pgtable.Handle, error) {
	bitmap, err := d.pageSizeBitmap()
	if err != nil {
		return nil, err
	}

	ias, oas := d.IAS, d.OAS
	if ias == 0 {
		ias = 48
	}
	if oas == 0 {
		oas = 48
	}

	return pgtable.Alloc(pgtable.Config{
		IAS:       ias,
		OAS:       oas,
		PageSizes: bitmap,
		Format:    d.format(),
		Alloc:     alloc.NewLeakTracker(alloc.NewBump(0, arenaSize)),
		Coh:       &coherency.Counting{},
	})
}

// runDomain runs every scenario named in d.Scenarios (or all known
// scenarios, if the list is empty), each against its own fresh Handle for d.
func runDomain(d domainConfig, log *logrus.Logger) []domainResult {
	names := d.Scenarios
	if len(names) == 0 {
		for _, s := range allScenarios {
			names = append(names, s.Name)
		}
	}

	results := make([]domainResult, 0, len(names))
	for _, name := range names {
		s, ok := scenarioByName(name)
		if !ok {
			results = append(results, domainResult{Domain: d.Name, Scenario: name, Err: fmt.Errorf("unknown scenario %q", name)})
			continue
		}

		h, err := buildHandle(d)
		if err != nil {
			results = append(results, domainResult{Domain: d.Name, Scenario: name, Err: fmt.Errorf("alloc: %w", err)})
			continue
		}
		start := time.Now()
		runErr := s.Run(h)
		elapsed := time.Since(start)
		h.Free()
		results = append(results, domainResult{Domain: d.Name, Scenario: name, Err: runErr, Elapsed: elapsed})

		fields := logrus.Fields{"domain": d.Name, "scenario": name, "pass": runErr == nil, "elapsed": elapsed}
		if runErr != nil {
			log.WithFields(fields).WithError(runErr).Warn("scenario failed")
		} else {
			log.WithFields(fields).Info("scenario passed")
		}
	}
	return results
}

// runAll runs every domain's scenarios concurrently: one goroutine per
// domain, each goroutine touching only its own Handle, consistent with
// the single-writer-per-domain contract the core relies on.
func runAll(ctx context.Context, cfg fileConfig, log *logrus.Logger) ([]domainResult, error) {
	var (
		mu  sync.Mutex
		all []domainResult
	)

	g, _ := errgroup.WithContext(ctx)
	for _, d := range cfg.Domain {
		d := d
		g.Go(func() error {
			res := runDomain(d, log)
			mu.Lock()
			all = append(all, res...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}
