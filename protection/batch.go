package protection

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds in-flight requests for batch operations when
// the caller passes a non-positive concurrency.
const DefaultBatchConcurrency = 8

// ProtectBatch protects a slice of values under the same policy with bounded
// concurrency, preserving input order in the output. The first failure
// cancels outstanding work and is returned; partial results are discarded.
func ProtectBatch(
	ctx context.Context,
	p Protector,
	policyName string,
	values []string,
	concurrency int,
) ([]string, error) {
	return batch(ctx, policyName, values, concurrency, p.Protect)
}

// RevealBatch reveals a slice of protected values under the same policy with
// bounded concurrency, preserving input order in the output.
func RevealBatch(
	ctx context.Context,
	p Protector,
	policyName string,
	values []string,
	concurrency int,
) ([]string, error) {
	return batch(ctx, policyName, values, concurrency, p.Reveal)
}

func batch(
	ctx context.Context,
	policyName string,
	values []string,
	concurrency int,
	op func(ctx context.Context, policyName, value string) (*Result, error),
) ([]string, error) {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	out := make([]string, len(values))
	for i, value := range values {
		g.Go(func() error {
			res, err := op(ctx, policyName, value)
			if err != nil {
				return err
			}
			out[i] = res.Value
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
