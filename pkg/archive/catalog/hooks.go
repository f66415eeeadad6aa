package catalog

import (
	"context"
	"time"

	"github.com/pmcore/pmcore/pkg/log"
)

type queryTimeKey struct{}

// hooks satisfies sqlhooks.Hooks, logging every catalog query at debug
// level. Grounded on internal/repository/hooks.go.
type hooks struct{}

func (hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("catalog query %s %q", query, args)
	return context.WithValue(ctx, queryTimeKey{}, time.Now()), nil
}

func (hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(queryTimeKey{}).(time.Time); ok {
		log.Debugf("catalog query took %s", time.Since(begin))
	}
	return ctx, nil
}
