package ratelimit

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const DefaultPrefix = "url-shortener:limiter"

// New returns a limiter for a rate in the "<limit>-<period>" format, e.g.
// "100-M". Counters live in Redis when client is not nil and in process
// memory otherwise.
func New(rate string, client *redis.Client) (*limiter.Limiter, error) {
	const op = "ratelimit.New"

	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid rate %q: %w", op, rate, err)
	}

	opts := limiter.StoreOptions{
		Prefix:          DefaultPrefix,
		CleanUpInterval: time.Minute,
	}

	var store limiter.Store

	if client != nil {
		store, err = sredis.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to create redis store: %w", op, err)
		}
	} else {
		store = memory.NewStoreWithOptions(opts)
	}

	return limiter.New(store, r), nil
}
