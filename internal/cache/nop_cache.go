package cache

import (
	"context"
	"time"
)

// NopCache never stores anything. Used when Redis is not configured.
type NopCache struct{}

func (NopCache) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (NopCache) Get(context.Context, string, interface{}) error { return ErrCacheMiss }

func (NopCache) Delete(context.Context, string) error { return nil }
