package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/area-reservation/internal/model"
)

// CachedAreas is a read-through Redis cache in front of another catalog.
// Entries are stored as JSON under "area:{id}" with a fixed TTL.  Redis
// failures are logged and fall through to the wrapped catalog so a cache
// outage never blocks bookings.  Unknown areas are not cached.
type CachedAreas struct {
	next AreaCatalog
	rdb  *redis.Client
	ttl  time.Duration
	log  logrus.FieldLogger
}

// NewCachedAreas wraps next.  A nil client disables caching and returns
// next unchanged.
func NewCachedAreas(next AreaCatalog, rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) AreaCatalog {
	if rdb == nil || ttl <= 0 {
		return next
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CachedAreas{next: next, rdb: rdb, ttl: ttl, log: log}
}

func areaKey(id uint64) string { return "area:" + strconv.FormatUint(id, 10) }

func (c *CachedAreas) GetArea(ctx context.Context, id uint64) (model.Area, error) {
	key := areaKey(id)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var a model.Area
		if jerr := json.Unmarshal(raw, &a); jerr == nil {
			return a, nil
		}
		c.log.WithField("key", key).Warn("area cache: dropping undecodable entry")
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).WithField("key", key).Warn("area cache: get failed")
	}

	a, err := c.next.GetArea(ctx, id)
	if err != nil {
		return model.Area{}, err
	}
	if b, jerr := json.Marshal(a); jerr == nil {
		if serr := c.rdb.Set(ctx, key, b, c.ttl).Err(); serr != nil {
			c.log.WithError(serr).WithField("key", key).Warn("area cache: set failed")
		}
	}
	return a, nil
}

// Invalidate drops the cached entry for id.
func (c *CachedAreas) Invalidate(ctx context.Context, id uint64) error {
	return c.rdb.Del(ctx, areaKey(id)).Err()
}
