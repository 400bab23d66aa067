package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sharath018/tenant-access-backend/internal/tenancy"
)

// Denylist records revoked token ids until they expire.
type Denylist interface {
	Revoke(ctx context.Context, jti string, exp time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

const denylistKeyPrefix = "jwt:denylist:"

type denylist struct {
	db    *gorm.DB
	cache *redis.Client
	log   *zap.Logger
}

// NewDenylist stores revocations in public.jwt_denylists, on the request's
// pinned connection when there is one. A non-nil cache
// also keeps them in Redis for the rest of the token lifetime.
func NewDenylist(db *gorm.DB, cache *redis.Client, log *zap.Logger) Denylist {
	if log == nil {
		log = zap.NewNop()
	}
	return &denylist{db: db, cache: cache, log: log}
}

func (d *denylist) Revoke(ctx context.Context, jti string, exp time.Time) error {
	err := tenancy.DB(ctx, d.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&JWTDenylist{JTI: jti, ExpiresAt: exp}).Error
	if err != nil {
		return err
	}

	if d.cache != nil {
		if ttl := time.Until(exp); ttl > 0 {
			if err := d.cache.Set(ctx, denylistKeyPrefix+jti, "1", ttl).Err(); err != nil {
				d.log.Warn("caching revoked token failed", zap.String("jti", jti), zap.Error(err))
			}
		}
	}
	return nil
}

func (d *denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if d.cache != nil {
		err := d.cache.Get(ctx, denylistKeyPrefix+jti).Err()
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, redis.Nil) {
			d.log.Warn("denylist cache lookup failed", zap.String("jti", jti), zap.Error(err))
		}
	}

	var n int64
	err := tenancy.DB(ctx, d.db).Model(&JWTDenylist{}).Where("jti = ?", jti).Count(&n).Error
	return n > 0, err
}

// Purge deletes entries that expired before the given time.
func (d *denylist) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := tenancy.DB(ctx, d.db).Where("exp < ?", before).Delete(&JWTDenylist{})
	return res.RowsAffected, res.Error
}
