// Package service implements the catalog use cases on top of the
// repositories and the image attachment manager.
//
// Every mutating use case validates first, then takes a per-entity lock,
// writes rows in a single transaction with the blob writes interleaved, and
// settles the blob side once the transaction has either committed or rolled
// back.
package service

import (
	"context"
	"fmt"

	"catalog-service/internal/apperror"
	"catalog-service/internal/attachment"
	"catalog-service/internal/lock"
	"catalog-service/internal/repository"
	"catalog-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// TopLimit is the size of the top-N reports
	TopLimit = 5
	// DefaultLowStockThreshold applies when none is configured
	DefaultLowStockThreshold = 5
)

// Options tunes a Catalog
type Options struct {
	Validator         attachment.Validator
	LowStockThreshold int
}

// Catalog is the application façade used by the HTTP handlers and the CLI
type Catalog struct {
	db         *gorm.DB
	categories *repository.CategoryRepository
	products   *repository.ProductRepository
	images     *attachment.Manager
	locker     lock.Locker
	validator  attachment.Validator
	lowStock   int
}

func New(db *gorm.DB, images *attachment.Manager, locker lock.Locker, opts Options) *Catalog {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	threshold := opts.LowStockThreshold
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return &Catalog{
		db:         db,
		categories: repository.NewCategoryRepository(db),
		products:   repository.NewProductRepository(db),
		images:     images,
		locker:     locker,
		validator:  opts.Validator,
		lowStock:   threshold,
	}
}

// LowStockThreshold is the threshold used when a caller does not supply one
func (s *Catalog) LowStockThreshold() int {
	return s.lowStock
}

// Ping checks the database connection
func (s *Catalog) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func productKey(id uint) string  { return fmt.Sprintf("product:%d", id) }
func categoryKey(id uint) string { return fmt.Sprintf("category:%d", id) }

// acquire takes the lock for key, mapping a timeout onto a storage failure
func (s *Catalog) acquire(ctx context.Context, key string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		logger.FromCtx(ctx).Warn("Failed to acquire lock", zap.String("key", key), zap.Error(err))
		return nil, apperror.Storage("Resource is busy, try again", err)
	}
	return unlock, nil
}

// unit collects the blob work started inside one transaction
type unit struct {
	pending []*attachment.Pending
}

func (u *unit) add(p *attachment.Pending) {
	u.pending = append(u.pending, p)
}

// transact runs fn inside a database transaction. Blob work registered on the
// unit is committed after the rows are, or aborted when they are not.
// The transaction is detached from the caller's cancellation so a client
// disconnect cannot interrupt it half way.
func (s *Catalog) transact(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB, u *unit) error) error {
	ctx = context.WithoutCancel(ctx)
	u := &unit{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx, u)
	})
	if err != nil {
		for _, p := range u.pending {
			p.Abort(ctx)
		}
		if apperror.KindOf(err) == apperror.KindUnknown {
			return apperror.Storage("Failed to save changes", err)
		}
		return err
	}

	for _, p := range u.pending {
		p.Commit(ctx)
	}
	return nil
}
