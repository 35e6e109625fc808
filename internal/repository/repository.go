// Package repository holds the gorm-backed stores for categories, products
// and product image rows. Every method takes a context and maps gorm errors
// onto apperror kinds.
package repository

import (
	"errors"
	"time"

	"catalog-service/internal/apperror"
	"catalog-service/prometheus"

	"gorm.io/gorm"
)

func mapError(err error, notFound string, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(notFound)
	}
	return apperror.Storage("Failed to "+op, err)
}

func track(op string) func() {
	start := time.Now()
	done := prometheus.TrackDBOperation(op)
	return func() { done(start) }
}
