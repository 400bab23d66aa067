package tenancy

import (
	"context"

	"gorm.io/gorm"

	"github.com/sharath018/tenant-access-backend/internal/schema"
	"github.com/sharath018/tenant-access-backend/internal/tenant"
)

type stateKey struct{}

type txKey struct{}

// WithState returns a copy of ctx carrying s.
func WithState(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, stateKey{}, s)
}

// FromContext returns the State carried by ctx.
func FromContext(ctx context.Context) (*State, bool) {
	s, ok := ctx.Value(stateKey{}).(*State)
	return s, ok && s != nil
}

// CurrentTenant returns the tenant of ctx's State, or nil.
func CurrentTenant(ctx context.Context) *tenant.Tenant {
	if s, ok := FromContext(ctx); ok {
		return s.Tenant()
	}
	return nil
}

// CurrentSchema returns the schema of ctx's State, or public.
func CurrentSchema(ctx context.Context) string {
	if s, ok := FromContext(ctx); ok {
		return s.Schema()
	}
	return schema.PublicSchema
}

// WithTenant runs fn inside target using ctx's State.
func WithTenant(ctx context.Context, target Target, fn func(ctx context.Context) error) error {
	s, ok := FromContext(ctx)
	if !ok {
		return ErrNoState
	}
	return s.WithTenant(ctx, target, fn)
}

// WithTenantResult is WithTenant for blocks that produce a value.
func WithTenantResult[T any](ctx context.Context, target Target, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := WithTenant(ctx, target, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// DB returns the transaction opened by Transaction, else the connection
// pinned by ctx's State, else fallback. Repositories go through here.
func DB(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	if s, ok := FromContext(ctx); ok {
		return s.DB(ctx)
	}
	return fallback.WithContext(ctx)
}

// Transaction runs fn in one transaction on the handle DB picks for ctx.
// Repository calls made with the ctx handed to fn join that transaction. A
// Transaction inside another one joins the outer transaction.
func Transaction(ctx context.Context, fallback *gorm.DB, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return DB(ctx, fallback).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}
