// Package audit provides utilities for audit field enrichment in domain entities.
package audit

import (
	"context"

	appctx "github.com/SagorIslamOfficial/crm-order-sub001/internal/core/context"
)

// CreatedBySetter is implemented by entities embedding entity.Audited.
type CreatedBySetter interface {
	SetCreatedBy(string)
	SetUpdatedBy(string)
}

// UpdatedBySetter is implemented by entities tracking their last modifier.
type UpdatedBySetter interface {
	SetUpdatedBy(string)
}

// EnrichCreatedBy sets CreatedBy and UpdatedBy from the context user.
// Use in BeforeCreate hooks. No-op when the request has no user.
func EnrichCreatedBy[T CreatedBySetter](ctx context.Context, e T) error {
	if userID := appctx.GetUserID(ctx); userID != "" {
		e.SetCreatedBy(userID)
	}
	return nil
}

// EnrichUpdatedBy sets only UpdatedBy from the context user.
// Use in BeforeUpdate hooks. No-op when the request has no user.
func EnrichUpdatedBy[T UpdatedBySetter](ctx context.Context, e T) error {
	if userID := appctx.GetUserID(ctx); userID != "" {
		e.SetUpdatedBy(userID)
	}
	return nil
}

// EnrichUpdatedByDirect sets a plain string field from the context user.
func EnrichUpdatedByDirect(ctx context.Context, updatedBy *string) {
	if userID := appctx.GetUserID(ctx); userID != "" && updatedBy != nil {
		*updatedBy = userID
	}
}
