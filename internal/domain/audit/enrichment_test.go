package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	appctx "github.com/SagorIslamOfficial/crm-order-sub001/internal/core/context"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/entity"
)

type record struct {
	entity.Audited
}

func TestEnrichCreatedBy(t *testing.T) {
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "staff-1"})
	r := &record{}

	assert.NoError(t, EnrichCreatedBy(ctx, r))
	assert.Equal(t, "staff-1", r.CreatedBy)
	assert.Equal(t, "staff-1", r.UpdatedBy)

	ctx = appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "staff-2"})
	assert.NoError(t, EnrichUpdatedBy(ctx, r))
	assert.Equal(t, "staff-1", r.CreatedBy)
	assert.Equal(t, "staff-2", r.UpdatedBy)
}

func TestEnrich_NoUserIsNoop(t *testing.T) {
	r := &record{}
	r.SetCreatedBy("seed")

	assert.NoError(t, EnrichUpdatedBy(context.Background(), r))
	assert.Equal(t, "seed", r.UpdatedBy)

	s := "seed"
	EnrichUpdatedByDirect(context.Background(), &s)
	assert.Equal(t, "seed", s)
}
