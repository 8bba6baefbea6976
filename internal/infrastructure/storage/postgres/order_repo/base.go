// Package order_repo provides PostgreSQL repositories for shops, customers and orders.
package order_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/apperror"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/infrastructure/storage/postgres"
)

// builder is the statement builder used by every repository here.
var builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// baseRepo holds what the table repositories share.
type baseRepo struct {
	txManager *postgres.TxManager
	table     string
	entity    string
	cols      []string
}

func newBaseRepo(txManager *postgres.TxManager, table, entity string, cols []string) baseRepo {
	return baseRepo{txManager: txManager, table: table, entity: entity, cols: cols}
}

func (r *baseRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func (r *baseRepo) selectAll() squirrel.SelectBuilder {
	return builder.Select(r.cols...).From(r.table)
}

// exec runs a built statement and maps PostgreSQL errors.
func (r *baseRepo) exec(ctx context.Context, q squirrel.Sqlizer, op string) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", op, err)
	}
	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("%s %s: %w", op, r.table, err), r.entity)
	}
	return tag.RowsAffected(), nil
}

// get scans exactly one row into dst; no row becomes NotFound(key).
func (r *baseRepo) get(ctx context.Context, dst any, q squirrel.Sqlizer, key string) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.querier(ctx), dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(r.entity, key)
		}
		return postgres.MapError(fmt.Errorf("get %s: %w", r.entity, err), r.entity)
	}
	return nil
}

// list scans all rows into dst (a pointer to a slice).
func (r *baseRepo) list(ctx context.Context, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.querier(ctx), dst, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("list %s: %w", r.table, err), r.entity)
	}
	return nil
}

// insertEntity writes the db-tagged fields of e that are table columns.
func (r *baseRepo) insertEntity(ctx context.Context, e any) error {
	data := postgres.PickColumns(postgres.StructToMap(e), r.cols)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in %T", e)
	}
	_, err := r.exec(ctx, builder.Insert(r.table).SetMap(data), "insert")
	return err
}

// parseOrderBy turns "-created_at" into "created_at DESC", accepting only
// columns in allowed.
func parseOrderBy(orderBy, fallback string, allowed []string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		orderBy = fallback
	}

	direction := "ASC"
	field := orderBy
	switch {
	case strings.HasPrefix(orderBy, "-"):
		direction = "DESC"
		field = orderBy[1:]
	case strings.HasPrefix(orderBy, "+"):
		field = orderBy[1:]
	}
	field = strings.TrimSpace(field)

	for _, col := range allowed {
		if col == field {
			return field + " " + direction, nil
		}
	}
	return "", apperror.NewValidation("invalid orderBy").
		WithDetail("field", "orderBy").
		WithDetail("value", orderBy)
}
