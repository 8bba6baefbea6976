package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "github.com/SagorIslamOfficial/crm-order-sub001/internal/core/context"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/core/id"
	"github.com/SagorIslamOfficial/crm-order-sub001/internal/domain/order"
)

// CompressionAlgo specifies how sys_audit.changes_compressed is encoded.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the changes size above which rows are zstd-compressed.
const DefaultCompressThreshold = 4 * 1024

// AuditRecord is one row of sys_audit.
type AuditRecord struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	UserID            *string         `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditCodec compresses large change sets.
type AuditCodec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewAuditCodec creates a codec compressing payloads larger than threshold
// bytes. A non-positive threshold selects DefaultCompressThreshold.
func NewAuditCodec(threshold int) (*AuditCodec, error) {
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditCodec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// Encode fills the changes columns of rec from raw.
func (c *AuditCodec) Encode(rec *AuditRecord, raw []byte) {
	if len(raw) > c.threshold {
		rec.Changes = nil
		rec.ChangesCompressed = c.encoder.EncodeAll(raw, nil)
		rec.CompressionAlgo = CompressionZstd
		return
	}
	rec.Changes = raw
	rec.ChangesCompressed = nil
	rec.CompressionAlgo = CompressionNone
}

// Decode returns the uncompressed changes JSON of rec.
func (c *AuditCodec) Decode(rec *AuditRecord) ([]byte, error) {
	if rec.CompressionAlgo != CompressionZstd {
		return rec.Changes, nil
	}
	out, err := c.decoder.DecodeAll(rec.ChangesCompressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress audit changes: %w", err)
	}
	return out, nil
}

// OrderAuditTrail stores order history in sys_audit.
type OrderAuditTrail struct {
	txManager *TxManager
	codec     *AuditCodec
	limit     int
}

// NewOrderAuditTrail creates an audit trail returning at most 500 entries per order.
func NewOrderAuditTrail(txManager *TxManager, codec *AuditCodec) *OrderAuditTrail {
	return &OrderAuditTrail{txManager: txManager, codec: codec, limit: 500}
}

var _ order.AuditTrail = (*OrderAuditTrail)(nil)

// Record implements order.AuditTrail. Runs in the caller's transaction.
func (a *OrderAuditTrail) Record(ctx context.Context, entry order.AuditEntry) error {
	rec, err := a.toRecord(ctx, entry)
	if err != nil {
		return err
	}
	_, err = a.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (id, entity_type, entity_id, action, user_id,
		                       changes, changes_compressed, compression_algo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.EntityType, rec.EntityID, rec.Action, rec.UserID,
		rec.Changes, rec.ChangesCompressed, rec.CompressionAlgo, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (a *OrderAuditTrail) toRecord(ctx context.Context, entry order.AuditEntry) (*AuditRecord, error) {
	raw, err := json.Marshal(entry.Changes)
	if err != nil {
		return nil, fmt.Errorf("marshal audit changes: %w", err)
	}
	rec := &AuditRecord{
		ID:         entry.ID,
		EntityType: "order",
		EntityID:   entry.OrderID,
		Action:     entry.Action,
		CreatedAt:  entry.CreatedAt.UTC(),
	}
	if id.IsNil(rec.ID) {
		rec.ID = id.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	userID := entry.UserID
	if userID == "" {
		userID = appctx.GetUserID(ctx)
	}
	if userID != "" {
		rec.UserID = &userID
	}
	a.codec.Encode(rec, raw)
	return rec, nil
}

// History implements order.AuditTrail; entries come oldest first.
func (a *OrderAuditTrail) History(ctx context.Context, orderID id.ID) ([]order.AuditEntry, error) {
	rows, err := a.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, action, user_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = 'order' AND entity_id = $1
		ORDER BY created_at, id
		LIMIT $2
	`, orderID, a.limit)
	if err != nil {
		return nil, MapError(fmt.Errorf("query audit history: %w", err), "audit entry")
	}
	defer rows.Close()

	var entries []order.AuditEntry
	for rows.Next() {
		var rec AuditRecord
		if err := rows.Scan(
			&rec.ID, &rec.EntityType, &rec.EntityID, &rec.Action, &rec.UserID,
			&rec.Changes, &rec.ChangesCompressed, &rec.CompressionAlgo, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry, err := a.fromRecord(&rec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (a *OrderAuditTrail) fromRecord(rec *AuditRecord) (order.AuditEntry, error) {
	raw, err := a.codec.Decode(rec)
	if err != nil {
		return order.AuditEntry{}, err
	}
	entry := order.AuditEntry{
		ID:        rec.ID,
		OrderID:   rec.EntityID,
		Action:    rec.Action,
		CreatedAt: rec.CreatedAt,
	}
	if rec.UserID != nil {
		entry.UserID = *rec.UserID
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &entry.Changes); err != nil {
			return order.AuditEntry{}, fmt.Errorf("unmarshal audit changes: %w", err)
		}
	}
	return entry, nil
}
