package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "finbpo/internal/core/context"
	"finbpo/internal/core/id"
	"finbpo/internal/domain/audit"
)

// CompressionAlgo is how the changes payload of an audit row is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which changes are
// stored zstd-compressed.
const DefaultCompressThreshold = 10 * 1024

// auditRow is the column layout of fin_audit_log.
type auditRow struct {
	ID                id.ID           `db:"id"`
	CompanyID         string          `db:"company_id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	UserID            string          `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditLog implements audit.Recorder on fin_audit_log. Entries are written
// through the transaction in ctx, so they commit or roll back with the change
// they describe.
type AuditLog struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ audit.Recorder = (*AuditLog)(nil)

// NewAuditLog creates an audit log compressing payloads above threshold
// bytes; threshold <= 0 selects DefaultCompressThreshold.
func NewAuditLog(txManager *TxManager, threshold int) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}

	return &AuditLog{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// Record implements audit.Recorder.
func (l *AuditLog) Record(ctx context.Context, e audit.Entry) error {
	row, err := l.encode(e)
	if err != nil {
		return err
	}

	_, err = l.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO fin_audit_log (
			id, company_id, entity_type, entity_id, action, user_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		row.ID, row.CompanyID, row.EntityType, row.EntityID, row.Action, row.UserID,
		row.Changes, row.ChangesCompressed, row.CompressionAlgo, row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History implements audit.Recorder. Only entries of the caller's company are
// returned, newest first.
func (l *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	companyID, err := appctx.RequireCompanyID(ctx)
	if err != nil {
		return nil, err
	}

	var rows []auditRow
	err = pgxscan.Select(ctx, l.txManager.GetQuerier(ctx), &rows, `
		SELECT id, company_id, entity_type, entity_id, action, user_id,
			   changes, changes_compressed, compression_algo, created_at
		FROM fin_audit_log
		WHERE company_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, companyID, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := l.decode(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *AuditLog) encode(e audit.Entry) (auditRow, error) {
	row := auditRow{
		ID:              e.ID,
		CompanyID:       e.CompanyID,
		EntityType:      e.EntityType,
		EntityID:        e.EntityID,
		Action:          string(e.Action),
		UserID:          e.UserID,
		CompressionAlgo: CompressionNone,
		CreatedAt:       e.CreatedAt,
	}
	if id.IsNil(row.ID) {
		row.ID = id.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(e.Changes)
	if err != nil {
		return row, fmt.Errorf("marshal audit changes: %w", err)
	}
	if len(payload) > l.compressThreshold {
		row.ChangesCompressed = l.encoder.EncodeAll(payload, nil)
		row.CompressionAlgo = CompressionZstd
		return row, nil
	}
	row.Changes = payload
	return row, nil
}

func (l *AuditLog) decode(row auditRow) (audit.Entry, error) {
	e := audit.Entry{
		ID:         row.ID,
		CompanyID:  row.CompanyID,
		EntityType: row.EntityType,
		EntityID:   row.EntityID,
		Action:     audit.Action(row.Action),
		UserID:     row.UserID,
		CreatedAt:  row.CreatedAt,
	}

	payload := []byte(row.Changes)
	if row.CompressionAlgo == CompressionZstd && len(row.ChangesCompressed) > 0 {
		decompressed, err := l.decoder.DecodeAll(row.ChangesCompressed, nil)
		if err != nil {
			return e, fmt.Errorf("decompress audit changes %s: %w", row.ID, err)
		}
		payload = decompressed
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Changes); err != nil {
			return e, fmt.Errorf("unmarshal audit changes %s: %w", row.ID, err)
		}
	}
	return e, nil
}
