package pricing

import (
	"context"
	"database/sql"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a new PostgreSQL price record repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func scanRecord(scan func(...interface{}) error) (*PriceRecord, error) {
	rec := &PriceRecord{}
	err := scan(&rec.ShopID, &rec.VariantID, &rec.ProductID, &rec.ProductTitle,
		&rec.CurrentPrice, &rec.PriceHistory, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *postgresRepo) GetByVariant(ctx context.Context, shopID string, variantID int64) (*PriceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT shop_id, variant_id, product_id, product_title, current_price, price_history, created_at, updated_at
		FROM product_price_history
		WHERE shop_id=$1 AND variant_id=$2`, shopID, variantID)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (r *postgresRepo) ListByShop(ctx context.Context, shopID string) ([]*PriceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT shop_id, variant_id, product_id, product_title, current_price, price_history, created_at, updated_at
		FROM product_price_history
		WHERE shop_id=$1
		ORDER BY variant_id`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*PriceRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *postgresRepo) Begin(ctx context.Context) (Batch, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &postgresBatch{tx: tx}, nil
}

type postgresBatch struct{ tx *sql.Tx }

func (b *postgresBatch) Get(ctx context.Context, shopID string, variantID int64) (*PriceRecord, error) {
	row := b.tx.QueryRowContext(ctx, `
		SELECT shop_id, variant_id, product_id, product_title, current_price, price_history, created_at, updated_at
		FROM product_price_history
		WHERE shop_id=$1 AND variant_id=$2`, shopID, variantID)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (b *postgresBatch) Upsert(ctx context.Context, rec *PriceRecord) error {
	_, err := b.tx.ExecContext(ctx, `
		INSERT INTO product_price_history
		  (shop_id, variant_id, product_id, product_title, current_price, price_history)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (shop_id, variant_id) DO UPDATE
		SET product_id=EXCLUDED.product_id,
		    product_title=EXCLUDED.product_title,
		    current_price=EXCLUDED.current_price,
		    price_history=EXCLUDED.price_history,
		    updated_at=NOW()`,
		rec.ShopID, rec.VariantID, rec.ProductID, rec.ProductTitle,
		rec.CurrentPrice, rec.PriceHistory)
	return err
}

func (b *postgresBatch) Commit() error { return b.tx.Commit() }

func (b *postgresBatch) Rollback() error { return b.tx.Rollback() }
