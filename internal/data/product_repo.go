package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pricewise/catalog-ingest/internal/data/pgxutil"
	"github.com/pricewise/catalog-ingest/internal/dberr"
	"github.com/pricewise/catalog-ingest/internal/domain/model"
	"github.com/pricewise/catalog-ingest/internal/domain/pricing"
)

const defaultPriceChunkSize = 500

// ProductRepoConfig holds configuration options for the product repository.
type ProductRepoConfig struct {
	Logger *slog.Logger

	// BaseCurrency is the currency the source file is denominated in.
	BaseCurrency string

	// PriceChunkSize bounds the number of price rows per INSERT statement.
	// Chunking only limits statement size; the whole batch still commits or
	// rolls back as one transaction.
	PriceChunkSize int
}

// ProductRepo persists products and their expanded prices.
type ProductRepo struct {
	DB             *sql.DB
	logger         *slog.Logger
	baseCurrency   string
	priceChunkSize int
}

// NewProductRepo creates a new ProductRepo with the given database connection.
func NewProductRepo(db *sql.DB, cfg ProductRepoConfig) *ProductRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	chunk := cfg.PriceChunkSize
	if chunk <= 0 {
		chunk = defaultPriceChunkSize
	}
	base := cfg.BaseCurrency
	if base == "" {
		base = "USD"
	}
	return &ProductRepo{
		DB:             db,
		logger:         logger,
		baseCurrency:   base,
		priceChunkSize: chunk,
	}
}

// CountByJob returns how many products are already committed for the job.
func (r *ProductRepo) CountByJob(ctx context.Context, jobID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE job_id = $1`, jobID).Scan(&count)
	if err != nil {
		return 0, dberr.Describe("count products", err)
	}
	return count, nil
}

// InsertBatch persists the candidates and every derived price as a single
// all-or-nothing unit. Products are inserted first to obtain generated ids,
// then prices keyed by those ids, chunked to bound statement size.
func (r *ProductRepo) InsertBatch(
	ctx context.Context,
	jobID string,
	candidates []model.ProductCandidate,
	rates model.RateTable,
) error {
	if len(candidates) == 0 {
		return nil
	}

	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			ids, insertErr := r.insertProducts(ctx, tx, jobID, candidates)
			if insertErr != nil {
				return insertErr
			}
			return r.insertPrices(ctx, tx, ids, candidates, rates)
		},
	})
	if err != nil {
		return dberr.Describe("insert product batch", err)
	}
	return nil
}

func (r *ProductRepo) insertProducts(
	ctx context.Context,
	tx pgx.Tx,
	jobID string,
	candidates []model.ProductCandidate,
) ([]int64, error) {
	var (
		sb   strings.Builder
		args = make([]any, 0, len(candidates)*3)
	)
	sb.WriteString(`INSERT INTO products (name, expiration, job_id) VALUES `)
	for i, c := range candidates {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3)
		args = append(args, c.Name, c.Expiration, jobID)
	}
	sb.WriteString(` RETURNING id`)

	rows, err := tx.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("insert products: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect product ids: %w", err)
	}
	if len(ids) != len(candidates) {
		return nil, fmt.Errorf("insert products: got %d ids for %d candidates", len(ids), len(candidates))
	}
	return ids, nil
}

func (r *ProductRepo) insertPrices(
	ctx context.Context,
	tx pgx.Tx,
	productIDs []int64,
	candidates []model.ProductCandidate,
	rates model.RateTable,
) error {
	prices := make([]model.ProductPrice, 0, len(candidates)*(len(rates)+1))
	for i, c := range candidates {
		for _, q := range pricing.Expand(r.baseCurrency, c.BaseAmount, rates) {
			prices = append(prices, model.ProductPrice{
				ProductID: productIDs[i],
				Currency:  q.Currency,
				Amount:    q.Amount,
			})
		}
	}

	for start := 0; start < len(prices); start += r.priceChunkSize {
		end := min(start+r.priceChunkSize, len(prices))
		if err := insertPriceChunk(ctx, tx, prices[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func insertPriceChunk(ctx context.Context, tx pgx.Tx, chunk []model.ProductPrice) error {
	var (
		sb   strings.Builder
		args = make([]any, 0, len(chunk)*3)
	)
	sb.WriteString(`INSERT INTO product_prices (product_id, currency, amount) VALUES `)
	for i, p := range chunk {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3)
		args = append(args, p.ProductID, p.Currency, p.Amount)
	}

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert price chunk: %w", err)
	}
	return nil
}

// DeleteByJob removes every product belonging to the job; prices cascade.
// Returns the number of products deleted.
func (r *ProductRepo) DeleteByJob(ctx context.Context, jobID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM products WHERE job_id = $1`, jobID)
	if err != nil {
		return 0, dberr.Describe("delete products", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete products rows affected: %w", err)
	}
	return affected, nil
}
