package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pricestack/pricestack-backend/internal/modules/shopify"
)

// CatalogSource is the external system of record for product and price data.
type CatalogSource interface {
	ListProducts(ctx context.Context, shop, accessToken string) ([]shopify.Product, error)
	GetProduct(ctx context.Context, shop, accessToken, productID string) (*shopify.Product, error)
	UpdateVariantPrice(ctx context.Context, shop, accessToken string, variantID int64, price string) error
}

// Service defines the price ledger business logic.
type Service interface {
	// SyncProducts mirrors the shop's catalog into the local ledger and
	// returns it annotated with each variant's prior price and history.
	SyncProducts(ctx context.Context, shopID, accessToken string) ([]ProductView, error)
	// AdjustPrices applies a percentage adjustment to every variant of the
	// selected products, pushing each pre-adjustment price onto its history.
	AdjustPrices(ctx context.Context, shopID, accessToken string, req AdjustRequest) (*BulkResult, error)
	// UndoPriceChanges reverts every variant of the selected products by up
	// to the requested number of steps, popping its history.
	UndoPriceChanges(ctx context.Context, shopID, accessToken string, req UndoRequest) (*BulkResult, error)
}

// AdjustRequest holds the data for a bulk percentage adjustment.
type AdjustRequest struct {
	ProductIDs     []string        `json:"productIds"`
	Percentage     decimal.Decimal `json:"percentage"`
	AdjustmentType string          `json:"adjustmentType"`
}

func (r AdjustRequest) validate() error {
	if len(r.ProductIDs) == 0 {
		return &ValidationError{Message: "productIds must be a non-empty array"}
	}
	if r.Percentage.IsNegative() {
		return &ValidationError{Message: "percentage must be zero or greater"}
	}
	if r.AdjustmentType != "up" && r.AdjustmentType != "down" {
		return &ValidationError{Message: `adjustmentType must be "up" or "down"`}
	}
	return nil
}

// UndoRequest holds the data for a bulk undo.
type UndoRequest struct {
	ProductIDs []string `json:"productIds"`
	Steps      int      `json:"steps"`
}

func (r UndoRequest) validate() error {
	if len(r.ProductIDs) == 0 {
		return &ValidationError{Message: "productIds must be a non-empty array"}
	}
	if r.Steps < 1 {
		return &ValidationError{Message: "steps must be an integer of 1 or greater"}
	}
	return nil
}

// ProductView is a catalog product annotated with ledger data.
type ProductView struct {
	ID       int64         `json:"id"`
	Title    string        `json:"title"`
	Variants []VariantView `json:"variants"`
}

// VariantView carries the variant's live price alongside its undo stack.
type VariantView struct {
	ID                int64    `json:"id"`
	Title             string   `json:"title"`
	Price             string   `json:"price"`
	InventoryQuantity int      `json:"inventory_quantity"`
	OldPrice          *string  `json:"old_price"`
	PriceHistory      []string `json:"price_history"`
}

// Summary counts the outcome of a bulk operation. TotalProcessed counts the
// requested product IDs; the update counters count variants.
type Summary struct {
	TotalProcessed    int `json:"total_processed"`
	SuccessfulUpdates int `json:"successful_updates"`
	FailedUpdates     int `json:"failed_updates"`
	StepsUndone       int `json:"steps_undone,omitempty"`
}

// BulkResult is the outcome of AdjustPrices or UndoPriceChanges. Success is
// true iff no variant-level update failed; callers must inspect Errors on
// partial failure.
type BulkResult struct {
	Success bool     `json:"success"`
	Summary Summary  `json:"summary"`
	Errors  []string `json:"errors"`
}

type service struct {
	repo    Repository
	catalog CatalogSource
}

// NewService creates a new price ledger service.
func NewService(repo Repository, catalog CatalogSource) Service {
	return &service{repo: repo, catalog: catalog}
}

func (s *service) SyncProducts(ctx context.Context, shopID, accessToken string) ([]ProductView, error) {
	products, err := s.catalog.ListProducts(ctx, shopID, accessToken)
	if err != nil {
		return nil, &CatalogError{Err: err}
	}

	batch, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	for _, p := range products {
		for _, v := range p.Variants {
			live, err := decimal.NewFromString(v.Price)
			if err != nil {
				batch.Rollback()
				return nil, &CatalogError{Err: fmt.Errorf("variant %d: invalid price %q: %w", v.ID, v.Price, err)}
			}
			rec, err := batch.Get(ctx, shopID, v.ID)
			if err != nil {
				batch.Rollback()
				return nil, &PersistenceError{Err: err}
			}
			switch {
			case rec == nil:
				// First observation: start with an empty undo stack.
				rec = &PriceRecord{
					ShopID:       shopID,
					VariantID:    v.ID,
					ProductID:    p.ID,
					ProductTitle: p.Title,
					CurrentPrice: live,
					PriceHistory: PriceHistory{},
				}
			case !rec.CurrentPrice.Equal(live):
				// External drift: overwrite silently, no history append, so
				// changes made outside this tool stay invisible to undo.
				rec.ProductTitle = p.Title
				rec.CurrentPrice = live
			default:
				continue
			}
			if err := batch.Upsert(ctx, rec); err != nil {
				batch.Rollback()
				return nil, &PersistenceError{Err: err}
			}
		}
	}
	if err := batch.Commit(); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	records, err := s.repo.ListByShop(ctx, shopID)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	byVariant := make(map[int64]*PriceRecord, len(records))
	for _, rec := range records {
		byVariant[rec.VariantID] = rec
	}

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		view := ProductView{ID: p.ID, Title: p.Title, Variants: make([]VariantView, 0, len(p.Variants))}
		for _, v := range p.Variants {
			vv := VariantView{
				ID:                v.ID,
				Title:             v.Title,
				Price:             v.Price,
				InventoryQuantity: v.InventoryQuantity,
				PriceHistory:      []string{},
			}
			if rec, ok := byVariant[v.ID]; ok {
				vv.PriceHistory = rec.PriceHistory.Strings()
				if last, ok := rec.PriceHistory.Last(); ok {
					old := last.String()
					vv.OldPrice = &old
				}
			}
			view.Variants = append(view.Variants, vv)
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *service) AdjustPrices(ctx context.Context, shopID, accessToken string, req AdjustRequest) (*BulkResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	factor := req.Percentage.Div(decimal.NewFromInt(100))
	multiplier := decimal.NewFromInt(1).Add(factor)
	if req.AdjustmentType == "down" {
		multiplier = decimal.NewFromInt(1).Sub(factor)
	}

	res := &BulkResult{Errors: []string{}}
	res.Summary.TotalProcessed = len(req.ProductIDs)

	batch, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	for _, productID := range req.ProductIDs {
		product, err := s.catalog.GetProduct(ctx, shopID, accessToken, productID)
		if err != nil {
			res.Summary.FailedUpdates++
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to fetch product %s", productID))
			continue
		}
		for _, v := range product.Variants {
			// The live catalog price is authoritative at adjustment time,
			// not the local mirror.
			live, err := decimal.NewFromString(v.Price)
			if err != nil {
				res.Summary.FailedUpdates++
				res.Errors = append(res.Errors, fmt.Sprintf("Failed to update variant %d of product %s", v.ID, productID))
				continue
			}
			newPrice := live.Mul(multiplier).Round(2)
			if err := s.catalog.UpdateVariantPrice(ctx, shopID, accessToken, v.ID, newPrice.StringFixed(2)); err != nil {
				res.Summary.FailedUpdates++
				res.Errors = append(res.Errors, fmt.Sprintf("Failed to update variant %d of product %s", v.ID, productID))
				continue
			}

			rec, err := batch.Get(ctx, shopID, v.ID)
			if err != nil {
				batch.Rollback()
				return nil, &PersistenceError{Err: err}
			}
			if rec == nil {
				rec = &PriceRecord{
					ShopID:       shopID,
					VariantID:    v.ID,
					ProductID:    product.ID,
					ProductTitle: product.Title,
					CurrentPrice: newPrice,
					PriceHistory: PriceHistory{live},
				}
			} else {
				rec.ProductID = product.ID
				rec.ProductTitle = product.Title
				rec.PriceHistory = append(rec.PriceHistory, live)
				rec.CurrentPrice = newPrice
			}
			if err := batch.Upsert(ctx, rec); err != nil {
				batch.Rollback()
				return nil, &PersistenceError{Err: err}
			}
			res.Summary.SuccessfulUpdates++
		}
	}
	if err := batch.Commit(); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	res.Success = res.Summary.FailedUpdates == 0
	return res, nil
}

func (s *service) UndoPriceChanges(ctx context.Context, shopID, accessToken string, req UndoRequest) (*BulkResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	res := &BulkResult{Errors: []string{}}
	res.Summary.TotalProcessed = len(req.ProductIDs)
	// Echoes the requested count; a variant with a shorter history undoes fewer steps.
	res.Summary.StepsUndone = req.Steps

	batch, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}
	for _, productID := range req.ProductIDs {
		product, err := s.catalog.GetProduct(ctx, shopID, accessToken, productID)
		if err != nil {
			res.Summary.FailedUpdates++
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to fetch product %s", productID))
			continue
		}
		for _, v := range product.Variants {
			rec, err := batch.Get(ctx, shopID, v.ID)
			if err != nil {
				batch.Rollback()
				return nil, &PersistenceError{Err: err}
			}
			// Nothing to revert is a no-op, not an error.
			if rec == nil || len(rec.PriceHistory) == 0 {
				continue
			}
			target, stepsToUndo := rec.PriceHistory.UndoPlan(req.Steps)
			if err := s.catalog.UpdateVariantPrice(ctx, shopID, accessToken, v.ID, target.StringFixed(2)); err != nil {
				res.Summary.FailedUpdates++
				res.Errors = append(res.Errors, fmt.Sprintf("Failed to update variant %d of product %s", v.ID, productID))
				continue
			}
			rec.PriceHistory = rec.PriceHistory.DropLast(stepsToUndo)
			rec.CurrentPrice = target
			if err := batch.Upsert(ctx, rec); err != nil {
				batch.Rollback()
				return nil, &PersistenceError{Err: err}
			}
			res.Summary.SuccessfulUpdates++
		}
	}
	if err := batch.Commit(); err != nil {
		return nil, &PersistenceError{Err: err}
	}

	res.Success = res.Summary.FailedUpdates == 0
	return res, nil
}
