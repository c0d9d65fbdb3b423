package product

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// PriceScale is the number of decimal places a price may carry.
	PriceScale = 2
	MaxStock   = 1_000_000
)

// MaxPrice bounds a unit price so order totals stay within storage range.
var MaxPrice = decimal.NewFromInt(1_000_000)

var (
	ErrProductNotFound   = apperr.New(apperr.KindNotFound, "product not found")
	ErrInvalidName       = apperr.New(apperr.KindValidation, "name is required")
	ErrInvalidPrice      = apperr.New(apperr.KindValidation, "price must not be negative")
	ErrPricePrecision    = apperr.New(apperr.KindValidation, fmt.Sprintf("price may have at most %d decimal places", PriceScale))
	ErrPriceLimit        = apperr.New(apperr.KindValidation, fmt.Sprintf("price may not exceed %s", MaxPrice))
	ErrInvalidStock      = apperr.New(apperr.KindValidation, "stock must not be negative")
	ErrStockLimit        = apperr.New(apperr.KindValidation, fmt.Sprintf("stock may not exceed %d", MaxStock))
	ErrInsufficientStock = apperr.New(apperr.KindInsufficientStock, "insufficient stock")
)

// InsufficientStockError reports a stock adjustment that would drive stock
// below zero.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s", name)
}

func (e *InsufficientStockError) Kind() apperr.Kind { return apperr.KindInsufficientStock }

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type Product struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	Images      []string        `json:"images"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Fields are the owner-editable attributes used to create a product.
type Fields struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	Images      []string        `json:"images"`
}

// Patch is a partial update; nil members are left unchanged.
type Patch struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	Stock       *int             `json:"stock"`
	Images      []string         `json:"images"`
}

// New validates fields and creates a product owned by ownerID.
func New(ownerID string, f Fields) (*Product, error) {
	now := time.Now().UTC()
	p := &Product{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(f.Name),
		Description: f.Description,
		Price:       f.Price,
		Category:    f.Category,
		Stock:       f.Stock,
		Images:      append([]string{}, f.Images...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Product) Validate() error {
	if p.Name == "" {
		return ErrInvalidName
	}
	if p.Price.IsNegative() {
		return ErrInvalidPrice
	}
	if !p.Price.Equal(p.Price.Truncate(PriceScale)) {
		return ErrPricePrecision
	}
	if p.Price.GreaterThan(MaxPrice) {
		return ErrPriceLimit
	}
	if p.Stock < 0 {
		return ErrInvalidStock
	}
	if p.Stock > MaxStock {
		return ErrStockLimit
	}
	return nil
}

// ValidateStockDelta rejects adjustments larger than MaxStock in either
// direction.
func ValidateStockDelta(delta int) error {
	if delta > MaxStock || delta < -MaxStock {
		return ErrStockLimit
	}
	return nil
}

// Apply merges patch into p and re-validates. p is left untouched on error.
func (p *Product) Apply(patch Patch, now time.Time) error {
	next := p.Clone()
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Price != nil {
		next.Price = *patch.Price
	}
	if patch.Category != nil {
		next.Category = *patch.Category
	}
	if patch.Stock != nil {
		next.Stock = *patch.Stock
	}
	if patch.Images != nil {
		next.Images = append([]string{}, patch.Images...)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = now
	*p = *next
	return nil
}

// ApplyStockDelta adds delta to the stock, refusing to go negative or past
// MaxStock.
func (p *Product) ApplyStockDelta(delta int) error {
	if err := ValidateStockDelta(delta); err != nil {
		return err
	}
	if p.Stock+delta > MaxStock {
		return ErrStockLimit
	}
	if p.Stock+delta < 0 {
		return &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   -delta,
			Available:   p.Stock,
		}
	}
	p.Stock += delta
	return nil
}

// PrimaryImage returns the first image reference, or "" when there is none.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.Images = append([]string{}, p.Images...)
	return &c
}
