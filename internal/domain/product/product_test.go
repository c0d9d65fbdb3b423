package product

import (
	"math"
	"testing"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() Fields {
	return Fields{
		Name:        "Teak Spice Box",
		Description: "Hand carved",
		Price:       decimal.RequireFromString("10.00"),
		Category:    "kitchen",
		Stock:       5,
		Images:      []string{"https://img/1.jpg", "https://img/2.jpg"},
	}
}

// ============================================
// Create Tests
// ============================================

func TestNew_Success(t *testing.T) {
	p, err := New("owner-1", validFields())

	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "owner-1", p.OwnerID)
	assert.True(t, decimal.RequireFromString("10").Equal(p.Price))
	assert.Equal(t, 5, p.Stock)
	assert.Equal(t, "https://img/1.jpg", p.PrimaryImage())
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Fields)
		wantErr error
	}{
		{"empty name", func(f *Fields) { f.Name = "  " }, ErrInvalidName},
		{"negative price", func(f *Fields) { f.Price = decimal.NewFromInt(-1) }, ErrInvalidPrice},
		{"negative stock", func(f *Fields) { f.Stock = -1 }, ErrInvalidStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(&f)

			p, err := New("owner-1", f)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Nil(t, p)
		})
	}
}

func TestNew_ZeroPriceAndStockAllowed(t *testing.T) {
	f := validFields()
	f.Price = decimal.Zero
	f.Stock = 0

	_, err := New("owner-1", f)

	assert.NoError(t, err)
}

// ============================================
// Update Tests
// ============================================

func TestProduct_Apply_MergesFields(t *testing.T) {
	p, err := New("owner-1", validFields())
	require.NoError(t, err)

	name := "Renamed"
	price := decimal.RequireFromString("12.50")
	now := time.Now().Add(time.Hour)

	require.NoError(t, p.Apply(Patch{Name: &name, Price: &price}, now))

	assert.Equal(t, "Renamed", p.Name)
	assert.True(t, price.Equal(p.Price))
	assert.Equal(t, "Hand carved", p.Description)
	assert.Equal(t, 5, p.Stock)
	assert.Equal(t, now, p.UpdatedAt)
}

func TestProduct_Apply_InvalidLeavesProductUntouched(t *testing.T) {
	p, err := New("owner-1", validFields())
	require.NoError(t, err)
	stock := -3
	name := "New name"

	err = p.Apply(Patch{Name: &name, Stock: &stock}, time.Now())

	assert.ErrorIs(t, err, ErrInvalidStock)
	assert.Equal(t, "Teak Spice Box", p.Name)
	assert.Equal(t, 5, p.Stock)
}

func TestNew_PriceLimits(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		wantErr error
	}{
		{name: "two places", price: "10.05"},
		{name: "trailing zeros", price: "10.500"},
		{name: "at max", price: "1000000"},
		{name: "three places", price: "10.005", wantErr: ErrPricePrecision},
		{name: "tiny fraction", price: "0.001", wantErr: ErrPricePrecision},
		{name: "over max", price: "1000000.01", wantErr: ErrPriceLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			f.Price = decimal.RequireFromString(tt.price)

			p, err := New("owner-1", f)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.True(t, p.Price.Equal(p.Price.Round(PriceScale)))
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestProduct_Apply_RejectsSubCentPrice(t *testing.T) {
	p, err := New("owner-1", validFields())
	require.NoError(t, err)
	price := decimal.RequireFromString("10.005")

	err = p.Apply(Patch{Price: &price}, time.Now())

	assert.ErrorIs(t, err, ErrPricePrecision)
	assert.True(t, decimal.RequireFromString("10.00").Equal(p.Price))
}

func TestNew_StockLimit(t *testing.T) {
	f := validFields()
	f.Stock = MaxStock + 1

	_, err := New("owner-1", f)

	assert.ErrorIs(t, err, ErrStockLimit)
}

// ============================================
// Stock Tests
// ============================================

func TestProduct_ApplyStockDelta(t *testing.T) {
	p, err := New("owner-1", validFields())
	require.NoError(t, err)

	require.NoError(t, p.ApplyStockDelta(-5))
	assert.Equal(t, 0, p.Stock)

	err = p.ApplyStockDelta(-1)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	assert.Equal(t, "insufficient stock for Teak Spice Box", err.Error())
	assert.Equal(t, 0, p.Stock)

	require.NoError(t, p.ApplyStockDelta(4))
	assert.Equal(t, 4, p.Stock)
}

func TestProduct_ApplyStockDelta_Limits(t *testing.T) {
	p, err := New("owner-1", validFields())
	require.NoError(t, err)

	err = p.ApplyStockDelta(math.MaxInt)
	assert.ErrorIs(t, err, ErrStockLimit)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, 5, p.Stock)

	assert.ErrorIs(t, p.ApplyStockDelta(MaxStock-4), ErrStockLimit)
	assert.Equal(t, 5, p.Stock)

	require.NoError(t, p.ApplyStockDelta(MaxStock-5))
	assert.Equal(t, MaxStock, p.Stock)

	assert.ErrorIs(t, p.ApplyStockDelta(math.MinInt), ErrStockLimit)
	assert.Equal(t, MaxStock, p.Stock)
}

func TestValidateStockDelta(t *testing.T) {
	assert.NoError(t, ValidateStockDelta(MaxStock))
	assert.NoError(t, ValidateStockDelta(-MaxStock))
	assert.ErrorIs(t, ValidateStockDelta(MaxStock+1), ErrStockLimit)
	assert.ErrorIs(t, ValidateStockDelta(-MaxStock-1), ErrStockLimit)
}

func TestInsufficientStockError_FallsBackToID(t *testing.T) {
	err := &InsufficientStockError{ProductID: "prod-9"}
	assert.Equal(t, "insufficient stock for prod-9", err.Error())
}

func TestProduct_Clone(t *testing.T) {
	p, err := New("owner-1", validFields())
	require.NoError(t, err)

	c := p.Clone()
	c.Images[0] = "changed"

	assert.Equal(t, "https://img/1.jpg", p.Images[0])
	assert.Equal(t, "", (&Product{}).PrimaryImage())
}
