package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/ec-storefront/internal/domain/account"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccount(t *testing.T, s *Store, email string) *account.Account {
	t.Helper()
	a, err := account.New(email, "Test", "hash")
	require.NoError(t, err)
	require.NoError(t, s.Accounts().Create(context.Background(), a))
	return a
}

func newTestProduct(t *testing.T, s *Store, stock int) *product.Product {
	t.Helper()
	p, err := product.New("owner-1", product.Fields{
		Name:  "Box",
		Price: decimal.RequireFromString("10.00"),
		Stock: stock,
	})
	require.NoError(t, err)
	require.NoError(t, s.Products().Create(context.Background(), p))
	return p
}

// ============================================
// Account Tests
// ============================================

func TestAccounts_CreateAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newTestAccount(t, s, "Jane@Example.com")

	byID, err := s.Accounts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", byID.Email)

	byEmail, err := s.Accounts().GetByEmail(ctx, " JANE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byEmail.ID)
}

func TestAccounts_DuplicateEmail(t *testing.T) {
	s := New()
	newTestAccount(t, s, "jane@example.com")

	dup, err := account.New("jane@example.com", "Other", "hash")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Accounts().Create(context.Background(), dup), account.ErrEmailTaken)
}

func TestAccounts_GetByID_NotFound(t *testing.T) {
	s := New()

	a, err := s.Accounts().GetByID(context.Background(), "missing")

	assert.ErrorIs(t, err, account.ErrAccountNotFound)
	assert.Nil(t, a)
}

func TestAccounts_ReturnedValuesAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newTestAccount(t, s, "jane@example.com")

	got, err := s.Accounts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	got.Name = "Mutated"
	got.Cart = append(got.Cart, account.CartItem{ProductID: "x", Quantity: 1})

	again, err := s.Accounts().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test", again.Name)
	assert.Empty(t, again.Cart)
}

func TestAccounts_Addresses(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newTestAccount(t, s, "jane@example.com")
	addr := account.Address{ID: "addr-1", Country: "IN", City: "Pune", Line1: "1 Road", PostalCode: "411001", Type: account.AddressHome}

	require.NoError(t, s.Accounts().AddAddress(ctx, a.ID, addr))
	got, _ := s.Accounts().GetByID(ctx, a.ID)
	require.Len(t, got.Addresses, 1)

	require.NoError(t, s.Accounts().RemoveAddress(ctx, a.ID, "addr-1"))
	require.NoError(t, s.Accounts().RemoveAddress(ctx, a.ID, "addr-1"))
	got, _ = s.Accounts().GetByID(ctx, a.ID)
	assert.Empty(t, got.Addresses)
}

func TestAccounts_CartOperations(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newTestAccount(t, s, "jane@example.com")
	repo := s.Accounts()

	require.NoError(t, repo.AddCartItem(ctx, a.ID, "prod-1", 2))
	require.NoError(t, repo.AddCartItem(ctx, a.ID, "prod-1", 3))
	require.NoError(t, repo.IncreaseCartItem(ctx, a.ID, "prod-1"))

	got, _ := repo.GetByID(ctx, a.ID)
	require.Len(t, got.Cart, 1)
	assert.Equal(t, 6, got.Cart[0].Quantity)

	require.NoError(t, repo.AddCartItem(ctx, a.ID, "prod-2", 1))
	require.NoError(t, repo.DecreaseCartItem(ctx, a.ID, "prod-2"))
	got, _ = repo.GetByID(ctx, a.ID)
	require.Len(t, got.Cart, 1)

	assert.ErrorIs(t, repo.IncreaseCartItem(ctx, a.ID, "prod-2"), account.ErrCartItemNotFound)

	require.NoError(t, repo.RemoveCartItem(ctx, a.ID, "prod-1"))
	got, _ = repo.GetByID(ctx, a.ID)
	assert.Empty(t, got.Cart)
}

func TestAccounts_ClearCart_MissingAccount(t *testing.T) {
	s := New()

	err := s.Accounts().ClearCart(context.Background(), "missing")

	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestAccounts_ConcurrentCartAdds(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newTestAccount(t, s, "jane@example.com")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Accounts().AddCartItem(ctx, a.ID, "prod-1", 1)
		}()
	}
	wg.Wait()

	got, _ := s.Accounts().GetByID(ctx, a.ID)
	require.Len(t, got.Cart, 1)
	assert.Equal(t, 50, got.Cart[0].Quantity)
}

// ============================================
// Product Tests
// ============================================

func TestProducts_ListKeepsInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := newTestProduct(t, s, 1)
	second := newTestProduct(t, s, 1)
	third := newTestProduct(t, s, 1)

	require.NoError(t, s.Products().Delete(ctx, second.ID))

	list, err := s.Products().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, third.ID, list[1].ID)
}

func TestProducts_ListByOwner(t *testing.T) {
	s := New()
	ctx := context.Background()
	newTestProduct(t, s, 1)

	mine, err := s.Products().ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := s.Products().ListByOwner(ctx, "owner-2")
	require.NoError(t, err)
	assert.NotNil(t, theirs)
	assert.Empty(t, theirs)
}

func TestProducts_GetMany_SkipsMissing(t *testing.T) {
	s := New()
	p := newTestProduct(t, s, 1)

	got, err := s.Products().GetMany(context.Background(), []string{p.ID, "missing"})

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, p.ID)
}

func TestProducts_UpdateAndDelete_NotFound(t *testing.T) {
	s := New()
	ctx := context.Background()

	assert.ErrorIs(t, s.Products().Update(ctx, &product.Product{ID: "missing"}), product.ErrProductNotFound)
	assert.ErrorIs(t, s.Products().Delete(ctx, "missing"), product.ErrProductNotFound)
}

func TestProducts_AdjustStock(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newTestProduct(t, s, 5)

	require.NoError(t, s.Products().AdjustStock(ctx, p.ID, -2))
	got, _ := s.Products().GetByID(ctx, p.ID)
	assert.Equal(t, 3, got.Stock)

	err := s.Products().AdjustStock(ctx, p.ID, -4)
	var stockErr *product.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, "Box", stockErr.ProductName)

	got, _ = s.Products().GetByID(ctx, p.ID)
	assert.Equal(t, 3, got.Stock)
}

func TestProducts_AdjustStock_Concurrent(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := newTestProduct(t, s, 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Products().AdjustStock(ctx, p.ID, -1); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, _ := s.Products().GetByID(ctx, p.ID)
	assert.Equal(t, 10, successes)
	assert.Equal(t, 0, got.Stock)
}

// ============================================
// Order Tests
// ============================================

func newTestOrder(t *testing.T, accountID string, createdAt time.Time) *order.Order {
	t.Helper()
	o, err := order.New(accountID, account.Address{ID: "addr-1"}, []order.Line{
		{ProductID: "prod-1", Name: "Box", Quantity: 1, UnitPrice: decimal.RequireFromString("10")},
	}, createdAt)
	require.NoError(t, err)
	return o
}

func TestOrders_ListByAccount_NewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := newTestOrder(t, "acct-1", base)
	newer := newTestOrder(t, "acct-1", base.Add(time.Hour))
	other := newTestOrder(t, "acct-2", base.Add(2*time.Hour))
	require.NoError(t, s.Orders().Create(ctx, newer))
	require.NoError(t, s.Orders().Create(ctx, older))
	require.NoError(t, s.Orders().Create(ctx, other))

	list, err := s.Orders().ListByAccount(ctx, "acct-1")

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestOrders_UpdateStatus_CompareAndSwap(t *testing.T) {
	s := New()
	ctx := context.Background()
	o := newTestOrder(t, "acct-1", time.Now())
	require.NoError(t, s.Orders().Create(ctx, o))

	shipped := o.Clone()
	require.NoError(t, shipped.TransitionTo(order.StatusShipped, time.Now()))
	require.NoError(t, s.Orders().UpdateStatus(ctx, shipped, order.StatusProcessing))

	cancelled := o.Clone()
	require.NoError(t, cancelled.Cancel("", time.Now()))
	err := s.Orders().UpdateStatus(ctx, cancelled, order.StatusProcessing)
	assert.ErrorIs(t, err, order.ErrStatusChanged)

	got, _ := s.Orders().GetByID(ctx, o.ID)
	assert.Equal(t, order.StatusShipped, got.Status)
}

func TestOrders_GetByID_NotFound(t *testing.T) {
	s := New()

	_, err := s.Orders().GetByID(context.Background(), "missing")

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

// ============================================
// Outbox and Idempotency Tests
// ============================================

func TestOutbox_PendingAndMarkPublished(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		e, err := store.NewEvent("order-1", order.AggregateType, order.EventOrderPlaced, map[string]int{"n": i})
		require.NoError(t, err)
		require.NoError(t, s.Outbox().Append(ctx, e))
	}

	pending, err := s.Outbox().Pending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, s.Outbox().MarkPublished(ctx, []string{pending[0].ID, pending[1].ID}, time.Now()))

	rest, err := s.Outbox().Pending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestIdempotencyKeys(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, found, err := s.IdempotencyKeys().Get(ctx, "acct-1", "key-1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.IdempotencyKeys().Put(ctx, "acct-1", "key-1", "order-1"))
	assert.ErrorIs(t, s.IdempotencyKeys().Put(ctx, "acct-1", "key-1", "order-2"), order.ErrDuplicateOrderKey)

	orderID, found, err := s.IdempotencyKeys().Get(ctx, "acct-1", "key-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "order-1", orderID)

	// Keys are scoped per account.
	_, found, _ = s.IdempotencyKeys().Get(ctx, "acct-2", "key-1")
	assert.False(t, found)
}

// ============================================
// Transaction Tests
// ============================================

func TestWithinTx_CommitsAllWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newTestAccount(t, s, "jane@example.com")
	p := newTestProduct(t, s, 5)

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		if err := tx.Products().AdjustStock(ctx, p.ID, -2); err != nil {
			return err
		}
		return tx.Accounts().AddCartItem(ctx, a.ID, p.ID, 1)
	})
	require.NoError(t, err)

	gotP, _ := s.Products().GetByID(ctx, p.ID)
	gotA, _ := s.Accounts().GetByID(ctx, a.ID)
	assert.Equal(t, 3, gotP.Stock)
	assert.Len(t, gotA.Cart, 1)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newTestAccount(t, s, "jane@example.com")
	p := newTestProduct(t, s, 5)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		require.NoError(t, tx.Products().AdjustStock(ctx, p.ID, -5))
		require.NoError(t, tx.Accounts().ClearCart(ctx, a.ID))
		require.NoError(t, tx.Orders().Create(ctx, newTestOrder(t, a.ID, time.Now())))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	gotP, _ := s.Products().GetByID(ctx, p.ID)
	assert.Equal(t, 5, gotP.Stock)
	orders, _ := s.Orders().ListByAccount(ctx, a.ID)
	assert.Empty(t, orders)
}

func TestWithinTx_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		_, err := tx.Products().List(ctx)
		return err
	})

	assert.ErrorIs(t, err, context.Canceled)
}
