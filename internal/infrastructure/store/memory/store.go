// Package memory is an in-process storage backend. A single mutex guards
// all state; transactions hold it for their whole duration and restore a
// snapshot on error.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/ec-storefront/internal/domain/account"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

type state struct {
	accounts   map[string]*account.Account
	emails     map[string]string // email -> account id
	products   map[string]*product.Product
	productIDs []string // insertion order
	orders     map[string]*order.Order
	orderIDs   []string // insertion order
	outbox     []store.Event
	published  map[string]time.Time
	idem       map[string]string // account id + key -> order id
}

func newState() *state {
	return &state{
		accounts:  make(map[string]*account.Account),
		emails:    make(map[string]string),
		products:  make(map[string]*product.Product),
		orders:    make(map[string]*order.Order),
		published: make(map[string]time.Time),
		idem:      make(map[string]string),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, a := range s.accounts {
		c.accounts[id] = a.Clone()
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for id, p := range s.products {
		c.products[id] = p.Clone()
	}
	c.productIDs = append([]string{}, s.productIDs...)
	for id, o := range s.orders {
		c.orders[id] = o.Clone()
	}
	c.orderIDs = append([]string{}, s.orderIDs...)
	c.outbox = append([]store.Event{}, s.outbox...)
	for k, v := range s.published {
		c.published[k] = v
	}
	for k, v := range s.idem {
		c.idem[k] = v
	}
	return c
}

// Store implements store.Store in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

type repos struct {
	s    *Store
	inTx bool
}

// do runs fn against the current state, taking the lock unless the caller
// is already inside WithinTx.
func (r repos) do(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.inTx {
		return fn(r.s.st)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return fn(r.s.st)
}

func (r repos) Accounts() store.AccountRepository            { return accountRepo{r} }
func (r repos) Products() store.ProductRepository            { return productRepo{r} }
func (r repos) Orders() store.OrderRepository                { return orderRepo{r} }
func (r repos) Outbox() store.OutboxRepository               { return outboxRepo{r} }
func (r repos) IdempotencyKeys() store.IdempotencyRepository { return idemRepo{r} }

func (s *Store) Accounts() store.AccountRepository            { return repos{s: s}.Accounts() }
func (s *Store) Products() store.ProductRepository            { return repos{s: s}.Products() }
func (s *Store) Orders() store.OrderRepository                { return repos{s: s}.Orders() }
func (s *Store) Outbox() store.OutboxRepository               { return repos{s: s}.Outbox() }
func (s *Store) IdempotencyKeys() store.IdempotencyRepository { return repos{s: s}.IdempotencyKeys() }

// WithinTx serializes fn against every other operation on the store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, repos{s: s, inTx: true}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error { return nil }

// ============================================
// Accounts
// ============================================

type accountRepo struct{ repos }

func (r accountRepo) Create(ctx context.Context, a *account.Account) error {
	return r.do(ctx, func(st *state) error {
		if _, taken := st.emails[a.Email]; taken {
			return account.ErrEmailTaken
		}
		st.accounts[a.ID] = a.Clone()
		st.emails[a.Email] = a.ID
		return nil
	})
}

func (r accountRepo) GetByID(ctx context.Context, id string) (*account.Account, error) {
	var out *account.Account
	err := r.do(ctx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return account.ErrAccountNotFound
		}
		out = a.Clone()
		return nil
	})
	return out, err
}

func (r accountRepo) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	var out *account.Account
	err := r.do(ctx, func(st *state) error {
		id, ok := st.emails[account.NormalizeEmail(email)]
		if !ok {
			return account.ErrAccountNotFound
		}
		out = st.accounts[id].Clone()
		return nil
	})
	return out, err
}

// mutate applies fn to the stored account in place.
func (r accountRepo) mutate(ctx context.Context, accountID string, fn func(a *account.Account) error) error {
	return r.do(ctx, func(st *state) error {
		a, ok := st.accounts[accountID]
		if !ok {
			return account.ErrAccountNotFound
		}
		next := a.Clone()
		if err := fn(next); err != nil {
			return err
		}
		next.UpdatedAt = time.Now().UTC()
		st.accounts[accountID] = next
		return nil
	})
}

func (r accountRepo) AddAddress(ctx context.Context, accountID string, addr account.Address) error {
	return r.mutate(ctx, accountID, func(a *account.Account) error {
		a.AppendAddress(addr)
		return nil
	})
}

func (r accountRepo) RemoveAddress(ctx context.Context, accountID, addressID string) error {
	return r.mutate(ctx, accountID, func(a *account.Account) error {
		a.RemoveAddress(addressID)
		return nil
	})
}

func (r accountRepo) AddCartItem(ctx context.Context, accountID, productID string, quantity int) error {
	return r.mutate(ctx, accountID, func(a *account.Account) error {
		return a.AddToCart(productID, quantity, time.Now().UTC())
	})
}

func (r accountRepo) IncreaseCartItem(ctx context.Context, accountID, productID string) error {
	return r.mutate(ctx, accountID, func(a *account.Account) error {
		return a.IncreaseCartItem(productID)
	})
}

func (r accountRepo) DecreaseCartItem(ctx context.Context, accountID, productID string) error {
	return r.mutate(ctx, accountID, func(a *account.Account) error {
		return a.DecreaseCartItem(productID)
	})
}

func (r accountRepo) RemoveCartItem(ctx context.Context, accountID, productID string) error {
	return r.mutate(ctx, accountID, func(a *account.Account) error {
		a.RemoveCartItem(productID)
		return nil
	})
}

func (r accountRepo) ClearCart(ctx context.Context, accountID string) error {
	return r.mutate(ctx, accountID, func(a *account.Account) error {
		a.ClearCart()
		return nil
	})
}

// ============================================
// Products
// ============================================

type productRepo struct{ repos }

func (r productRepo) Create(ctx context.Context, p *product.Product) error {
	return r.do(ctx, func(st *state) error {
		st.products[p.ID] = p.Clone()
		st.productIDs = append(st.productIDs, p.ID)
		return nil
	})
}

func (r productRepo) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var out *product.Product
	err := r.do(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return product.ErrProductNotFound
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

func (r productRepo) GetMany(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	out := make(map[string]*product.Product, len(ids))
	err := r.do(ctx, func(st *state) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				out[id] = p.Clone()
			}
		}
		return nil
	})
	return out, err
}

func (r productRepo) List(ctx context.Context) ([]*product.Product, error) {
	return r.list(ctx, func(*product.Product) bool { return true })
}

func (r productRepo) ListByOwner(ctx context.Context, ownerID string) ([]*product.Product, error) {
	return r.list(ctx, func(p *product.Product) bool { return p.OwnerID == ownerID })
}

func (r productRepo) list(ctx context.Context, keep func(*product.Product) bool) ([]*product.Product, error) {
	out := make([]*product.Product, 0)
	err := r.do(ctx, func(st *state) error {
		for _, id := range st.productIDs {
			if p := st.products[id]; keep(p) {
				out = append(out, p.Clone())
			}
		}
		return nil
	})
	return out, err
}

func (r productRepo) Update(ctx context.Context, p *product.Product) error {
	return r.do(ctx, func(st *state) error {
		if _, ok := st.products[p.ID]; !ok {
			return product.ErrProductNotFound
		}
		st.products[p.ID] = p.Clone()
		return nil
	})
}

func (r productRepo) Delete(ctx context.Context, id string) error {
	return r.do(ctx, func(st *state) error {
		if _, ok := st.products[id]; !ok {
			return product.ErrProductNotFound
		}
		delete(st.products, id)
		for i, pid := range st.productIDs {
			if pid == id {
				st.productIDs = append(st.productIDs[:i:i], st.productIDs[i+1:]...)
				break
			}
		}
		return nil
	})
}

func (r productRepo) AdjustStock(ctx context.Context, id string, delta int) error {
	return r.do(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return product.ErrProductNotFound
		}
		next := p.Clone()
		if err := next.ApplyStockDelta(delta); err != nil {
			return err
		}
		next.UpdatedAt = time.Now().UTC()
		st.products[id] = next
		return nil
	})
}

// ============================================
// Orders
// ============================================

type orderRepo struct{ repos }

func (r orderRepo) Create(ctx context.Context, o *order.Order) error {
	return r.do(ctx, func(st *state) error {
		st.orders[o.ID] = o.Clone()
		st.orderIDs = append(st.orderIDs, o.ID)
		return nil
	})
}

func (r orderRepo) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var out *order.Order
	err := r.do(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return order.ErrOrderNotFound
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

func (r orderRepo) ListByAccount(ctx context.Context, accountID string) ([]*order.Order, error) {
	out := make([]*order.Order, 0)
	err := r.do(ctx, func(st *state) error {
		// Walk newest insertion first so equal timestamps keep that order.
		for i := len(st.orderIDs) - 1; i >= 0; i-- {
			if o := st.orders[st.orderIDs[i]]; o.AccountID == accountID {
				out = append(out, o.Clone())
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, err
}

func (r orderRepo) UpdateStatus(ctx context.Context, o *order.Order, from order.Status) error {
	return r.do(ctx, func(st *state) error {
		current, ok := st.orders[o.ID]
		if !ok {
			return order.ErrOrderNotFound
		}
		if current.Status != from {
			return order.ErrStatusChanged
		}
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

// ============================================
// Outbox
// ============================================

type outboxRepo struct{ repos }

func (r outboxRepo) Append(ctx context.Context, e store.Event) error {
	return r.do(ctx, func(st *state) error {
		st.outbox = append(st.outbox, e)
		return nil
	})
}

func (r outboxRepo) Pending(ctx context.Context, limit int) ([]store.Event, error) {
	var out []store.Event
	err := r.do(ctx, func(st *state) error {
		for _, e := range st.outbox {
			if _, done := st.published[e.ID]; done {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r outboxRepo) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	return r.do(ctx, func(st *state) error {
		for _, id := range ids {
			st.published[id] = at
		}
		return nil
	})
}

// ============================================
// Idempotency keys
// ============================================

type idemRepo struct{ repos }

func idemKey(accountID, key string) string {
	return accountID + "\x00" + key
}

func (r idemRepo) Get(ctx context.Context, accountID, key string) (string, bool, error) {
	var (
		orderID string
		found   bool
	)
	err := r.do(ctx, func(st *state) error {
		orderID, found = st.idem[idemKey(accountID, key)]
		return nil
	})
	return orderID, found, err
}

func (r idemRepo) Put(ctx context.Context, accountID, key, orderID string) error {
	return r.do(ctx, func(st *state) error {
		k := idemKey(accountID, key)
		if _, exists := st.idem[k]; exists {
			return order.ErrDuplicateOrderKey
		}
		st.idem[k] = orderID
		return nil
	})
}
