package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-storefront/internal/apperr"
	"github.com/google/uuid"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// MaxCartQuantity caps a single cart entry and a single order line.
const MaxCartQuantity = 999

var (
	ErrAccountNotFound  = apperr.New(apperr.KindNotFound, "account not found")
	ErrAddressNotFound  = apperr.New(apperr.KindNotFound, "address not found")
	ErrCartItemNotFound = apperr.New(apperr.KindNotFound, "cart item not found")
	ErrEmailTaken       = apperr.New(apperr.KindConflict, "email is already registered")
	ErrInvalidEmail     = apperr.New(apperr.KindValidation, "email is required")
	ErrInvalidQuantity  = apperr.New(apperr.KindValidation, "quantity must be positive")
	ErrQuantityLimit    = apperr.New(apperr.KindValidation, fmt.Sprintf("quantity may not exceed %d", MaxCartQuantity))
	ErrInvalidProduct   = apperr.New(apperr.KindValidation, "product_id is required")
)

// CartItem is one (product, quantity) entry of an account's cart.
// An account holds at most one entry per product.
type CartItem struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

type Account struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Addresses    []Address  `json:"addresses"`
	Cart         []CartItem `json:"cart"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// New builds a customer account with a fresh identifier.
func New(email, name, passwordHash string) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	now := time.Now().UTC()
	return &Account{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		Role:         RoleCustomer,
		Addresses:    []Address{},
		Cart:         []CartItem{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail lowercases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindAddress returns the address with the given identifier.
func (a *Account) FindAddress(id string) (Address, bool) {
	for _, addr := range a.Addresses {
		if addr.ID == id {
			return addr, true
		}
	}
	return Address{}, false
}

// AppendAddress adds an already validated address at the end of the list.
func (a *Account) AppendAddress(addr Address) {
	a.Addresses = append(a.Addresses, addr)
}

// RemoveAddress drops the address with the given identifier. It reports
// whether anything was removed.
func (a *Account) RemoveAddress(id string) bool {
	for i, addr := range a.Addresses {
		if addr.ID == id {
			a.Addresses = append(a.Addresses[:i], a.Addresses[i+1:]...)
			return true
		}
	}
	return false
}

// ValidateQuantity checks a requested quantity against 1..MaxCartQuantity.
func ValidateQuantity(quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if quantity > MaxCartQuantity {
		return ErrQuantityLimit
	}
	return nil
}

// AddToCart accumulates quantity onto an existing entry or appends a new one.
// The accumulated quantity may not exceed MaxCartQuantity.
func (a *Account) AddToCart(productID string, quantity int, now time.Time) error {
	if productID == "" {
		return ErrInvalidProduct
	}
	if err := ValidateQuantity(quantity); err != nil {
		return err
	}
	for i := range a.Cart {
		if a.Cart[i].ProductID == productID {
			if a.Cart[i].Quantity > MaxCartQuantity-quantity {
				return ErrQuantityLimit
			}
			a.Cart[i].Quantity += quantity
			return nil
		}
	}
	a.Cart = append(a.Cart, CartItem{ProductID: productID, Quantity: quantity, AddedAt: now})
	return nil
}

// IncreaseCartItem adds one to an existing entry.
func (a *Account) IncreaseCartItem(productID string) error {
	for i := range a.Cart {
		if a.Cart[i].ProductID == productID {
			if a.Cart[i].Quantity >= MaxCartQuantity {
				return ErrQuantityLimit
			}
			a.Cart[i].Quantity++
			return nil
		}
	}
	return ErrCartItemNotFound
}

// DecreaseCartItem subtracts one from an entry, removing it when it would
// drop below one.
func (a *Account) DecreaseCartItem(productID string) error {
	for i := range a.Cart {
		if a.Cart[i].ProductID != productID {
			continue
		}
		if a.Cart[i].Quantity > 1 {
			a.Cart[i].Quantity--
			return nil
		}
		a.Cart = append(a.Cart[:i], a.Cart[i+1:]...)
		return nil
	}
	return ErrCartItemNotFound
}

// RemoveCartItem drops the entry for productID if present.
func (a *Account) RemoveCartItem(productID string) bool {
	for i := range a.Cart {
		if a.Cart[i].ProductID == productID {
			a.Cart = append(a.Cart[:i], a.Cart[i+1:]...)
			return true
		}
	}
	return false
}

func (a *Account) ClearCart() {
	a.Cart = []CartItem{}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Addresses = append([]Address{}, a.Addresses...)
	c.Cart = append([]CartItem{}, a.Cart...)
	return &c
}
