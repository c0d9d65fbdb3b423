package mongodb

import (
	"fmt"
	"time"

	"github.com/example/ec-storefront/internal/domain/account"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode decimal %s: %w", v, err)
	}
	return d, nil
}

type addressDoc struct {
	ID         string `bson:"id"`
	Country    string `bson:"country"`
	City       string `bson:"city"`
	Line1      string `bson:"line1"`
	Line2      string `bson:"line2,omitempty"`
	PostalCode string `bson:"postal_code"`
	Type       string `bson:"type"`
}

func toAddressDoc(a account.Address) addressDoc {
	return addressDoc{
		ID:         a.ID,
		Country:    a.Country,
		City:       a.City,
		Line1:      a.Line1,
		Line2:      a.Line2,
		PostalCode: a.PostalCode,
		Type:       string(a.Type),
	}
}

func (d addressDoc) toDomain() account.Address {
	return account.Address{
		ID:         d.ID,
		Country:    d.Country,
		City:       d.City,
		Line1:      d.Line1,
		Line2:      d.Line2,
		PostalCode: d.PostalCode,
		Type:       account.AddressType(d.Type),
	}
}

type cartItemDoc struct {
	ProductID string    `bson:"product_id"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"added_at"`
}

type accountDoc struct {
	ID           string        `bson:"_id"`
	Email        string        `bson:"email"`
	Name         string        `bson:"name"`
	PasswordHash string        `bson:"password_hash"`
	Role         string        `bson:"role"`
	Addresses    []addressDoc  `bson:"addresses"`
	Cart         []cartItemDoc `bson:"cart"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

func toAccountDoc(a *account.Account) accountDoc {
	doc := accountDoc{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.Name,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		Addresses:    make([]addressDoc, 0, len(a.Addresses)),
		Cart:         make([]cartItemDoc, 0, len(a.Cart)),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	for _, addr := range a.Addresses {
		doc.Addresses = append(doc.Addresses, toAddressDoc(addr))
	}
	for _, item := range a.Cart {
		doc.Cart = append(doc.Cart, cartItemDoc(item))
	}
	return doc
}

func (d accountDoc) toDomain() *account.Account {
	a := &account.Account{
		ID:           d.ID,
		Email:        d.Email,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
		Addresses:    make([]account.Address, 0, len(d.Addresses)),
		Cart:         make([]account.CartItem, 0, len(d.Cart)),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	for _, addr := range d.Addresses {
		a.Addresses = append(a.Addresses, addr.toDomain())
	}
	for _, item := range d.Cart {
		item.AddedAt = item.AddedAt.UTC()
		a.Cart = append(a.Cart, account.CartItem(item))
	}
	return a
}

type productDoc struct {
	ID          string               `bson:"_id"`
	OwnerID     string               `bson:"owner_id"`
	Name        string               `bson:"name"`
	Description string               `bson:"description"`
	Price       primitive.Decimal128 `bson:"price"`
	Category    string               `bson:"category"`
	Stock       int                  `bson:"stock"`
	Images      []string             `bson:"images"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

func toProductDoc(p *product.Product) (productDoc, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return productDoc{}, err
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productDoc{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Price:       price,
		Category:    p.Category,
		Stock:       p.Stock,
		Images:      images,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

func (d productDoc) toDomain() (*product.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return nil, err
	}
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return &product.Product{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Name:        d.Name,
		Description: d.Description,
		Price:       price,
		Category:    d.Category,
		Stock:       d.Stock,
		Images:      images,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}, nil
}

type lineDoc struct {
	ProductID string               `bson:"product_id"`
	Name      string               `bson:"name"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
	Image     string               `bson:"image,omitempty"`
}

type orderDoc struct {
	ID              string               `bson:"_id"`
	AccountID       string               `bson:"account_id"`
	Lines           []lineDoc            `bson:"lines"`
	ShippingAddress addressDoc           `bson:"shipping_address"`
	Total           primitive.Decimal128 `bson:"total"`
	Status          string               `bson:"status"`
	CancelReason    string               `bson:"cancel_reason,omitempty"`
	CreatedAt       time.Time            `bson:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at"`
	ShippedAt       *time.Time           `bson:"shipped_at,omitempty"`
	DeliveredAt     *time.Time           `bson:"delivered_at,omitempty"`
	CancelledAt     *time.Time           `bson:"cancelled_at,omitempty"`
}

func toOrderDoc(o *order.Order) (orderDoc, error) {
	total, err := toDecimal128(o.Total)
	if err != nil {
		return orderDoc{}, err
	}
	doc := orderDoc{
		ID:              o.ID,
		AccountID:       o.AccountID,
		Lines:           make([]lineDoc, 0, len(o.Lines)),
		ShippingAddress: toAddressDoc(o.ShippingAddress),
		Total:           total,
		Status:          string(o.Status),
		CancelReason:    o.CancelReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
	}
	for _, l := range o.Lines {
		price, err := toDecimal128(l.UnitPrice)
		if err != nil {
			return orderDoc{}, err
		}
		doc.Lines = append(doc.Lines, lineDoc{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: price,
			Image:     l.Image,
		})
	}
	return doc, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func (d orderDoc) toDomain() (*order.Order, error) {
	total, err := fromDecimal128(d.Total)
	if err != nil {
		return nil, err
	}
	o := &order.Order{
		ID:              d.ID,
		AccountID:       d.AccountID,
		Lines:           make([]order.Line, 0, len(d.Lines)),
		ShippingAddress: d.ShippingAddress.toDomain(),
		Total:           total,
		Status:          order.Status(d.Status),
		CancelReason:    d.CancelReason,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
		ShippedAt:       utcPtr(d.ShippedAt),
		DeliveredAt:     utcPtr(d.DeliveredAt),
		CancelledAt:     utcPtr(d.CancelledAt),
	}
	for _, l := range d.Lines {
		price, err := fromDecimal128(l.UnitPrice)
		if err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, order.Line{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: price,
			Image:     l.Image,
		})
	}
	return o, nil
}

type eventDoc struct {
	ID            string     `bson:"_id"`
	AggregateID   string     `bson:"aggregate_id"`
	AggregateType string     `bson:"aggregate_type"`
	EventType     string     `bson:"event_type"`
	Data          string     `bson:"data"`
	CreatedAt     time.Time  `bson:"created_at"`
	PublishedAt   *time.Time `bson:"published_at"`
}

func toEventDoc(e store.Event) eventDoc {
	return eventDoc{
		ID:            e.ID,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		EventType:     e.EventType,
		Data:          string(e.Data),
		CreatedAt:     e.Timestamp,
	}
}

func (d eventDoc) toDomain() store.Event {
	return store.Event{
		ID:            d.ID,
		AggregateID:   d.AggregateID,
		AggregateType: d.AggregateType,
		EventType:     d.EventType,
		Data:          []byte(d.Data),
		Timestamp:     d.CreatedAt.UTC(),
	}
}
