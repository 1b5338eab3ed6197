package orders_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/farmlink/marketplace/internal/catalog"
	"github.com/farmlink/marketplace/internal/market"
	"github.com/farmlink/marketplace/internal/money"
	"github.com/farmlink/marketplace/internal/orders"
)

// memStore implements orders.Store and orders.Catalog in memory with the
// same conditional-update semantics as the pgx repo: a transition only
// applies while the order still holds the expected status, and confirm's
// stock check-and-decrement happens under the same lock as the status flip.
type memStore struct {
	mu         sync.Mutex
	products   map[string]*catalog.Product
	orders     map[string]*orders.Order
	byExternal map[string]string
}

func newMemStore(products ...*catalog.Product) *memStore {
	s := &memStore{
		products:   map[string]*catalog.Product{},
		orders:     map[string]*orders.Order{},
		byExternal: map[string]string{},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) Product(_ context.Context, id string) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, market.E(market.KindNotFound, "product %s", id)
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) Insert(_ context.Context, o *orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	cp := *o
	s.orders[o.ID] = &cp
	if o.ExternalID != "" {
		s.byExternal[o.ExternalID] = o.ID
	}
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, market.E(market.KindNotFound, "order %s", id)
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) ByExternalID(_ context.Context, externalID string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, market.E(market.KindNotFound, "order external_id=%s", externalID)
	}
	cp := *s.orders[id]
	return &cp, nil
}

func (s *memStore) Confirm(_ context.Context, orderID string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, market.E(market.KindNotFound, "order %s", orderID)
	}
	if o.Status != orders.StatusPending {
		return nil, market.E(market.KindInvalidTransition, "order %s is %s, not pending", orderID, o.Status)
	}
	p := s.products[o.ProductID]
	if p.Quantity < o.Quantity {
		return nil, market.E(market.KindResourceUnavailable, "product %s has %d left", p.ID, p.Quantity)
	}
	p.Quantity -= o.Quantity
	o.Status = orders.StatusConfirmed
	o.UpdatedAt = time.Now().UTC()
	cp := *o
	return &cp, nil
}

func (s *memStore) CancelRestock(_ context.Context, orderID string, pay orders.PaymentStatus) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, market.E(market.KindNotFound, "order %s", orderID)
	}
	if o.Status != orders.StatusConfirmed {
		return nil, market.E(market.KindInvalidTransition, "order %s is %s, not confirmed", orderID, o.Status)
	}
	s.products[o.ProductID].Quantity += o.Quantity
	o.Status = orders.StatusCancelled
	o.PaymentStatus = pay
	o.UpdatedAt = time.Now().UTC()
	cp := *o
	return &cp, nil
}

func (s *memStore) SetStatus(_ context.Context, orderID string, from, to orders.Status, pay orders.PaymentStatus) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, market.E(market.KindNotFound, "order %s", orderID)
	}
	if o.Status != from {
		return nil, market.E(market.KindInvalidTransition, "order %s no longer %s", orderID, from)
	}
	o.Status = to
	o.PaymentStatus = pay
	o.UpdatedAt = time.Now().UTC()
	cp := *o
	return &cp, nil
}

func (s *memStore) BySeller(_ context.Context, sellerID string) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for _, o := range s.orders {
		if o.SellerID == sellerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *memStore) ByBuyer(_ context.Context, buyerID string) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for _, o := range s.orders {
		if o.BuyerID == buyerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *memStore) stock(productID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].Quantity
}

func tomatoes(stock int64) *catalog.Product {
	return &catalog.Product{
		ID:       "p1",
		SellerID: "seller",
		Name:     "Tomatoes",
		Unit:     "kg",
		Price:    599, // 5.99
		Quantity: stock,
		Status:   catalog.ProductAvailable,
	}
}

func newEngine(s *memStore) *orders.Engine {
	return &orders.Engine{Catalog: s, Store: s}
}

func TestCreateFreezesAmounts(t *testing.T) {
	s := newMemStore(tomatoes(10))
	e := newEngine(s)

	o, existed, err := e.Create(context.Background(), orders.CreateRequest{
		BuyerID: "buyer", ProductID: "p1", Quantity: 3,
	})
	if err != nil || existed {
		t.Fatalf("create: existed=%v err=%v", existed, err)
	}
	if o.UnitPrice != 599 || o.TotalAmount != 1797 {
		t.Fatalf("unit=%d total=%d, want 599/1797", o.UnitPrice, o.TotalAmount)
	}
	if o.TotalAmount.String() != "17.97" {
		t.Fatalf("total renders %q, want 17.97", o.TotalAmount.String())
	}
	if o.SellerID != "seller" || o.Status != orders.StatusPending || o.PaymentStatus != orders.PaymentPending {
		t.Fatalf("unexpected frozen fields: %+v", o)
	}
	// creation reserves nothing; stock only moves at confirmation
	if got := s.stock("p1"); got != 10 {
		t.Fatalf("stock after create = %d, want 10", got)
	}
}

func TestCreateValidation(t *testing.T) {
	s := newMemStore(tomatoes(5))
	e := newEngine(s)
	ctx := context.Background()

	cases := []struct {
		name string
		req  orders.CreateRequest
		want market.Kind
	}{
		{"zero quantity", orders.CreateRequest{BuyerID: "buyer", ProductID: "p1", Quantity: 0}, market.KindInvalidQuantity},
		{"negative quantity", orders.CreateRequest{BuyerID: "buyer", ProductID: "p1", Quantity: -2}, market.KindInvalidQuantity},
		{"over stock", orders.CreateRequest{BuyerID: "buyer", ProductID: "p1", Quantity: 6}, market.KindInvalidQuantity},
		{"unknown product", orders.CreateRequest{BuyerID: "buyer", ProductID: "nope", Quantity: 1}, market.KindNotFound},
		{"own product", orders.CreateRequest{BuyerID: "seller", ProductID: "p1", Quantity: 1}, market.KindForbidden},
	}
	for _, tc := range cases {
		_, _, err := e.Create(ctx, tc.req)
		if market.Code(err) != tc.want {
			t.Errorf("%s: got %v, want %s", tc.name, err, tc.want)
		}
	}
}

func TestCreateRejectsUnavailableProduct(t *testing.T) {
	p := tomatoes(5)
	p.Status = catalog.ProductSold
	e := newEngine(newMemStore(p))

	_, _, err := e.Create(context.Background(), orders.CreateRequest{BuyerID: "buyer", ProductID: "p1", Quantity: 1})
	if market.Code(err) != market.KindResourceUnavailable {
		t.Fatalf("got %v, want RESOURCE_UNAVAILABLE", err)
	}
}

func TestCreateVerifiesSubmittedTotal(t *testing.T) {
	e := newEngine(newMemStore(tomatoes(10)))
	ctx := context.Background()

	good := money.Cents(1797)
	if _, _, err := e.Create(ctx, orders.CreateRequest{BuyerID: "buyer", ProductID: "p1", Quantity: 3, SubmittedTotal: &good}); err != nil {
		t.Fatalf("matching total rejected: %v", err)
	}

	bad := money.Cents(1500)
	_, _, err := e.Create(ctx, orders.CreateRequest{BuyerID: "buyer", ProductID: "p1", Quantity: 3, SubmittedTotal: &bad})
	if market.Code(err) != market.KindAmountMismatch {
		t.Fatalf("got %v, want AMOUNT_MISMATCH", err)
	}
}

func TestCreateIdempotentByExternalID(t *testing.T) {
	e := newEngine(newMemStore(tomatoes(10)))
	ctx := context.Background()

	first, existed, err := e.Create(ctx, orders.CreateRequest{ExternalID: "ext-1", BuyerID: "buyer", ProductID: "p1", Quantity: 2})
	if err != nil || existed {
		t.Fatalf("first create: existed=%v err=%v", existed, err)
	}
	second, existed, err := e.Create(ctx, orders.CreateRequest{ExternalID: "ext-1", BuyerID: "buyer", ProductID: "p1", Quantity: 2})
	if err != nil || !existed {
		t.Fatalf("replay: existed=%v err=%v", existed, err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned a new order: %s vs %s", second.ID, first.ID)
	}
}

func TestConfirmDecrementsStock(t *testing.T) {
	s := newMemStore(tomatoes(10))
	e := newEngine(s)
	ctx := context.Background()

	o, _, _ := e.Create(ctx, orders.CreateRequest{BuyerID: "buyer", ProductID: "p1", Quantity: 3})

	got, err := e.Transition(ctx, o.ID, "seller", orders.StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != orders.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", got.Status)
	}
	if stock := s.stock("p1"); stock != 7 {
		t.Fatalf("stock = %d, want 7", stock)
	}
}

func TestForbiddenTransitionLeavesStatePristine(t *testing.T) {
	s := newMemStore(tomatoes(10))
	e := newEngine(s)
	ctx := context.Background()

	o, _, _ := e.Create(ctx, orders.CreateRequest{BuyerID: "buyer", ProductID: "p1", Quantity: 3})

	// buyer attempts the seller-only confirm
	_, err := e.Transition(ctx, o.ID, "buyer", orders.StatusConfirmed)
	if market.Code(err) != market.KindForbidden {
		t.Fatalf("got %v, want FORBIDDEN", err)
	}
	cur, _ := e.Get(ctx, o.ID, "buyer")
	if cur.Status != orders.StatusPending {
		t.Fatalf("status = %s, want pending", cur.Status)
	}
	if stock := s.stock("p1"); stock != 10 {
		t.Fatalf("stock = %d, want 10", stock)
	}
}

func TestIllegalEdgeRejected(t *testing.T) {
	s := newMemStore(tomatoes(10))
	e := newEngine(s)
	ctx := context.Background()

	o, _, _ := e.Create(ctx, orders.CreateRequest{BuyerID: "buyer", ProductID: "p1", Quantity: 1})

	// pending -> shipped skips confirmation
	_, err := e.Transition(ctx, o.ID, "seller", orders.StatusShipped)
	if market.Code(err) != market.KindInvalidTransition {
		t.Fatalf("got %v, want INVALID_TRANSITION", err)
	}

	// once shipped, nobody cancels
	_, _ = e.Transition(ctx, o.ID, "seller", orders.StatusConfirmed)
	_, _ = e.Transition(ctx, o.ID, "seller", orders.StatusShipped)
	_, err = e.Transition(ctx, o.ID, "buyer", orders.StatusCancelled)
	if market.Code(err) != market.KindInvalidTransition {
		t.Fatalf("cancel after ship: got %v, want INVALID_TRANSITION", err)
	}
}

func TestCancelFromConfirmedRestocks(t *testing.T) {
	s := newMemStore(tomatoes(10))
	e := newEngine(s)
	ctx := context.Background()

	o, _, _ := e.Create(ctx, orders.CreateRequest{BuyerID: "buyer", ProductID: "p1", Quantity: 4})
	if _, err := e.Transition(ctx, o.ID, "seller", orders.StatusConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if stock := s.stock("p1"); stock != 6 {
		t.Fatalf("stock after confirm = %d, want 6", stock)
	}

	got, err := e.Transition(ctx, o.ID, "buyer", orders.StatusCancelled)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != orders.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	// decrement then cancel is a net-zero round trip
	if stock := s.stock("p1"); stock != 10 {
		t.Fatalf("stock after cancel = %d, want 10", stock)
	}
}

func TestDeliveredSettlesPayment(t *testing.T) {
	e := newEngine(newMemStore(tomatoes(10)))
	ctx := context.Background()

	o, _, _ := e.Create(ctx, orders.CreateRequest{BuyerID: "buyer", ProductID: "p1", Quantity: 1})
	_, _ = e.Transition(ctx, o.ID, "seller", orders.StatusConfirmed)
	_, _ = e.Transition(ctx, o.ID, "seller", orders.StatusShipped)

	got, err := e.Transition(ctx, o.ID, "buyer", orders.StatusDelivered)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if got.PaymentStatus != orders.PaymentPaid {
		t.Fatalf("payment = %s, want paid", got.PaymentStatus)
	}
}

func TestConcurrentConfirmAtMostOnce(t *testing.T) {
	// stock exactly equals the order quantity, so a double confirm would
	// drive it negative
	s := newMemStore(tomatoes(3))
	e := newEngine(s)
	ctx := context.Background()

	o, _, _ := e.Create(ctx, orders.CreateRequest{BuyerID: "buyer", ProductID: "p1", Quantity: 3})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Transition(ctx, o.ID, "seller", orders.StatusConfirmed)
		}(i)
	}
	wg.Wait()

	var okCount int
	for _, err := range errs {
		if err == nil {
			okCount++
			continue
		}
		switch market.Code(err) {
		case market.KindInvalidTransition, market.KindResourceUnavailable:
		default:
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
	if okCount != 1 {
		t.Fatalf("confirmations succeeded %d times, want exactly 1", okCount)
	}
	if stock := s.stock("p1"); stock != 0 {
		t.Fatalf("stock = %d, want 0", stock)
	}
}
