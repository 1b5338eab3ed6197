package rentals_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/farmlink/marketplace/internal/catalog"
	"github.com/farmlink/marketplace/internal/market"
	"github.com/farmlink/marketplace/internal/money"
	"github.com/farmlink/marketplace/internal/rentals"
)

// memStore implements rentals.Store and rentals.Catalog with the pgx repo's
// conditional-update semantics: confirm only wins while the rental is pending
// and the equipment available, all under one lock.
type memStore struct {
	mu        sync.Mutex
	equipment map[string]*catalog.Equipment
	rentals   map[string]*rentals.Rental
}

func newMemStore(eq ...*catalog.Equipment) *memStore {
	s := &memStore{equipment: map[string]*catalog.Equipment{}, rentals: map[string]*rentals.Rental{}}
	for _, e := range eq {
		s.equipment[e.ID] = e
	}
	return s
}

func (s *memStore) Equipment(_ context.Context, id string) (*catalog.Equipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.equipment[id]
	if !ok {
		return nil, market.E(market.KindNotFound, "equipment %s", id)
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) Insert(_ context.Context, rl *rentals.Rental) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	rl.CreatedAt, rl.UpdatedAt = now, now
	cp := *rl
	s.rentals[rl.ID] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*rentals.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl, ok := s.rentals[id]
	if !ok {
		return nil, market.E(market.KindNotFound, "rental %s", id)
	}
	cp := *rl
	return &cp, nil
}

func (s *memStore) Confirm(_ context.Context, rentalID string) (*rentals.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl, ok := s.rentals[rentalID]
	if !ok {
		return nil, market.E(market.KindNotFound, "rental %s", rentalID)
	}
	if rl.Status != rentals.StatusPending {
		return nil, market.E(market.KindInvalidTransition, "rental %s is %s, not pending", rentalID, rl.Status)
	}
	eq := s.equipment[rl.EquipmentID]
	if eq.Status != catalog.EquipmentAvailable {
		return nil, market.E(market.KindResourceUnavailable, "equipment %s is %s", eq.ID, eq.Status)
	}
	eq.Status = catalog.EquipmentRented
	rl.Status = rentals.StatusConfirmed
	rl.UpdatedAt = time.Now().UTC()
	cp := *rl
	return &cp, nil
}

func (s *memStore) Release(_ context.Context, rentalID string, from, to rentals.Status, pay rentals.PaymentStatus) (*rentals.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl, ok := s.rentals[rentalID]
	if !ok {
		return nil, market.E(market.KindNotFound, "rental %s", rentalID)
	}
	if rl.Status != from {
		return nil, market.E(market.KindInvalidTransition, "rental %s is %s, not %s", rentalID, rl.Status, from)
	}
	if eq := s.equipment[rl.EquipmentID]; eq.Status == catalog.EquipmentRented {
		eq.Status = catalog.EquipmentAvailable
	}
	rl.Status = to
	rl.PaymentStatus = pay
	rl.UpdatedAt = time.Now().UTC()
	cp := *rl
	return &cp, nil
}

func (s *memStore) SetStatus(_ context.Context, rentalID string, from, to rentals.Status, pay rentals.PaymentStatus) (*rentals.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rl, ok := s.rentals[rentalID]
	if !ok {
		return nil, market.E(market.KindNotFound, "rental %s", rentalID)
	}
	if rl.Status != from {
		return nil, market.E(market.KindInvalidTransition, "rental %s no longer %s", rentalID, from)
	}
	rl.Status = to
	rl.PaymentStatus = pay
	rl.UpdatedAt = time.Now().UTC()
	cp := *rl
	return &cp, nil
}

func (s *memStore) ByRenter(_ context.Context, renterID string) ([]rentals.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rentals.Rental
	for _, rl := range s.rentals {
		if rl.RenterID == renterID {
			out = append(out, *rl)
		}
	}
	return out, nil
}

func (s *memStore) ByOwner(_ context.Context, ownerID string) ([]rentals.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rentals.Rental
	for _, rl := range s.rentals {
		if rl.OwnerID == ownerID {
			out = append(out, *rl)
		}
	}
	return out, nil
}

func (s *memStore) equipmentStatus(id string) catalog.EquipmentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equipment[id].Status
}

func tractor() *catalog.Equipment {
	return &catalog.Equipment{
		ID:            "eq1",
		OwnerID:       "owner",
		Name:          "Tractor",
		DailyRate:     2500, // 25.00
		MinRentalDays: 1,
		MaxRentalDays: 30,
		Status:        catalog.EquipmentAvailable,
	}
}

func newEngine(s *memStore) *rentals.Engine {
	return &rentals.Engine{Catalog: s, Store: s}
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDaysBetween(t *testing.T) {
	for _, tc := range []struct {
		start, end string
		want       int
	}{
		{"2024-03-01", "2024-03-04", 3},
		{"2024-03-01", "2024-03-02", 1},
		{"2024-02-28", "2024-03-01", 2}, // leap year
	} {
		if got := rentals.DaysBetween(date(tc.start), date(tc.end)); got != tc.want {
			t.Errorf("DaysBetween(%s, %s) = %d, want %d", tc.start, tc.end, got, tc.want)
		}
	}
	// a partial day bills as a whole one
	start := date("2024-03-01")
	if got := rentals.DaysBetween(start, start.Add(26*time.Hour)); got != 2 {
		t.Errorf("partial day = %d, want 2", got)
	}
}

func TestCreateComputesDaysAndTotal(t *testing.T) {
	e := newEngine(newMemStore(tractor()))

	rl, err := e.Create(context.Background(), rentals.CreateRequest{
		RenterID:    "renter",
		EquipmentID: "eq1",
		StartDate:   date("2024-03-01"),
		EndDate:     date("2024-03-04"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rl.RentalDays != 3 {
		t.Fatalf("rental_days = %d, want 3", rl.RentalDays)
	}
	if rl.TotalAmount != 7500 {
		t.Fatalf("total = %d, want 7500", rl.TotalAmount)
	}
	if rl.DailyRate != 2500 || rl.OwnerID != "owner" || rl.Status != rentals.StatusPending {
		t.Fatalf("unexpected frozen fields: %+v", rl)
	}
}

func TestCreateValidation(t *testing.T) {
	eq := tractor()
	eq.MinRentalDays = 2
	eq.MaxRentalDays = 5
	e := newEngine(newMemStore(eq))
	ctx := context.Background()

	base := rentals.CreateRequest{RenterID: "renter", EquipmentID: "eq1"}

	cases := []struct {
		name string
		mod  func(*rentals.CreateRequest)
		want market.Kind
	}{
		{"end before start", func(r *rentals.CreateRequest) {
			r.StartDate, r.EndDate = date("2024-03-04"), date("2024-03-01")
		}, market.KindInvalidDateRange},
		{"end equals start", func(r *rentals.CreateRequest) {
			r.StartDate, r.EndDate = date("2024-03-01"), date("2024-03-01")
		}, market.KindInvalidDateRange},
		{"below minimum", func(r *rentals.CreateRequest) {
			r.StartDate, r.EndDate = date("2024-03-01"), date("2024-03-02")
		}, market.KindInvalidRentalDuration},
		{"above maximum", func(r *rentals.CreateRequest) {
			r.StartDate, r.EndDate = date("2024-03-01"), date("2024-03-10")
		}, market.KindInvalidRentalDuration},
		{"days disagree with range", func(r *rentals.CreateRequest) {
			r.StartDate, r.EndDate = date("2024-03-01"), date("2024-03-04")
			r.SubmittedDays = 5
		}, market.KindInvalidRentalDuration},
		{"delivery without address", func(r *rentals.CreateRequest) {
			r.StartDate, r.EndDate = date("2024-03-01"), date("2024-03-04")
			r.DeliveryRequired = true
			r.DeliveryAddress = "   "
		}, market.KindMissingDeliveryAddress},
		{"owner renting own equipment", func(r *rentals.CreateRequest) {
			r.StartDate, r.EndDate = date("2024-03-01"), date("2024-03-04")
			r.RenterID = "owner"
		}, market.KindForbidden},
	}
	for _, tc := range cases {
		req := base
		tc.mod(&req)
		_, err := e.Create(ctx, req)
		if market.Code(err) != tc.want {
			t.Errorf("%s: got %v, want %s", tc.name, err, tc.want)
		}
	}
}

func TestCreateRejectsUnavailableEquipment(t *testing.T) {
	eq := tractor()
	eq.Status = catalog.EquipmentMaintenance
	e := newEngine(newMemStore(eq))

	_, err := e.Create(context.Background(), rentals.CreateRequest{
		RenterID: "renter", EquipmentID: "eq1",
		StartDate: date("2024-03-01"), EndDate: date("2024-03-04"),
	})
	if market.Code(err) != market.KindResourceUnavailable {
		t.Fatalf("got %v, want RESOURCE_UNAVAILABLE", err)
	}
}

func TestCreateVerifiesSubmittedTotal(t *testing.T) {
	e := newEngine(newMemStore(tractor()))
	bad := money.Cents(7000)
	_, err := e.Create(context.Background(), rentals.CreateRequest{
		RenterID: "renter", EquipmentID: "eq1",
		StartDate: date("2024-03-01"), EndDate: date("2024-03-04"),
		SubmittedTotal: &bad,
	})
	if market.Code(err) != market.KindAmountMismatch {
		t.Fatalf("got %v, want AMOUNT_MISMATCH", err)
	}
}

func TestConfirmTakesEquipmentOffMarket(t *testing.T) {
	s := newMemStore(tractor())
	e := newEngine(s)
	ctx := context.Background()

	rl, _ := e.Create(ctx, rentals.CreateRequest{
		RenterID: "renter", EquipmentID: "eq1",
		StartDate: date("2024-03-01"), EndDate: date("2024-03-04"),
	})

	// renter cannot confirm
	if _, err := e.Transition(ctx, rl.ID, "renter", rentals.StatusConfirmed); market.Code(err) != market.KindForbidden {
		t.Fatalf("renter confirm: got %v, want FORBIDDEN", err)
	}

	got, err := e.Transition(ctx, rl.ID, "owner", rentals.StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != rentals.StatusConfirmed {
		t.Fatalf("status = %s", got.Status)
	}
	if s.equipmentStatus("eq1") != catalog.EquipmentRented {
		t.Fatal("equipment should be rented after confirm")
	}
}

func TestLifecycleRestoresAvailability(t *testing.T) {
	s := newMemStore(tractor())
	e := newEngine(s)
	ctx := context.Background()

	rl, _ := e.Create(ctx, rentals.CreateRequest{
		RenterID: "renter", EquipmentID: "eq1",
		StartDate: date("2024-03-01"), EndDate: date("2024-03-04"),
	})
	_, _ = e.Transition(ctx, rl.ID, "owner", rentals.StatusConfirmed)
	_, _ = e.Transition(ctx, rl.ID, "owner", rentals.StatusActive)

	got, err := e.Transition(ctx, rl.ID, "owner", rentals.StatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.PaymentStatus != rentals.PaymentPaid {
		t.Fatalf("payment = %s, want paid", got.PaymentStatus)
	}
	if s.equipmentStatus("eq1") != catalog.EquipmentAvailable {
		t.Fatal("equipment should be available after completion")
	}
}

func TestCancelFromConfirmedRestoresAvailability(t *testing.T) {
	s := newMemStore(tractor())
	e := newEngine(s)
	ctx := context.Background()

	rl, _ := e.Create(ctx, rentals.CreateRequest{
		RenterID: "renter", EquipmentID: "eq1",
		StartDate: date("2024-03-01"), EndDate: date("2024-03-04"),
	})
	_, _ = e.Transition(ctx, rl.ID, "owner", rentals.StatusConfirmed)

	if _, err := e.Transition(ctx, rl.ID, "renter", rentals.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if s.equipmentStatus("eq1") != catalog.EquipmentAvailable {
		t.Fatal("equipment should be available after cancellation")
	}

	// active rentals no longer cancel
	rl2, _ := e.Create(ctx, rentals.CreateRequest{
		RenterID: "renter", EquipmentID: "eq1",
		StartDate: date("2024-04-01"), EndDate: date("2024-04-03"),
	})
	_, _ = e.Transition(ctx, rl2.ID, "owner", rentals.StatusConfirmed)
	_, _ = e.Transition(ctx, rl2.ID, "owner", rentals.StatusActive)
	if _, err := e.Transition(ctx, rl2.ID, "renter", rentals.StatusCancelled); market.Code(err) != market.KindInvalidTransition {
		t.Fatalf("cancel active: got %v, want INVALID_TRANSITION", err)
	}
}

func TestConcurrentConfirmAtMostOnce(t *testing.T) {
	s := newMemStore(tractor())
	e := newEngine(s)
	ctx := context.Background()

	// two pending rentals race for the same equipment
	a, _ := e.Create(ctx, rentals.CreateRequest{
		RenterID: "renter-a", EquipmentID: "eq1",
		StartDate: date("2024-03-01"), EndDate: date("2024-03-04"),
	})
	b, _ := e.Create(ctx, rentals.CreateRequest{
		RenterID: "renter-b", EquipmentID: "eq1",
		StartDate: date("2024-03-05"), EndDate: date("2024-03-08"),
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = e.Transition(ctx, id, "owner", rentals.StatusConfirmed)
		}(i, id)
	}
	wg.Wait()

	var okCount int
	for _, err := range errs {
		if err == nil {
			okCount++
			continue
		}
		if market.Code(err) != market.KindResourceUnavailable && market.Code(err) != market.KindInvalidTransition {
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
	if okCount != 1 {
		t.Fatalf("confirmations succeeded %d times, want exactly 1", okCount)
	}
}
