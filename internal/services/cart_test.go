package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/store/memstore"
)

func TestAddItemCreatesAndIncrements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cart, err := f.cart.AddItem(ctx, "u1", "p1", 2, "red")
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 || cart.Items[0].Price != 1200 {
		t.Fatalf("cart = %+v", cart.Items)
	}

	cart, err = f.cart.AddItem(ctx, "u1", "p1", 3, "red")
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 5 {
		t.Fatalf("expected incremented line, got %+v", cart.Items)
	}

	// a different color is its own line
	cart, err = f.cart.AddItem(ctx, "u1", "p1", 1, "blue")
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(cart.Items))
	}

	if got := f.notifier.list(); len(got) != 3 || got[0] != "u1:updated" {
		t.Fatalf("notifications = %v", got)
	}
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		productID string
		qty       int
		color     string
		kind      apperr.Kind
		msg       string
	}{
		{"zero quantity", "p1", 0, "", apperr.KindInvalidArgument, "quantity must be between 1 and 10"},
		{"quantity over cap", "p1", 11, "", apperr.KindInvalidArgument, "quantity must be between 1 and 10"},
		{"unknown product", "nope", 1, "", apperr.KindNotFound, `product "nope" not found`},
		{"unknown color", "p1", 1, "green", apperr.KindInvalidArgument, `invalid color "green" for this product`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.cart.AddItem(ctx, "u1", tc.productID, tc.qty, tc.color)
			wantKind(t, err, tc.kind, tc.msg)
		})
	}

	cart, err := f.cart.GetCart(ctx, "u1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("rejected adds changed the cart: %+v", cart.Items)
	}
}

func TestAddItemQuantityCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustAdd(t, "u1", "p1", 8, "")

	_, err := f.cart.AddItem(ctx, "u1", "p1", 3, "")
	wantKind(t, err, apperr.KindInvalidArgument, "cannot exceed 10 of the same item")

	f.mustAdd(t, "u1", "p1", 2, "")
	cart, _ := f.cart.GetCart(ctx, "u1")
	if cart.Items[0].Quantity != 10 {
		t.Fatalf("quantity = %d, want 10", cart.Items[0].Quantity)
	}
}

func TestAddItemCartFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		f.mustAdd(t, "u1", id, 1, "")
	}

	_, err := f.cart.AddItem(ctx, "u1", "p6", 1, "")
	wantKind(t, err, apperr.KindInvalidArgument, "cart cannot have more than 5 items")

	// existing lines can still grow
	f.mustAdd(t, "u1", "p5", 1, "")
}

func TestAddItemConcurrentSamePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 25
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.cart.AddItem(ctx, "u1", "p1", 1, "red")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if !apperr.IsInvalidArgument(err) {
				t.Errorf("unexpected error: %v", err)
			}
			fail++
		}()
	}
	wg.Wait()

	cart, _ := f.cart.GetCart(ctx, "u1")
	if len(cart.Items) != 1 {
		t.Fatalf("items = %+v", cart.Items)
	}
	if q := cart.Items[0].Quantity; q > 10 || q != ok {
		t.Fatalf("quantity = %d, successful adds = %d", q, ok)
	}
	if ok+fail != workers {
		t.Fatalf("ok=%d fail=%d", ok, fail)
	}
}

func TestAddItemConcurrentDistinctProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	type add struct{ id, color string }
	adds := []add{{"p1", "red"}, {"p1", "blue"}, {"p1", ""}}
	for _, p := range testProducts[1:] {
		adds = append(adds, add{p.ID, ""}, add{p.ID, ""})
	}

	var wg sync.WaitGroup
	for _, a := range adds {
		wg.Add(1)
		go func(a add) {
			defer wg.Done()
			_, _ = f.cart.AddItem(ctx, "u1", a.id, 1, a.color)
		}(a)
	}
	wg.Wait()

	cart, _ := f.cart.GetCart(ctx, "u1")
	if len(cart.Items) > 5 {
		t.Fatalf("cart holds %d items", len(cart.Items))
	}
	seen := map[string]bool{}
	for _, it := range cart.Items {
		key := it.ProductID + "/" + it.Color
		if seen[key] {
			t.Fatalf("duplicate line %s", key)
		}
		seen[key] = true
	}
}

func TestRemoveItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustAdd(t, "u1", "p1", 1, "red")
	f.mustAdd(t, "u1", "p1", 1, "blue")
	f.mustAdd(t, "u1", "p3", 1, "")

	red := "red"
	cart, err := f.cart.RemoveItem(ctx, "u1", "p1", &red)
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(cart.Items) != 2 || cart.Items[0].Color != "blue" {
		t.Fatalf("after color remove: %+v", cart.Items)
	}

	cart, err = f.cart.RemoveItem(ctx, "u1", "p1", nil)
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductID != "p3" {
		t.Fatalf("after product remove: %+v", cart.Items)
	}
}

func TestRemoveAndClearWithoutCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cart, err := f.cart.RemoveItem(ctx, "ghost", "p1", nil)
	if err != nil || cart == nil || len(cart.Items) != 0 {
		t.Fatalf("RemoveItem = %+v, %v", cart, err)
	}
	cart, err = f.cart.ClearCart(ctx, "ghost")
	if err != nil || cart == nil || cart.UserID != "ghost" {
		t.Fatalf("ClearCart = %+v, %v", cart, err)
	}
	if n := len(f.notifier.list()); n != 0 {
		t.Fatalf("notifications for missing cart: %d", n)
	}
}

func TestClearCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mustAdd(t, "u1", "p1", 1, "")

	cart, err := f.cart.ClearCart(ctx, "u1")
	if err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("items = %+v", cart.Items)
	}
	got := f.notifier.list()
	if got[len(got)-1] != "u1:cleared" {
		t.Fatalf("notifications = %v", got)
	}
}

// uuidCatalog resolves any spelling of a uuid to the stored product, like the Scylla catalog.
type uuidCatalog struct {
	*memstore.Catalog
}

func (c uuidCatalog) FindByID(ctx context.Context, id string) (*models.Product, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	return c.Catalog.FindByID(ctx, pid.String())
}

func TestAddItemKeysOnCanonicalProductID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	f.catalog.Put(models.Product{ID: id, Name: "Kettle", Price: 4000, Stock: 50})
	svc := NewCartService(CartDeps{Carts: f.carts, Catalog: uuidCatalog{f.catalog}},
		CartConfig{MaxItems: 5, MaxItemQuantity: 10})

	if _, err := svc.AddItem(ctx, "u1", strings.ToUpper(id), 6, ""); err != nil {
		t.Fatalf("AddItem upper: %v", err)
	}
	cart, err := svc.AddItem(ctx, "u1", "urn:uuid:"+id, 4, "")
	if err != nil {
		t.Fatalf("AddItem urn: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductID != id || cart.Items[0].Quantity != 10 {
		t.Fatalf("cart = %+v", cart.Items)
	}

	_, err = svc.AddItem(ctx, "u1", "{"+id+"}", 1, "")
	wantKind(t, err, apperr.KindInvalidArgument, "cannot exceed 10 of the same item")

	res, err := f.checkout.Checkout(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if res.Order.Total != 10*4000 {
		t.Fatalf("total = %d", res.Order.Total)
	}

	cart, err = svc.RemoveItem(ctx, "u1", strings.ToUpper(id), nil)
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("items left = %+v", cart.Items)
	}
}
