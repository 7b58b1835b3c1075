package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"

	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/payment"
	"storefront_back_end/internal/services"
	"storefront_back_end/internal/store/memstore"
)

const webhookSecret = "whsec_handlers_test"

func init() { gin.SetMode(gin.TestMode) }

type stubGateway struct {
	*payment.StripeGateway
	err error
}

func (g *stubGateway) CreateCheckoutSession(context.Context, models.CheckoutSessionRequest) (*models.CheckoutSession, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &models.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

type testServer struct {
	router  *gin.Engine
	gateway *stubGateway
	orders  *memstore.OrderStore
	carts   *services.CartService
}

func newTestServer(t *testing.T, notifier services.CartNotifier) *testServer {
	t.Helper()
	carts := memstore.NewCartStore()
	orders := memstore.NewOrderStore()
	catalog := memstore.NewCatalog(
		models.Product{ID: "p1", Name: "Mug", Price: 1200, Colors: []string{"red"}, Stock: 5},
		models.Product{ID: "p2", Name: "Poster", Price: 2500, Stock: 5},
	)
	gw := &stubGateway{StripeGateway: payment.NewStripeGateway("usd")}

	cartSvc := services.NewCartService(services.CartDeps{Carts: carts, Catalog: catalog, Notifier: notifier},
		services.CartConfig{MaxItems: 5, MaxItemQuantity: 10})
	checkoutSvc := services.NewCheckoutService(services.CheckoutDeps{Carts: carts, Orders: orders, Catalog: catalog, Gateway: gw},
		services.CheckoutConfig{ClientURL: "https://shop.test"})
	paymentSvc := services.NewPaymentService(services.PaymentDeps{Carts: carts, Orders: orders, Gateway: gw}, webhookSecret)

	cart := NewCartHandler(cartSvc)
	order := NewOrderHandler(checkoutSvc)
	pay := NewPaymentHandler(paymentSvc)
	products := NewProductHandler(catalog, nil)

	r := gin.New()
	auth := func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			c.Set("user_id", uid)
		}
	}
	r.GET("/api/products", products.List)
	r.GET("/api/products/search", products.Search)
	r.GET("/api/products/:id", products.Get)
	r.POST("/api/payments/webhook", pay.Webhook)

	api := r.Group("/api", auth)
	api.GET("/cart", cart.Get)
	api.POST("/cart", cart.Add)
	api.DELETE("/cart", cart.Clear)
	api.DELETE("/cart/:productId", cart.Remove)
	api.POST("/orders", order.Checkout)
	api.GET("/orders", order.List)
	api.GET("/orders/:id", order.Get)
	api.PATCH("/orders/:id/cancel", order.Cancel)
	api.GET("/orders/:id/receipt", order.Receipt)

	return &testServer{router: r, gateway: gw, orders: orders, carts: cartSvc}
}

func (s *testServer) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	return body.Error
}

func TestCartEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/cart", "u1", `{"product_id":"p1","quantity":2,"color":"red"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("add: %d %s", w.Code, w.Body.String())
	}
	var cart cartResponse
	decode(t, w, &cart)
	if cart.Count != 2 || cart.Subtotal != 2400 {
		t.Fatalf("cart = %+v", cart)
	}

	// quantity defaults to one
	w = s.do(t, http.MethodPost, "/api/cart", "u1", `{"product_id":"p2"}`)
	decode(t, w, &cart)
	if len(cart.Items) != 2 || cart.Items[1].Quantity != 1 {
		t.Fatalf("cart = %+v", cart)
	}

	w = s.do(t, http.MethodDelete, "/api/cart/p1?color=blue", "u1", "")
	decode(t, w, &cart)
	if len(cart.Items) != 2 {
		t.Fatalf("wrong variant removed: %+v", cart.Items)
	}
	w = s.do(t, http.MethodDelete, "/api/cart/p1", "u1", "")
	decode(t, w, &cart)
	if len(cart.Items) != 1 || cart.Items[0].ProductID != "p2" {
		t.Fatalf("after remove: %+v", cart.Items)
	}

	w = s.do(t, http.MethodDelete, "/api/cart", "u1", "")
	decode(t, w, &cart)
	if w.Code != http.StatusOK || len(cart.Items) != 0 {
		t.Fatalf("clear: %d %+v", w.Code, cart)
	}
}

func TestCartErrors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		user string
		body string
		code int
		msg  string
	}{
		{"unauthenticated", "", `{"product_id":"p1"}`, http.StatusUnauthorized, "not authenticated"},
		{"missing product id", "u1", `{}`, http.StatusBadRequest, "product_id is required"},
		{"unknown product", "u1", `{"product_id":"zz"}`, http.StatusNotFound, `product "zz" not found`},
		{"bad color", "u1", `{"product_id":"p1","color":"green"}`, http.StatusBadRequest, `invalid color "green" for this product`},
		{"zero quantity", "u1", `{"product_id":"p1","quantity":0}`, http.StatusBadRequest, "quantity must be between 1 and 10"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/cart", tc.user, tc.body)
			if w.Code != tc.code {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.code, w.Body.String())
			}
			if got := errorBody(t, w); got != tc.msg {
				t.Fatalf("error = %q, want %q", got, tc.msg)
			}
		})
	}
}

func TestOrderEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/orders", "u1", "")
	if w.Code != http.StatusBadRequest || errorBody(t, w) != "cart is empty" {
		t.Fatalf("empty checkout: %d %s", w.Code, w.Body.String())
	}

	s.do(t, http.MethodPost, "/api/cart", "u1", `{"product_id":"p2","quantity":2}`)
	w = s.do(t, http.MethodPost, "/api/orders", "u1", `{"line_items":[{"name":"Shipping","amount":500}]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout: %d %s", w.Code, w.Body.String())
	}
	var res services.CheckoutResult
	decode(t, w, &res)
	if res.CheckoutURL == "" || res.Order.Total != 5500 || res.Order.Status != models.OrderPending {
		t.Fatalf("result = %+v", res)
	}
	id := res.Order.ID.Hex()

	w = s.do(t, http.MethodGet, "/api/orders", "u1", "")
	var list struct {
		Orders []models.Order `json:"orders"`
		Count  int            `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 1 {
		t.Fatalf("list = %+v", list)
	}

	if w = s.do(t, http.MethodGet, "/api/orders/"+id, "u2", ""); w.Code != http.StatusNotFound {
		t.Fatalf("foreign order: %d", w.Code)
	}
	if w = s.do(t, http.MethodGet, "/api/orders/bogus", "u1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("bogus id: %d", w.Code)
	}
	if w = s.do(t, http.MethodGet, "/api/orders/"+id+"/receipt", "u1", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("receipt without archive: %d", w.Code)
	}

	if w = s.do(t, http.MethodPatch, "/api/orders/"+id+"/cancel", "u1", ""); w.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, http.MethodPatch, "/api/orders/"+id+"/cancel", "u1", "")
	if w.Code != http.StatusBadRequest || errorBody(t, w) != `cannot cancel order with status "cancelled"` {
		t.Fatalf("second cancel: %d %s", w.Code, w.Body.String())
	}
}

func TestCheckoutGatewayError(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/cart", "u1", `{"product_id":"p2"}`)

	s.gateway.err = &stripe.Error{Msg: "card declined"}
	if w := s.do(t, http.MethodPost, "/api/orders", "u1", ""); w.Code != http.StatusBadGateway {
		t.Fatalf("stripe error: %d", w.Code)
	}
	s.gateway.err = errors.New("boom")
	w := s.do(t, http.MethodPost, "/api/orders", "u1", "")
	if w.Code != http.StatusInternalServerError || errorBody(t, w) != "internal server error" {
		t.Fatalf("internal error: %d %s", w.Code, w.Body.String())
	}
}

func TestWebhookEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/api/cart", "u1", `{"product_id":"p2"}`)
	w := s.do(t, http.MethodPost, "/api/orders", "u1", "")
	var res services.CheckoutResult
	decode(t, w, &res)

	event := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{` +
		`"id":"cs_test_1","object":"checkout.session","metadata":{"orderId":"` + res.Order.ID.Hex() + `","userId":"u1"}}}}`
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(event), Secret: webhookSecret})

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(event))
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest || errorBody(t, w) != "missing stripe-signature header" {
		t.Fatalf("unsigned: %d %s", w.Code, w.Body.String())
	}

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(string(signed.Payload)))
		req.Header.Set("Stripe-Signature", signed.Header)
		w = httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"received":true}` {
			t.Fatalf("delivery %d: %d %s", i, w.Code, w.Body.String())
		}
	}

	o, _ := s.orders.FindByID(context.Background(), res.Order.ID)
	if o.Status != models.OrderConfirmed || o.StripeSessionID != "cs_test_1" {
		t.Fatalf("order = %+v", o)
	}
}

func TestWebhookBodyLimit(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(strings.Repeat("x", int(maxWebhookBody)+1)))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestProductEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/products?limit=1", "", "")
	var list struct {
		Products []models.Product `json:"products"`
	}
	decode(t, w, &list)
	if len(list.Products) != 1 || list.Products[0].ID != "p1" {
		t.Fatalf("list = %+v", list)
	}
	if w = s.do(t, http.MethodGet, "/api/products/p2", "", ""); w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	if w = s.do(t, http.MethodGet, "/api/products/nope", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", w.Code)
	}
	if w = s.do(t, http.MethodGet, "/api/products/search?q=mug", "", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("search disabled: %d", w.Code)
	}

	r := gin.New()
	h := NewProductHandler(memstore.NewCatalog(models.Product{ID: "p1", Name: "Blue Mug"}), memstore.NewCatalog(models.Product{ID: "p1", Name: "Blue Mug"}))
	r.GET("/search", h.Search)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=mug", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Blue Mug") {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}
}

func TestProductListFeatured(t *testing.T) {
	catalog := memstore.NewCatalog(
		models.Product{ID: "p1", Name: "Desk", Category: "office", Company: "testco", Featured: true, Shipping: true},
		models.Product{ID: "p2", Name: "Lamp", Category: "office", Company: "testco"},
	)
	r := gin.New()
	r.GET("/products", NewProductHandler(catalog, nil).List)

	get := func(query string) (*httptest.ResponseRecorder, []models.Product) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products"+query, nil))
		var body struct {
			Products []models.Product `json:"products"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		return rec, body.Products
	}

	if _, got := get("?featured=true"); len(got) != 1 || got[0].ID != "p1" || !got[0].Shipping || got[0].Company != "testco" {
		t.Fatalf("featured=true: %+v", got)
	}
	if _, got := get("?featured=false"); len(got) != 1 || got[0].ID != "p2" {
		t.Fatalf("featured=false: %+v", got)
	}
	if _, got := get(""); len(got) != 2 {
		t.Fatalf("unfiltered: %+v", got)
	}
	if rec, _ := get("?featured=maybe"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad featured: %d", rec.Code)
	}
}

func TestCartWebSocket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	events := cache.NewCartEvents(rdb)

	s := newTestServer(t, events)
	ws := NewCartWebSocket(s.carts, events, nil)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { c.Set("user_id", "u1") }, ws.Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg struct {
		Type  string            `json:"type"`
		Items []models.CartItem `json:"items"`
		Count int               `json:"count"`
	}
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != "connected" {
		t.Fatalf("hello = %+v, %v", msg, err)
	}

	if _, err := s.carts.AddItem(context.Background(), "u1", "p2", 3, ""); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "cart_updated" || msg.Count != 3 || len(msg.Items) != 1 {
		t.Fatalf("update = %+v", msg)
	}
}
