package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/streetwear-market/internal/domain/auth"
	"github.com/xenking/streetwear-market/internal/domain/inventory"
	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/pricing"
	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/domain/review"
	"github.com/xenking/streetwear-market/internal/handler"
	"github.com/xenking/streetwear-market/internal/storage/memory"
)

var pepper = []byte("test-pepper")

const (
	buyerKey  = "buyer-key"
	sellerKey = "seller-key"
	adminKey  = "admin-key"
)

type server struct {
	engine   *gin.Engine
	products *memory.Products
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	products := memory.NewProducts(store)
	orders := memory.NewOrders(store)
	sellers := memory.NewSellers(store)
	keys := memory.NewAPIKeys(store)

	for _, k := range []struct {
		key  string
		user string
		role auth.Role
	}{
		{buyerKey, "buyer-1", auth.RoleUser},
		{sellerKey, "seller-1", auth.RoleSeller},
		{adminKey, "admin-1", auth.RoleAdmin},
	} {
		require.NoError(t, keys.Upsert(ctx, auth.APIKeyInfo{
			ID:      k.user,
			KeyHash: auth.HashKeyHex(pepper, k.key),
			Name:    k.user,
			UserID:  k.user,
			Role:    k.role,
		}))
	}

	require.NoError(t, products.Create(ctx, &product.Product{
		ID:          "hoodie",
		Name:        "Boxy hoodie",
		Description: "Heavyweight cotton",
		Price:       decimal.NewFromInt(50000),
		Category:    product.CategoryHoodies,
		Size:        product.SizeL,
		Condition:   product.ConditionLikeNew,
		Brand:       "Carhartt",
		Color:       "Black",
		Images:      []string{"hoodie.jpg"},
		Stock:       3,
		Active:      true,
		SellerID:    "seller-1",
	}))

	inv := inventory.NewManager(products)
	orderSvc, err := order.NewService(products, orders, sellers, inv,
		pricing.NewCalculator(pricing.DefaultConfig()), memory.NewTxManager(store))
	require.NoError(t, err)
	reviewSvc := review.NewService(memory.NewReviews(store), products, orders, true)

	h := handler.New(products, inv, orderSvc, reviewSvc, sellers, handler.NewAuthenticator(keys, pepper))
	return &server{engine: handler.NewEngine(h), products: products}
}

func (s *server) do(t *testing.T, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(handler.HeaderAPIKey, key)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type orderBody struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	IsPaid        bool    `json:"isPaid"`
	IsDelivered   bool    `json:"isDelivered"`
	ItemsPrice    float64 `json:"itemsPrice"`
	TaxPrice      float64 `json:"taxPrice"`
	ShippingPrice float64 `json:"shippingPrice"`
	TotalPrice    float64 `json:"totalPrice"`
	PaymentResult *struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
		Links        []struct {
			Href string `json:"href"`
		} `json:"links"`
	} `json:"paymentResult"`
	Items []struct {
		Product string  `json:"product"`
		Seller  string  `json:"seller"`
		Price   float64 `json:"price"`
	} `json:"items"`
}

func orderRequest(quantity int) map[string]any {
	return map[string]any{
		"items": []map[string]any{{"product": "hoodie", "quantity": quantity}},
		"shippingAddress": map[string]any{
			"address":    "Calle 10 #5-20",
			"city":       "Bogotá",
			"postalCode": "110111",
		},
		"paymentMethod": "card",
		// Client-side totals are ignored.
		"totalPrice": 1,
	}
}

func (s *server) stock(t *testing.T) int {
	t.Helper()
	p, err := s.products.GetByID(context.Background(), "hoodie")
	require.NoError(t, err)
	return p.Stock
}

func TestAuthentication(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/orders", "", orderRequest(1))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, decode[errorBody](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/orders", "wrong-key", orderRequest(1))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/orders", buyerKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/orders", adminKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateOrder(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/orders", buyerKey, orderRequest(2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	o := decode[orderBody](t, rec)
	assert.Equal(t, "pending", o.Status)
	assert.False(t, o.IsPaid)
	assert.Equal(t, 100000.0, o.ItemsPrice)
	assert.Equal(t, 19000.0, o.TaxPrice)
	assert.Equal(t, 10000.0, o.ShippingPrice)
	assert.Equal(t, 129000.0, o.TotalPrice)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "seller-1", o.Items[0].Seller)
	assert.Equal(t, 50000.0, o.Items[0].Price)
	assert.Equal(t, 1, s.stock(t))
}

func TestCreateOrderErrors(t *testing.T) {
	s := newServer(t)

	for _, tt := range []struct {
		name string
		body any
		code int
	}{
		{"InsufficientStock", orderRequest(5), http.StatusBadRequest},
		{"ZeroQuantity", orderRequest(0), http.StatusBadRequest},
		{"QuantityOverflow", orderRequest(3_000_000_000), http.StatusBadRequest},
		{"Empty", map[string]any{"items": []any{}, "paymentMethod": "card"}, http.StatusBadRequest},
		{"UnknownProduct", map[string]any{
			"items":         []map[string]any{{"product": "missing", "quantity": 1}},
			"paymentMethod": "card",
			"shippingAddress": map[string]any{
				"address": "a", "city": "b", "postalCode": "c",
			},
		}, http.StatusNotFound},
		{"BadJSON", "not an object", http.StatusBadRequest},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/orders", buyerKey, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.Equal(t, 3, s.stock(t), "stock must be untouched")
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/orders", buyerKey, orderRequest(2))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[orderBody](t, rec).ID

	// Only the buyer may pay.
	payment := map[string]any{
		"id":          "PAY-1",
		"status":      "COMPLETED",
		"update_time": "2025-06-01T10:00:00Z",
		"payer":       map[string]any{"email_address": "buyer@example.com"},
		"links":       []map[string]any{{"href": "https://gateway.example/PAY-1"}},
	}
	rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/pay", sellerKey, payment)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for range 2 {
		rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/pay", buyerKey, payment)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	o := decode[orderBody](t, rec)
	assert.True(t, o.IsPaid)
	assert.Equal(t, "confirmed", o.Status)
	require.NotNil(t, o.PaymentResult)
	assert.Equal(t, "PAY-1", o.PaymentResult.ID)
	assert.Equal(t, "buyer@example.com", o.PaymentResult.EmailAddress)
	require.Len(t, o.PaymentResult.Links, 1, "gateway fields are kept")
	assert.Equal(t, "https://gateway.example/PAY-1", o.PaymentResult.Links[0].Href)

	// Repeated payment credits the seller once.
	rec = s.do(t, http.MethodGet, "/api/sellers/me/stats", sellerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[struct {
		ProductsSold  int     `json:"productsSold"`
		TotalEarnings float64 `json:"totalEarnings"`
	}](t, rec)
	assert.Equal(t, 2, stats.ProductsSold)
	assert.Equal(t, 100000.0, stats.TotalEarnings)

	rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/deliver", buyerKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/deliver", adminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "delivered", decode[orderBody](t, rec).Status)

	rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/cancel", buyerKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, s.stock(t))

	// The seller sees the order, other buyers do not.
	rec = s.do(t, http.MethodGet, "/api/orders/"+id, sellerKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/orders/seller", sellerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orderBody](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/sellers/me/sales?startDate=2000-01-01", sellerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sales := decode[struct {
		Sales struct {
			TotalSales int     `json:"totalSales"`
			OrderCount int     `json:"orderCount"`
			Revenue    float64 `json:"totalRevenue"`
		} `json:"sales"`
	}](t, rec)
	assert.Equal(t, 2, sales.Sales.TotalSales)
	assert.Equal(t, 1, sales.Sales.OrderCount)
	assert.Equal(t, 100000.0, sales.Sales.Revenue)
}

func TestCancelOrderReleasesStock(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/orders", buyerKey, orderRequest(3))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[orderBody](t, rec).ID
	assert.Equal(t, 0, s.stock(t))

	rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/cancel", sellerKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for range 2 {
		rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/cancel", buyerKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "cancelled", decode[orderBody](t, rec).Status)
	}
	assert.Equal(t, 3, s.stock(t), "stock is released once")

	rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/pay", buyerKey, map[string]any{"id": "PAY-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/orders", buyerKey, orderRequest(1))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[orderBody](t, rec).ID

	rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/status", adminKey, map[string]any{
		"status":         "shipped",
		"trackingNumber": "TRK-1",
		"carrier":        "Servientrega",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	shipped := decode[struct {
		Status         string `json:"status"`
		TrackingNumber string `json:"trackingNumber"`
		Carrier        string `json:"carrier"`
	}](t, rec)
	assert.Equal(t, "shipped", shipped.Status)
	assert.Equal(t, "TRK-1", shipped.TrackingNumber)
	assert.Equal(t, "Servientrega", shipped.Carrier)

	rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/status", adminKey, map[string]any{"status": "processing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPut, "/api/orders/"+id+"/status", adminKey, map[string]any{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPut, "/api/orders/missing/status", adminKey, map[string]any{"status": "shipped"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviews(t *testing.T) {
	s := newServer(t)

	review := map[string]any{"product": "hoodie", "rating": 4, "title": "Great", "comment": "Fits well"}
	rec := s.do(t, http.MethodPost, "/api/reviews", buyerKey, review)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no delivered order yet")

	rec = s.do(t, http.MethodPost, "/api/orders", buyerKey, orderRequest(1))
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decode[orderBody](t, rec).ID
	rec = s.do(t, http.MethodPut, "/api/orders/"+orderID+"/deliver", adminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/reviews", buyerKey, review)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		ID               string `json:"id"`
		Order            string `json:"order"`
		VerifiedPurchase bool   `json:"verifiedPurchase"`
		Status           string `json:"status"`
	}](t, rec)
	assert.Equal(t, orderID, created.Order)
	assert.True(t, created.VerifiedPurchase)
	assert.Equal(t, "approved", created.Status)

	rec = s.do(t, http.MethodPost, "/api/reviews", buyerKey, review)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "second review of the same product")

	rec = s.do(t, http.MethodGet, "/api/products/hoodie", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[struct {
		Stats struct {
			AverageRating float64 `json:"averageRating"`
			ReviewCount   int     `json:"reviewCount"`
		} `json:"stats"`
	}](t, rec)
	assert.Equal(t, 4.0, p.Stats.AverageRating)
	assert.Equal(t, 1, p.Stats.ReviewCount)

	rec = s.do(t, http.MethodPut, "/api/reviews/"+created.ID, sellerKey, map[string]any{"rating": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for range 2 {
		rec = s.do(t, http.MethodPost, "/api/reviews/"+created.ID+"/helpful", sellerKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decode[struct {
			Helpful int `json:"helpful"`
		}](t, rec).Helpful)
	}

	rec = s.do(t, http.MethodGet, "/api/reviews/product/hoodie/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[struct {
		Total        int            `json:"total"`
		Average      float64        `json:"average"`
		Distribution map[string]int `json:"distribution"`
	}](t, rec)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 4.0, stats.Average)
	assert.Equal(t, map[string]int{"1": 0, "2": 0, "3": 0, "4": 1, "5": 0}, stats.Distribution)

	rec = s.do(t, http.MethodPut, "/api/reviews/"+created.ID+"/status", adminKey, map[string]any{"status": "rejected"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/reviews/product/hoodie", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]map[string]any](t, rec))
}

func TestProducts(t *testing.T) {
	s := newServer(t)

	listing := map[string]any{
		"name":        "Cargo pants",
		"description": "Ripstop",
		"price":       "80000",
		"category":    "Pantalones",
		"size":        "M",
		"condition":   "Nuevo",
		"brand":       "Dickies",
		"color":       "Olive",
		"stock":       2,
	}
	rec := s.do(t, http.MethodPost, "/api/products", buyerKey, listing)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/products", sellerKey, listing)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[struct {
		ID string `json:"id"`
	}](t, rec).ID

	listing["category"] = "Sombreros"
	rec = s.do(t, http.MethodPost, "/api/products", sellerKey, listing)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/products/"+id+"/availability?quantity=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	av := decode[struct {
		Available bool `json:"available"`
		Stock     int  `json:"stock"`
	}](t, rec)
	assert.False(t, av.Available)
	assert.Equal(t, 2, av.Stock)

	rec = s.do(t, http.MethodGet, "/api/inventory/alerts?threshold=2", sellerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[struct {
		Total int `json:"total"`
	}](t, rec).Total)

	rec = s.do(t, http.MethodDelete, "/api/products/"+id, buyerKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/products/"+id, sellerKey, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1, "inactive listings are hidden")
}

func TestProductViewsAndFavorites(t *testing.T) {
	s := newServer(t)
	type statsBody struct {
		ID    string `json:"id"`
		Stats struct {
			Views     int `json:"views"`
			Favorites int `json:"favorites"`
		} `json:"stats"`
	}
	type favoritesBody struct {
		Favorites int `json:"favorites"`
	}

	var got statsBody
	for range 2 {
		rec := s.do(t, http.MethodGet, "/api/products/hoodie", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got = decode[statsBody](t, rec)
	}
	assert.Equal(t, 2, got.Stats.Views)

	rec := s.do(t, http.MethodPost, "/api/products/hoodie/favorite", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/products/missing/favorite", buyerKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for range 2 {
		rec = s.do(t, http.MethodPost, "/api/products/hoodie/favorite", buyerKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decode[favoritesBody](t, rec).Favorites)
	}
	rec = s.do(t, http.MethodPost, "/api/products/hoodie/favorite", adminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[favoritesBody](t, rec).Favorites)

	rec = s.do(t, http.MethodGet, "/api/users/me/favorites", buyerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	favs := decode[[]statsBody](t, rec)
	require.Len(t, favs, 1)
	assert.Equal(t, "hoodie", favs[0].ID)
	assert.Equal(t, 2, favs[0].Stats.Favorites)

	rec = s.do(t, http.MethodDelete, "/api/products/hoodie/favorite", buyerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[favoritesBody](t, rec).Favorites)

	rec = s.do(t, http.MethodGet, "/api/users/me/favorites", buyerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]statsBody](t, rec))

	rec = s.do(t, http.MethodDelete, "/api/products/hoodie", sellerKey, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/products/hoodie", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "inactive listings are not found")
}

func TestBulkSetStock(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPut, "/api/inventory/stock", adminKey, map[string]any{
		"updates": []map[string]any{
			{"productId": "hoodie", "stock": 10},
			{"productId": "missing", "stock": 1},
			{"productId": "hoodie", "stock": -1},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Results []struct {
			Success       bool   `json:"success"`
			PreviousStock int    `json:"previousStock"`
			Stock         int    `json:"stock"`
			Error         string `json:"error"`
		} `json:"results"`
	}](t, rec)
	require.Len(t, resp.Results, 3)
	assert.True(t, resp.Results[0].Success)
	assert.Equal(t, 3, resp.Results[0].PreviousStock)
	assert.False(t, resp.Results[1].Success)
	assert.NotEmpty(t, resp.Results[1].Error)
	assert.False(t, resp.Results[2].Success)
	assert.Equal(t, 10, s.stock(t))
}

func TestNoRoute(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decode[errorBody](t, rec).Code)
}
