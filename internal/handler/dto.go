package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/streetwear-market/internal/domain/inventory"
	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/payment"
	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/domain/review"
	"github.com/xenking/streetwear-market/internal/domain/seller"
)

// Request and response bodies use the camelCase field names of the
// storefront client.

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type productStats struct {
	Views         int     `json:"views"`
	Favorites     int     `json:"favorites"`
	Sales         int     `json:"sales"`
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int     `json:"reviewCount"`
}

type productResponse struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Price         float64      `json:"price"`
	OriginalPrice *float64     `json:"originalPrice,omitempty"`
	Category      string       `json:"category"`
	Size          string       `json:"size"`
	Condition     string       `json:"condition"`
	Brand         string       `json:"brand"`
	Color         string       `json:"color"`
	SKU           string       `json:"sku,omitempty"`
	Images        []string     `json:"images"`
	Stock         int          `json:"stock"`
	Active        bool         `json:"active"`
	Seller        string       `json:"seller"`
	Stats         productStats `json:"stats"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

func toProduct(p *product.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Category:    string(p.Category),
		Size:        string(p.Size),
		Condition:   string(p.Condition),
		Brand:       p.Brand,
		Color:       p.Color,
		SKU:         p.SKU,
		Images:      p.Images,
		Stock:       p.Stock,
		Active:      p.Active,
		Seller:      p.SellerID,
		Stats: productStats{
			Views:         p.Stats.Views,
			Favorites:     p.Stats.Favorites,
			Sales:         p.Stats.Sales,
			AverageRating: p.Stats.AverageRating,
			ReviewCount:   p.Stats.ReviewCount,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}
	if p.OriginalPrice.Valid {
		v := p.OriginalPrice.Decimal.InexactFloat64()
		resp.OriginalPrice = &v
	}
	return resp
}

func toProducts(list []product.Product) []productResponse {
	out := make([]productResponse, len(list))
	for i := range list {
		out[i] = toProduct(&list[i])
	}
	return out
}

type createProductRequest struct {
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	Category      string           `json:"category"`
	Size          string           `json:"size"`
	Condition     string           `json:"condition"`
	Brand         string           `json:"brand"`
	Color         string           `json:"color"`
	SKU           string           `json:"sku"`
	Images        []string         `json:"images"`
	Stock         int              `json:"stock"`
}

type availabilityResponse struct {
	Available bool            `json:"available"`
	Stock     int             `json:"stock"`
	Product   productResponse `json:"product"`
}

type alertsResponse struct {
	Threshold  int               `json:"threshold"`
	LowStock   []productResponse `json:"lowStock"`
	OutOfStock []productResponse `json:"outOfStock"`
	Total      int               `json:"total"`
}

func toAlerts(a *inventory.Alerts) alertsResponse {
	return alertsResponse{
		Threshold:  a.Threshold,
		LowStock:   toProducts(a.LowStock),
		OutOfStock: toProducts(a.OutOfStock),
		Total:      a.Total(),
	}
}

type categoryStatsResponse struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	TotalStock int     `json:"totalStock"`
	TotalValue float64 `json:"totalValue"`
}

type inventoryStatsResponse struct {
	TotalProducts   int                     `json:"totalProducts"`
	TotalStock      int                     `json:"totalStock"`
	TotalValue      float64                 `json:"totalValue"`
	AveragePrice    float64                 `json:"averagePrice"`
	LowStockCount   int                     `json:"lowStockCount"`
	OutOfStockCount int                     `json:"outOfStockCount"`
	ByCategory      []categoryStatsResponse `json:"byCategory"`
}

func toInventoryStats(st *inventory.Stats) inventoryStatsResponse {
	resp := inventoryStatsResponse{
		TotalProducts:   st.TotalProducts,
		TotalStock:      st.TotalStock,
		TotalValue:      st.TotalValue.InexactFloat64(),
		AveragePrice:    st.AveragePrice.InexactFloat64(),
		LowStockCount:   st.LowStockCount,
		OutOfStockCount: st.OutOfStockCount,
		ByCategory:      make([]categoryStatsResponse, len(st.ByCategory)),
	}
	for i, c := range st.ByCategory {
		resp.ByCategory[i] = categoryStatsResponse{
			Category:   string(c.Category),
			Count:      c.Count,
			TotalStock: c.TotalStock,
			TotalValue: c.TotalValue.InexactFloat64(),
		}
	}
	return resp
}

type stockUpdateRequest struct {
	Updates []struct {
		ProductID string `json:"productId"`
		Stock     int    `json:"stock"`
	} `json:"updates"`
}

type stockUpdateResponse struct {
	ProductID     string `json:"productId"`
	Success       bool   `json:"success"`
	PreviousStock int    `json:"previousStock"`
	Stock         int    `json:"stock"`
	Error         string `json:"error,omitempty"`
}

type createOrderRequest struct {
	Items []struct {
		Product  string `json:"product"`
		Quantity int    `json:"quantity"`
	} `json:"items"`
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	Notes           string                `json:"notes"`
}

type orderItemResponse struct {
	Product   string  `json:"product"`
	Seller    string  `json:"seller"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size"`
	Condition string  `json:"condition"`
}

type orderResponse struct {
	ID              string                `json:"id"`
	User            string                `json:"user"`
	Items           []orderItemResponse   `json:"items"`
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	PaymentResult   *payment.Result       `json:"paymentResult,omitempty"`
	ItemsPrice      float64               `json:"itemsPrice"`
	TaxPrice        float64               `json:"taxPrice"`
	ShippingPrice   float64               `json:"shippingPrice"`
	TotalPrice      float64               `json:"totalPrice"`
	IsPaid          bool                  `json:"isPaid"`
	PaidAt          *time.Time            `json:"paidAt,omitempty"`
	IsDelivered     bool                  `json:"isDelivered"`
	DeliveredAt     *time.Time            `json:"deliveredAt,omitempty"`
	Status          string                `json:"status"`
	TrackingNumber  string                `json:"trackingNumber,omitempty"`
	Carrier         string                `json:"carrier,omitempty"`
	Notes           string                `json:"notes,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

func toOrder(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		User:            o.UserID,
		Items:           make([]orderItemResponse, len(o.Items)),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentResult:   o.PaymentResult,
		ItemsPrice:      o.ItemsPrice.InexactFloat64(),
		TaxPrice:        o.TaxPrice.InexactFloat64(),
		ShippingPrice:   o.ShippingPrice.InexactFloat64(),
		TotalPrice:      o.TotalPrice.InexactFloat64(),
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     o.DeliveredAt,
		Status:          string(o.Status),
		TrackingNumber:  o.TrackingNumber,
		Carrier:         o.Carrier,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for i, it := range o.Items {
		resp.Items[i] = orderItemResponse{
			Product:   it.ProductID,
			Seller:    it.SellerID,
			Name:      it.Name,
			Image:     it.Image,
			Price:     it.Price.InexactFloat64(),
			Quantity:  it.Quantity,
			Size:      it.Size,
			Condition: it.Condition,
		}
	}
	return resp
}

func toOrders(list []order.Order) []orderResponse {
	out := make([]orderResponse, len(list))
	for i := range list {
		out[i] = toOrder(&list[i])
	}
	return out
}

type updateStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber"`
	Carrier        string `json:"carrier"`
}

type salesStatsResponse struct {
	TotalSales        int     `json:"totalSales"`
	TotalRevenue      float64 `json:"totalRevenue"`
	AverageOrderValue float64 `json:"averageOrderValue"`
	OrderCount        int     `json:"orderCount"`
}

type sellerStatsResponse struct {
	Seller        string              `json:"seller"`
	ProductsSold  int                 `json:"productsSold"`
	TotalEarnings float64             `json:"totalEarnings"`
	Sales         *salesStatsResponse `json:"sales,omitempty"`
}

func toSellerStats(st *seller.Stats, sales *order.SalesStats) sellerStatsResponse {
	resp := sellerStatsResponse{
		Seller:        st.SellerID,
		ProductsSold:  st.ProductsSold,
		TotalEarnings: st.TotalEarnings.InexactFloat64(),
	}
	if sales != nil {
		resp.Sales = &salesStatsResponse{
			TotalSales:        sales.TotalSales,
			TotalRevenue:      sales.TotalRevenue.InexactFloat64(),
			AverageOrderValue: sales.AverageOrderValue.InexactFloat64(),
			OrderCount:        sales.OrderCount,
		}
	}
	return resp
}

type reviewRequest struct {
	Product             string   `json:"product"`
	Order               string   `json:"order"`
	Rating              *int     `json:"rating"`
	SizeAccuracy        *int     `json:"sizeAccuracy"`
	Quality             *int     `json:"quality"`
	ShippingSpeed       *int     `json:"shippingSpeed"`
	SellerCommunication *int     `json:"sellerCommunication"`
	Title               *string  `json:"title"`
	Comment             *string  `json:"comment"`
	Images              []string `json:"images"`
}

type reviewResponse struct {
	ID                  string    `json:"id"`
	Product             string    `json:"product"`
	User                string    `json:"user"`
	Order               string    `json:"order"`
	Rating              int       `json:"rating"`
	SizeAccuracy        *int      `json:"sizeAccuracy,omitempty"`
	Quality             *int      `json:"quality,omitempty"`
	ShippingSpeed       *int      `json:"shippingSpeed,omitempty"`
	SellerCommunication *int      `json:"sellerCommunication,omitempty"`
	Title               string    `json:"title"`
	Comment             string    `json:"comment"`
	Images              []string  `json:"images"`
	Helpful             int       `json:"helpful"`
	VerifiedPurchase    bool      `json:"verifiedPurchase"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func toReview(r *review.Review) reviewResponse {
	resp := reviewResponse{
		ID:                  r.ID,
		Product:             r.ProductID,
		User:                r.UserID,
		Order:               r.OrderID,
		Rating:              r.Rating,
		SizeAccuracy:        r.SizeAccuracy,
		Quality:             r.Quality,
		ShippingSpeed:       r.ShippingSpeed,
		SellerCommunication: r.SellerCommunication,
		Title:               r.Title,
		Comment:             r.Comment,
		Images:              r.Images,
		Helpful:             r.HelpfulCount(),
		VerifiedPurchase:    r.VerifiedPurchase,
		Status:              string(r.Status),
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}
	return resp
}

type ratingStatsResponse struct {
	Total        int            `json:"total"`
	Average      float64        `json:"average"`
	Distribution map[string]int `json:"distribution"`
}

type favoritesResponse struct {
	Favorites int `json:"favorites"`
}

type helpfulResponse struct {
	Helpful int `json:"helpful"`
}
