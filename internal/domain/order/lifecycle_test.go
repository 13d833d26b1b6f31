package order_test

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/streetwear-market/internal/domain/auth"
	"github.com/xenking/streetwear-market/internal/domain/inventory"
	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/payment"
	"github.com/xenking/streetwear-market/internal/domain/pricing"
	"github.com/xenking/streetwear-market/internal/domain/product"
	"github.com/xenking/streetwear-market/internal/storage/memory"
)

type lifecycleContext struct {
	products *memory.Products
	orders   *memory.Orders
	sellers  *memory.Sellers
	svc      *order.Service

	order *order.Order
	err   error
}

func (c *lifecycleContext) reset() error {
	store := memory.NewStore()
	c.products = memory.NewProducts(store)
	c.orders = memory.NewOrders(store)
	c.sellers = memory.NewSellers(store)
	c.order = nil
	c.err = nil

	svc, err := order.NewService(
		c.products,
		c.orders,
		c.sellers,
		inventory.NewManager(c.products),
		pricing.NewCalculator(pricing.DefaultConfig()),
		memory.NewTxManager(store),
	)
	c.svc = svc
	return err
}

func (c *lifecycleContext) aProduct(id, sellerID string, price, stock int) error {
	return c.products.Create(context.Background(), &product.Product{
		ID:        id,
		Name:      "Item " + id,
		Price:     decimal.NewFromInt(int64(price)),
		Category:  product.CategoryShirts,
		Size:      product.SizeL,
		Condition: product.ConditionGood,
		Stock:     stock,
		Active:    true,
		SellerID:  sellerID,
	})
}

func (c *lifecycleContext) placesAnOrderFor(userID string, table *godog.Table) error {
	var items []order.CreateItem
	for _, row := range table.Rows[1:] {
		qty, err := strconv.Atoi(row.Cells[1].Value)
		if err != nil {
			return err
		}
		items = append(items, order.CreateItem{ProductID: row.Cells[0].Value, Quantity: qty})
	}

	res, err := c.svc.Create(context.Background(), userID, order.CreateRequest{
		Items: items,
		ShippingAddress: order.ShippingAddress{
			Address:    "Carrera 7 #32-16",
			City:       "Medellín",
			PostalCode: "050001",
		},
		PaymentMethod: order.PaymentCash,
	})
	c.err = err
	if err == nil {
		c.order = res.Order
	}
	return nil
}

func (c *lifecycleContext) theOrderIsPlaced() error {
	if c.err != nil {
		return fmt.Errorf("expected order but got error: %v", c.err)
	}
	return nil
}

func (c *lifecycleContext) theOrderFailsWith(msg string) error {
	if c.err == nil {
		return errors.New("expected an error")
	}
	if !strings.Contains(c.err.Error(), msg) {
		return fmt.Errorf("expected error containing %q, got %q", msg, c.err.Error())
	}
	return nil
}

func decimalIs(name string, got decimal.Decimal, want int) error {
	if !got.Equal(decimal.NewFromInt(int64(want))) {
		return fmt.Errorf("expected %s %d, got %s", name, want, got)
	}
	return nil
}

func (c *lifecycleContext) theOrderTotalIs(total int) error {
	return decimalIs("total", c.order.TotalPrice, total)
}

func (c *lifecycleContext) theShippingPriceIs(price int) error {
	return decimalIs("shipping", c.order.ShippingPrice, price)
}

func (c *lifecycleContext) theStockOfIs(id string, stock int) error {
	p, err := c.products.GetByID(context.Background(), id)
	if err != nil {
		return err
	}
	if p.Stock != stock {
		return fmt.Errorf("expected stock %d for %s, got %d", stock, id, p.Stock)
	}
	return nil
}

func (c *lifecycleContext) noOrderIsStored() error {
	all, err := c.orders.List(context.Background(), order.Filter{})
	if err != nil {
		return err
	}
	if len(all) != 0 {
		return fmt.Errorf("expected no orders, got %d", len(all))
	}
	return nil
}

func (c *lifecycleContext) theGatewayConfirmsThePayment() error {
	o, err := c.svc.MarkPaid(context.Background(), c.order.ID, payment.Result{
		ID:     "PAY-" + c.order.ID,
		Status: "COMPLETED",
	})
	c.err = err
	if err == nil {
		c.order = o
	}
	return nil
}

func (c *lifecycleContext) cancelsTheOrder(userID string) error {
	o, err := c.svc.Cancel(context.Background(), c.order.ID, auth.Identity{UserID: userID, Role: auth.RoleUser})
	c.err = err
	if err == nil {
		c.order = o
	}
	return nil
}

func (c *lifecycleContext) theOrderStatusIs(status string) error {
	o, err := c.orders.GetByID(context.Background(), c.order.ID)
	if err != nil {
		return err
	}
	if string(o.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, o.Status)
	}
	return nil
}

func (c *lifecycleContext) sellerHasSold(sellerID string, items, earnings int) error {
	st, err := c.sellers.Get(context.Background(), sellerID)
	if err != nil {
		return err
	}
	if st.ProductsSold != items {
		return fmt.Errorf("expected %d items sold, got %d", items, st.ProductsSold)
	}
	return decimalIs("earnings", st.TotalEarnings, earnings)
}

func initializeLifecycleScenario(ctx *godog.ScenarioContext) {
	tc := &lifecycleContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})

	// Given steps
	ctx.Step(`^a product "([^"]*)" sold by "([^"]*)" priced (\d+) with stock (\d+)$`, tc.aProduct)

	// When steps
	ctx.Step(`^"([^"]*)" places an order for:$`, tc.placesAnOrderFor)
	ctx.Step(`^the gateway confirms the payment$`, tc.theGatewayConfirmsThePayment)
	ctx.Step(`^"([^"]*)" cancels the order$`, tc.cancelsTheOrder)

	// Then steps
	ctx.Step(`^the order is placed$`, tc.theOrderIsPlaced)
	ctx.Step(`^the order fails with "([^"]*)"$`, tc.theOrderFailsWith)
	ctx.Step(`^the order total is (\d+)$`, tc.theOrderTotalIs)
	ctx.Step(`^the shipping price is (\d+)$`, tc.theShippingPriceIs)
	ctx.Step(`^the stock of "([^"]*)" is (\d+)$`, tc.theStockOfIs)
	ctx.Step(`^no order is stored$`, tc.noOrderIsStored)
	ctx.Step(`^the order status is "([^"]*)"$`, tc.theOrderStatusIs)
	ctx.Step(`^seller "([^"]*)" has sold (\d+) items? for (\d+)$`, tc.sellerHasSold)
}

func TestLifecycleFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeLifecycleScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"testdata/lifecycle.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
