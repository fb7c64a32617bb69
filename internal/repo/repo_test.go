package repo

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/online_store/internal/db/dbtest"
	"github.com/Skotchmaster/online_store/internal/models"
	"github.com/Skotchmaster/online_store/internal/transport"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()
	return New(dbtest.Open(t))
}

func seedUser(t *testing.T, r *GormRepo, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: role}
	require.NoError(t, r.CreateUser(context.Background(), u))
	return u
}

func seedProduct(t *testing.T, r *GormRepo, name string, price float64) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Description: name + " description", Price: price}
	require.NoError(t, r.CreateProduct(context.Background(), p))
	return p
}

func TestUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRepo(t)

	u := seedUser(t, r, "a@shop.test", models.RoleCustomer)
	other := seedUser(t, r, "b@shop.test", models.RoleAdmin)

	got, err := r.GetUserByEmail(ctx, "a@shop.test")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = r.GetUserByEmail(ctx, "missing@shop.test")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	taken, err := r.EmailTaken(ctx, "b@shop.test", u.ID)
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = r.EmailTaken(ctx, "b@shop.test", other.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	image := "https://img.example/u.jpg"
	updated, err := r.UpdateUser(ctx, u.ID, nil, &image)
	require.NoError(t, err)
	assert.Equal(t, "a@shop.test", updated.Email)
	require.NotNil(t, updated.UserImage)
	assert.Equal(t, image, *updated.UserImage)

	_, err = r.UpdateUser(ctx, 999, nil, nil)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProducts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRepo(t)

	for i, name := range []string{"lamp", "mug", "desk"} {
		seedProduct(t, r, name, float64(i+1))
	}

	total, items, err := r.ListProducts(ctx, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "mug", items[0].Name)

	byID, err := r.ProductsByID(ctx, []uint{1, 3, 42})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, "desk", byID[3].Name)

	name := "big lamp"
	price := 9.5
	prod, err := r.UpdateProduct(ctx, 1, transport.UpdateProductRequest{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "big lamp", prod.Name)
	assert.Equal(t, "lamp description", prod.Description)
	assert.Equal(t, 9.5, prod.Price)

	require.NoError(t, r.DeleteProduct(ctx, 2))
	require.ErrorIs(t, r.DeleteProduct(ctx, 2), gorm.ErrRecordNotFound)
	_, err = r.GetProduct(ctx, 2)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCart_AddIncrementRemoveClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRepo(t)

	alice := seedUser(t, r, "alice@shop.test", models.RoleCustomer)
	bob := seedUser(t, r, "bob@shop.test", models.RoleCustomer)
	lamp := seedProduct(t, r, "lamp", 10)
	mug := seedProduct(t, r, "mug", 3)

	_, err := r.GetCartByUser(ctx, alice.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	cart, err := r.AddCartItems(ctx, alice.ID, []models.CartItem{{ProductID: lamp.ID, Quantity: 1}})
	require.NoError(t, err)
	require.Len(t, cart.CartItems, 1)

	cart, err = r.AddCartItems(ctx, alice.ID, []models.CartItem{
		{ProductID: lamp.ID, Quantity: 2},
		{ProductID: mug.ID, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, cart.CartItems, 2)
	assert.EqualValues(t, 3, cart.CartItems[0].Quantity)
	require.NotNil(t, cart.CartItems[0].Product)
	assert.Equal(t, "lamp", cart.CartItems[0].Product.Name)

	mugItem := cart.CartItems[1]
	_, err = r.RemoveCartItem(ctx, bob.ID, mugItem.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound, "items of another cart are invisible")

	removed, err := r.RemoveCartItem(ctx, alice.ID, mugItem.ID)
	require.NoError(t, err)
	assert.Equal(t, mugItem.ID, removed.ID)

	n, err := r.ClearCart(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	cart, err = r.GetCartByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.CartItems)

	_, err = r.ClearCart(ctx, bob.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestEnsureCart_ExistingRowIsReused(t *testing.T) {
	t.Parallel()
	r := newTestRepo(t)
	alice := seedUser(t, r, "alice@shop.test", models.RoleCustomer)

	existing := &models.Cart{UserID: alice.ID}
	require.NoError(t, r.DB.Create(existing).Error)

	cart, err := ensureCart(r.DB, alice.ID)
	require.NoError(t, err, "an insert that hits the unique user_id must not fail")
	assert.Equal(t, existing.ID, cart.ID)

	var n int64
	require.NoError(t, r.DB.Model(&models.Cart{}).Where("user_id = ?", alice.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestCart_ConcurrentFirstAdds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRepo(t)

	alice := seedUser(t, r, "alice@shop.test", models.RoleCustomer)
	lamp := seedProduct(t, r, "lamp", 10)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.AddCartItems(ctx, alice.ID, []models.CartItem{{ProductID: lamp.ID, Quantity: 1}})
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var carts int64
	require.NoError(t, r.DB.Model(&models.Cart{}).Where("user_id = ?", alice.ID).Count(&carts).Error)
	assert.EqualValues(t, 1, carts)

	cart, err := r.GetCartByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, cart.CartItems, 1)
	assert.EqualValues(t, workers, cart.CartItems[0].Quantity)
}

func TestOrders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTestRepo(t)

	alice := seedUser(t, r, "alice@shop.test", models.RoleCustomer)
	bob := seedUser(t, r, "bob@shop.test", models.RoleCustomer)
	lamp := seedProduct(t, r, "lamp", 10)

	first := &models.Order{UserID: alice.ID, TotalAmount: 20, Status: models.OrderPending,
		Items: []models.OrderItem{{ProductID: lamp.ID, Quantity: 2, Price: 10}}}
	require.NoError(t, r.CreateOrder(ctx, first))
	second := &models.Order{UserID: alice.ID, TotalAmount: 10, Status: models.OrderPending,
		Items: []models.OrderItem{{ProductID: lamp.ID, Quantity: 1, Price: 10}}}
	require.NoError(t, r.CreateOrder(ctx, second))
	require.NoError(t, r.CreateOrder(ctx, &models.Order{UserID: bob.ID, TotalAmount: 10, Status: models.OrderPending,
		Items: []models.OrderItem{{ProductID: lamp.ID, Quantity: 1, Price: 10}}}))

	mine, err := r.ListOrdersByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")
	require.Len(t, mine[0].Items, 1)
	require.NotNil(t, mine[0].Items[0].Product)

	all, err := r.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.NotNil(t, all[0].User)
	assert.Equal(t, "bob@shop.test", all[0].User.Email)

	updated, err := r.UpdateOrderStatus(ctx, first.ID, models.OrderFulfilled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderFulfilled, updated.Status)
	assert.Len(t, updated.Items, 1)

	_, err = r.UpdateOrderStatus(ctx, 999, models.OrderCancelled)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
