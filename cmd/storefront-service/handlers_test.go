package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ecom-saas/internal/auth"
	"github.com/MikeMC777/ecom-saas/internal/notify"
	"github.com/MikeMC777/ecom-saas/internal/order"
	"github.com/MikeMC777/ecom-saas/internal/order/ordertest"
	"github.com/MikeMC777/ecom-saas/internal/pricing"
	"github.com/MikeMC777/ecom-saas/internal/product"
	"github.com/MikeMC777/ecom-saas/internal/tenant"
	"github.com/MikeMC777/ecom-saas/internal/user"
)

//
// ---------- STUBS & FAKES ----------
//

type hosts map[string]*tenant.Store

func (h hosts) Resolve(_ context.Context, host string) (*tenant.Store, error) {
	if st, ok := h[host]; ok {
		return st, nil
	}
	return nil, tenant.ErrStoreNotFound
}

// catalogRepo implements product.Repository and product.CategoryRepository in memory.
type catalogRepo struct {
	mu         sync.Mutex
	items      map[string]product.Product
	categories map[string]product.Category
}

func (r *catalogRepo) Create(_ context.Context, p *product.Product, _ pricing.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = *p
	return nil
}

func (r *catalogRepo) GetByID(_ context.Context, storeID, id string) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || p.StoreID != storeID {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (r *catalogRepo) List(_ context.Context, storeID string, q product.Query) ([]product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []product.Product{}
	for _, p := range r.items {
		if p.StoreID != storeID || (q.ActiveOnly && p.Status != product.StatusActive) {
			continue
		}
		if q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)) {
			continue
		}
		if q.CategoryID != "" && (p.CategoryID == nil || *p.CategoryID != q.CategoryID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *catalogRepo) Update(_ context.Context, p *product.Product, stock *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stock == nil {
		p.Stock = r.items[p.ID].Stock
	}
	r.items[p.ID] = *p
	return nil
}

func (r *catalogRepo) Delete(_ context.Context, storeID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || p.StoreID != storeID {
		return false, nil
	}
	delete(r.items, id)
	return true, nil
}

func (r *catalogRepo) CreateCategory(_ context.Context, c *product.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.ID] = *c
	return nil
}

func (r *catalogRepo) GetCategory(_ context.Context, storeID, id string) (*product.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok || c.StoreID != storeID {
		return nil, product.ErrCategoryNotFound
	}
	return &c, nil
}

func (r *catalogRepo) ListCategories(_ context.Context, storeID string) ([]product.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []product.Category{}
	for _, c := range r.categories {
		if c.StoreID == storeID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *catalogRepo) UpdateCategory(ctx context.Context, c *product.Category) error {
	return r.CreateCategory(ctx, c)
}

func (r *catalogRepo) DeleteCategory(_ context.Context, storeID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok || c.StoreID != storeID {
		return false, nil
	}
	delete(r.categories, id)
	return true, nil
}

// userRepo implements user.Repository in memory.
type userRepo struct {
	mu    sync.Mutex
	users map[string]user.User
}

func (r *userRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.users {
		if x.Email == u.Email {
			return user.ErrAlreadyExist
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return &u, nil
	}
	return nil, user.ErrNotFound
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, user.ErrNotFound
}

type sink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *sink) Dispatch(_ context.Context, e notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

type fixture struct {
	router  *gin.Engine
	store   *tenant.Store
	orders  *ordertest.Repo
	catalog *catalogRepo
	svc     *order.Service
	tokens  *auth.Tokens
	sent    *sink
}

const host = "acme.shop.test"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		store:   &tenant.Store{ID: uuid.NewString(), Name: "Acme", Subdomain: "acme", Plan: pricing.PlanFree, OwnerID: uuid.NewString()},
		orders:  ordertest.New(),
		catalog: &catalogRepo{items: map[string]product.Product{}, categories: map[string]product.Category{}},
		tokens:  tokens,
		sent:    &sink{},
	}
	f.svc = order.NewService(f.orders, f.sent)
	s := &server{
		users:      user.NewService(&userRepo{users: map[string]user.User{}}, tokens),
		products:   product.NewService(f.catalog),
		categories: product.NewCategoryService(f.catalog),
		orders:     f.svc,
	}
	f.router = newRouter(s, hosts{host: f.store}, tokens, nil)
	return f
}

// addProduct seeds the same product into the catalog and the order store.
func (f *fixture) addProduct(name, price string, stock int, status product.Status) string {
	p := product.Product{
		ID:      uuid.NewString(),
		StoreID: f.store.ID,
		Name:    name,
		Price:   decimal.RequireFromString(price),
		Stock:   stock,
		Status:  status,
	}
	f.catalog.items[p.ID] = p
	f.orders.AddProduct(p)
	return p.ID
}

func (f *fixture) token(t *testing.T, userID string) string {
	t.Helper()
	raw, err := f.tokens.Issue(auth.Session{UserID: userID, Email: userID + "@example.com"})
	require.NoError(t, err)
	return raw
}

func (f *fixture) do(method, h, path, token, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Host = h
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func orderBody(productID string, qty int) string {
	return fmt.Sprintf(`{
		"items":[{"product_id":%q,"quantity":%d}],
		"shipping_address":{"first_name":"Ada","last_name":"Lovelace","address":"12 Analytical St","city":"London","postal_code":"N1 9GU"}
	}`, productID, qty)
}

//
// ---------- TESTS ----------
//

func TestPlaceOrder_Created(t *testing.T) {
	f := newFixture(t)
	pid := f.addProduct("Mug", "25.00", 10, product.StatusActive)

	w := f.do(http.MethodPost, host, "/api/orders", f.token(t, uuid.NewString()), orderBody(pid, 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got order.PlaceOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NotEmpty(t, got.OrderID)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, "50.00", got.Total)
	assert.Equal(t, "0.50", got.CommissionFee)
	assert.Equal(t, 8, f.orders.Stock(pid))

	f.svc.Wait()
	require.Len(t, f.sent.events, 1)
	assert.Equal(t, notify.TemplateOrderConfirmation, f.sent.events[0].Template)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	pid := f.addProduct("Mug", "25.00", 5, product.StatusActive)

	w := f.do(http.MethodPost, host, "/api/orders", f.token(t, uuid.NewString()), orderBody(pid, 10))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"insufficient stock for Mug"}`, w.Body.String())
	assert.Equal(t, 5, f.orders.Stock(pid))
	assert.Zero(t, f.orders.OrderCount())
}

func TestPlaceOrder_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	pid := f.addProduct("Mug", "25.00", 5, product.StatusActive)

	w := f.do(http.MethodPost, host, "/api/orders", "", orderBody(pid, 1))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 5, f.orders.Stock(pid))
	assert.Zero(t, f.orders.Transactions())
}

func TestPlaceOrder_UnknownStore(t *testing.T) {
	f := newFixture(t)
	pid := f.addProduct("Mug", "25.00", 5, product.StatusActive)

	w := f.do(http.MethodPost, "ghost.shop.test", "/api/orders", f.token(t, uuid.NewString()), orderBody(pid, 1))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 5, f.orders.Stock(pid))
}

func TestPlaceOrder_BadRequest(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, uuid.NewString())

	w := f.do(http.MethodPost, host, "/api/orders", tok, `{"items":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, host, "/api/orders", tok, `{"items":[],"shipping_address":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "items")
}

func TestRegisterLoginAndOrderHistory(t *testing.T) {
	f := newFixture(t)
	pid := f.addProduct("Mug", "10.00", 3, product.StatusActive)

	w := f.do(http.MethodPost, host, "/api/auth/register", "", `{"name":"Ada","email":"ada@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodPost, host, "/api/auth/login", "", `{"email":"ADA@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok user.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.Token)

	w = f.do(http.MethodGet, host, "/api/auth/me", tok.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"ada@example.com"`)
	assert.NotContains(t, w.Body.String(), "password")

	w = f.do(http.MethodPost, host, "/api/orders", tok.Token, orderBody(pid, 1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var placed order.PlaceOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &placed))

	w = f.do(http.MethodGet, host, "/api/orders", tok.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list order.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, placed.OrderID, list.Items[0].ID)
	assert.Equal(t, "ada@example.com", list.Items[0].Address.Email)

	w = f.do(http.MethodGet, host, "/api/orders/"+placed.OrderID, tok.Token, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// somebody else cannot see it
	w = f.do(http.MethodGet, host, "/api/orders/"+placed.OrderID, f.token(t, uuid.NewString()), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, host, "/api/auth/register", "", `{"name":"Ada","email":"ada@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodPost, host, "/api/auth/login", "", `{"email":"ada@example.com","password":"battery staple"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProducts_OnlyActiveAreVisible(t *testing.T) {
	f := newFixture(t)
	live := f.addProduct("Mug", "10.00", 3, product.StatusActive)
	draft := f.addProduct("Teapot", "30.00", 3, product.StatusDraft)

	w := f.do(http.MethodGet, host, "/api/products?limit=5", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list product.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, live, list.Items[0].ID)
	assert.Equal(t, 5, list.Limit)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, host, "/api/products/"+live, "", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, host, "/api/products/"+draft, "", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, host, "/api/products/nope", "", "").Code)
}

func TestProducts_CategoryFilter(t *testing.T) {
	f := newFixture(t)
	cats := product.NewCategoryService(f.catalog)
	kb, err := cats.Create(context.Background(), f.store, product.CategoryRequest{Name: "Keyboards"})
	require.NoError(t, err)

	inCat := f.addProduct("K60", "50.00", 3, product.StatusActive)
	p := f.catalog.items[inCat]
	p.CategoryID = &kb.ID
	f.catalog.items[inCat] = p
	f.addProduct("Mug", "10.00", 3, product.StatusActive)

	w := f.do(http.MethodGet, host, "/api/products?category="+kb.ID, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list product.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, inCat, list.Items[0].ID)

	w = f.do(http.MethodGet, host, "/api/categories", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got []product.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "keyboards", got[0].Slug)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "anything", "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
