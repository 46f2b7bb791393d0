package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/ecom-saas/internal/auth"
	"github.com/MikeMC777/ecom-saas/internal/order"
	"github.com/MikeMC777/ecom-saas/internal/order/ordertest"
	"github.com/MikeMC777/ecom-saas/internal/pricing"
	"github.com/MikeMC777/ecom-saas/internal/product"
	"github.com/MikeMC777/ecom-saas/internal/tenant"
)

//
// ---------- STUBS & FAKES ----------
//

// storeRepo implements tenant.Repository in memory.
type storeRepo struct {
	mu     sync.Mutex
	stores map[string]tenant.Store
}

func (r *storeRepo) GetBySubdomain(_ context.Context, sub string) (*tenant.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[sub]; ok {
		return &s, nil
	}
	return nil, tenant.ErrStoreNotFound
}

func (r *storeRepo) Create(_ context.Context, s *tenant.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stores[s.Subdomain]; ok {
		return tenant.ErrSubdomainTaken
	}
	r.stores[s.Subdomain] = *s
	return nil
}

// catalogRepo implements product.Repository and product.CategoryRepository in memory.
type catalogRepo struct {
	mu         sync.Mutex
	items      map[string]product.Product
	categories map[string]product.Category
}

func newCatalogRepo() *catalogRepo {
	return &catalogRepo{items: map[string]product.Product{}, categories: map[string]product.Category{}}
}

func (r *catalogRepo) Create(_ context.Context, p *product.Product, plan pricing.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, it := range r.items {
		if it.StoreID == p.StoreID {
			n++
		}
	}
	if !pricing.CanAddProduct(plan, n) {
		return fmt.Errorf("%w: plan %s allows %d products", product.ErrPlanLimit, plan, n)
	}
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
		if p.StoreID != storeID {
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
	cur, ok := r.items[p.ID]
	if !ok {
		return product.ErrNotFound
	}
	if stock == nil {
		p.Stock = cur.Stock
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
	for _, it := range r.categories {
		if it.StoreID == c.StoreID && it.Slug == c.Slug {
			return product.ErrCategoryTaken
		}
	}
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

func (r *catalogRepo) UpdateCategory(_ context.Context, c *product.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.ID] = *c
	return nil
}

// DeleteCategory refuses while a product still points at the category,
// like the products.category_id foreign key.
func (r *catalogRepo) DeleteCategory(_ context.Context, storeID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok || c.StoreID != storeID {
		return false, nil
	}
	for _, p := range r.items {
		if p.CategoryID != nil && *p.CategoryID == id {
			return false, product.ErrCategoryInUse
		}
	}
	delete(r.categories, id)
	return true, nil
}

const (
	platformHost = "ecom-saas.com"
	acmeHost     = "acme.ecom-saas.com"
)

type fixture struct {
	router *gin.Engine
	stores *storeRepo
	orders *ordertest.Repo
	svc    *order.Service
	tokens *auth.Tokens
	owner  string
	acme   *tenant.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		stores: &storeRepo{stores: map[string]tenant.Store{}},
		orders: ordertest.New(),
		tokens: tokens,
		owner:  uuid.NewString(),
	}
	f.acme = &tenant.Store{ID: uuid.NewString(), Name: "Acme", Subdomain: "acme", Plan: pricing.PlanFree, OwnerID: f.owner}
	f.stores.stores["acme"] = *f.acme
	f.svc = order.NewService(f.orders, nil)

	catalog := newCatalogRepo()
	s := &server{
		stores:     tenant.NewService(f.stores),
		products:   product.NewService(catalog),
		categories: product.NewCategoryService(catalog),
		orders:     f.svc,
	}
	f.router = newRouter(s, tenant.NewResolver(f.stores, []string{platformHost}), tokens, nil)
	return f
}

func (f *fixture) token(t *testing.T, userID string) string {
	t.Helper()
	raw, err := f.tokens.Issue(auth.Session{UserID: userID})
	require.NoError(t, err)
	return raw
}

func (f *fixture) do(method, host, path, token, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Host = host
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	f.router.ServeHTTP(w, req)
	return w
}

// placed puts one PENDING order for qty units of a fresh product into acme.
func (f *fixture) placed(t *testing.T, stock, qty int) (orderID, productID string) {
	t.Helper()
	productID = uuid.NewString()
	f.orders.AddProduct(product.Product{
		ID: productID, StoreID: f.acme.ID, Name: "Mug", Price: decimal.RequireFromString("10.00"), Stock: stock,
	})
	o, err := f.svc.PlaceOrder(context.Background(), f.acme, auth.Session{UserID: uuid.NewString(), Email: "buyer@example.com"},
		order.PlaceOrderRequest{
			Items: []order.PlaceOrderItem{{ProductID: productID, Quantity: qty}},
			ShippingAddress: order.ShippingAddress{
				FirstName: "Ada", LastName: "Lovelace", Address: "12 Analytical St", City: "London", PostalCode: "N1 9GU",
			},
		})
	require.NoError(t, err)
	return o.ID, productID
}

//
// ---------- TESTS ----------
//

func TestCreateStore_PlatformHostOnly(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, uuid.NewString())

	w := f.do(http.MethodPost, platformHost, "/admin/stores", tok, `{"name":"Bolt","subdomain":"Bolt","plan":"pro"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var st tenant.Store
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "bolt", st.Subdomain)
	assert.Equal(t, pricing.PlanPro, st.Plan)

	w = f.do(http.MethodPost, platformHost, "/admin/stores", tok, `{"name":"Bolt 2","subdomain":"bolt"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, platformHost, "/admin/stores", tok, `{"name":"x","subdomain":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, acmeHost, "/admin/stores", tok, `{"name":"Nested","subdomain":"nested"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, platformHost, "/admin/stores", "", `{"name":"Anon","subdomain":"anon"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProducts_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	body := `{"name":"Keyboard","price":"199.90","stock":10}`

	w := f.do(http.MethodPost, acmeHost, "/admin/products", f.token(t, uuid.NewString()), body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	tok := f.token(t, f.owner)
	w = f.do(http.MethodPost, acmeHost, "/admin/products", tok, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p product.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))

	w = f.do(http.MethodPut, acmeHost, "/admin/products/"+p.ID, tok, `{"stock":3,"status":"draft"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, product.StatusDraft, p.Status)

	w = f.do(http.MethodPut, acmeHost, "/admin/products/"+p.ID, tok, `{"price":"-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, acmeHost, "/admin/products", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list product.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Items, 1)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, acmeHost, "/admin/products/"+p.ID, tok, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, acmeHost, "/admin/products/"+p.ID, tok, "").Code)
}

func TestProducts_FreePlanLimit(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.owner)

	for i := 0; i < 10; i++ {
		w := f.do(http.MethodPost, acmeHost, "/admin/products", tok, fmt.Sprintf(`{"name":"p%d","price":"1.00"}`, i))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w := f.do(http.MethodPost, acmeHost, "/admin/products", tok, `{"name":"one more","price":"1.00"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "plan product limit reached")
}

func TestOrders_ShipWithHistory(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.owner)
	oid, _ := f.placed(t, 5, 2)

	w := f.do(http.MethodGet, acmeHost, "/admin/orders?status=pending", tok, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list order.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, oid, list.Items[0].ID)

	w = f.do(http.MethodPut, acmeHost, "/admin/orders/"+oid+"/status", tok, `{"status":"SHIPPED","tracking_number":"1Z999"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, "pending orders are processed before shipping")

	w = f.do(http.MethodPut, acmeHost, "/admin/orders/"+oid+"/status", tok, `{"status":"processing"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = f.do(http.MethodPut, acmeHost, "/admin/orders/"+oid+"/status", tok, `{"status":"SHIPPED","tracking_number":"1Z999"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var o order.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &o))
	assert.Equal(t, order.StatusShipped, o.Status)
	assert.Equal(t, "1Z999", o.TrackingNumber)

	w = f.do(http.MethodGet, acmeHost, "/admin/orders/"+oid, tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail OrderDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	require.Len(t, detail.History, 2)
	assert.Equal(t, order.StatusPending, detail.History[0].From)
	assert.Equal(t, order.StatusProcessing, detail.History[0].To)
	assert.Equal(t, order.StatusProcessing, detail.History[1].From)
	assert.Equal(t, order.StatusShipped, detail.History[1].To)

	w = f.do(http.MethodPut, acmeHost, "/admin/orders/"+oid+"/status", tok, `{"status":"PENDING"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	f.svc.Wait()
}

func TestOrders_CancelRestocks(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.owner)
	oid, pid := f.placed(t, 5, 2)
	require.Equal(t, 3, f.orders.Stock(pid))

	w := f.do(http.MethodPut, acmeHost, "/admin/orders/"+oid+"/status", tok, `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 5, f.orders.Stock(pid))
	f.svc.Wait()
}

func TestOrders_Errors(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.owner)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, acmeHost, "/admin/orders?status=LOST", tok, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, acmeHost, "/admin/orders/"+uuid.NewString(), tok, "").Code)
	assert.Equal(t, http.StatusBadRequest,
		f.do(http.MethodPut, acmeHost, "/admin/orders/"+uuid.NewString()+"/status", tok, `{"status":"LOST"}`).Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(http.MethodPut, acmeHost, "/admin/orders/"+uuid.NewString()+"/status", tok, `{"status":"PAID"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "ghost.ecom-saas.com", "/admin/orders", tok, "").Code)
}

func TestCategories_CRUDAndFilter(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, f.owner)

	w := f.do(http.MethodPost, acmeHost, "/admin/categories", f.token(t, uuid.NewString()), `{"name":"Keyboards"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, acmeHost, "/admin/categories", tok, `{"name":"Keyboards"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var kb product.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &kb))
	assert.Equal(t, "keyboards", kb.Slug)
	assert.Equal(t, f.acme.ID, kb.StoreID)

	w = f.do(http.MethodPost, acmeHost, "/admin/categories", tok, `{"name":"keyboards"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = f.do(http.MethodPost, acmeHost, "/admin/categories", tok, `{"name":"Bad","parent_id":"`+uuid.NewString()+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, acmeHost, "/admin/products", tok, `{"name":"K60","price":"50.00","category_id":"`+kb.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = f.do(http.MethodPost, acmeHost, "/admin/products", tok, `{"name":"Mouse","price":"20.00"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodGet, acmeHost, "/admin/products?category="+kb.ID, tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list product.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "K60", list.Items[0].Name)

	w = f.do(http.MethodPut, acmeHost, "/admin/categories/"+kb.ID, tok, `{"name":"Mechanical Keyboards"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &kb))
	assert.Equal(t, "mechanical-keyboards", kb.Slug)

	w = f.do(http.MethodGet, acmeHost, "/admin/categories", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	var cats []product.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cats))
	assert.Len(t, cats, 1)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodDelete, acmeHost, "/admin/categories/"+kb.ID, tok, "").Code)
	w = f.do(http.MethodPut, acmeHost, "/admin/products/"+list.Items[0].ID, tok, `{"category_id":""}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, acmeHost, "/admin/categories/"+kb.ID, tok, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, acmeHost, "/admin/categories/"+kb.ID, tok, "").Code)
}
