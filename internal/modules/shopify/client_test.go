package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("")
	c.scheme = "http"
	return c, strings.TrimPrefix(srv.URL, "http://")
}

func TestListProducts_Pagination(t *testing.T) {
	var tokens []string
	c, shop := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/admin/api/2024-01/products.json", r.URL.Path)
		tokens = append(tokens, r.Header.Get("X-Shopify-Access-Token"))

		switch r.URL.Query().Get("page_info") {
		case "":
			w.Header().Set("Link", fmt.Sprintf(`<http://%s/admin/api/2024-01/products.json?limit=250&page_info=cursor2>; rel="next"`, r.Host))
			fmt.Fprint(w, `{"products":[{"id":101,"title":"Shirt","variants":[{"id":1,"product_id":101,"price":"19.99"}]}]}`)
		case "cursor2":
			fmt.Fprint(w, `{"products":[{"id":102,"title":"Hat","variants":[{"id":2,"product_id":102,"price":"9.99"}]}]}`)
		default:
			t.Errorf("unexpected page_info %q", r.URL.Query().Get("page_info"))
		}
	})

	products, err := c.ListProducts(context.Background(), shop, "tok")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, int64(101), products[0].ID)
	assert.Equal(t, int64(102), products[1].ID)
	assert.Equal(t, []string{"tok", "tok"}, tokens)
}

func TestListProducts_IgnoresPrevLink(t *testing.T) {
	c, shop := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/admin/api/2024-01/products.json?page_info=before>; rel="previous"`, r.Host))
		fmt.Fprint(w, `{"products":[{"id":101,"title":"Shirt","variants":[]}]}`)
	})

	products, err := c.ListProducts(context.Background(), shop, "tok")
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestGetProduct(t *testing.T) {
	c, shop := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/admin/api/2024-01/products/101.json", r.URL.Path)
		fmt.Fprint(w, `{"product":{"id":101,"title":"Shirt","variants":[{"id":1,"product_id":101,"price":"19.99","inventory_quantity":5}]}}`)
	})

	p, err := c.GetProduct(context.Background(), shop, "tok", "101")
	require.NoError(t, err)
	assert.Equal(t, "Shirt", p.Title)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, "19.99", p.Variants[0].Price)
	assert.Equal(t, 5, p.Variants[0].InventoryQuantity)
}

func TestUpdateVariantPrice(t *testing.T) {
	t.Run("sends the variant payload", func(t *testing.T) {
		var got map[string]map[string]interface{}
		c, shop := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPut, r.Method)
			require.Equal(t, "/admin/api/2024-01/variants/1.json", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			fmt.Fprint(w, `{"variant":{"id":1,"price":"110.00"}}`)
		})

		require.NoError(t, c.UpdateVariantPrice(context.Background(), shop, "tok", 1, "110.00"))
		assert.Equal(t, "110.00", got["variant"]["price"])
		assert.Equal(t, float64(1), got["variant"]["id"])
	})

	t.Run("non-2xx surfaces as APIError", func(t *testing.T) {
		c, shop := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"errors":"Not Found"}`, http.StatusNotFound)
		})

		err := c.UpdateVariantPrice(context.Background(), shop, "tok", 1, "110.00")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})
}

func TestExchangeCode(t *testing.T) {
	c, shop := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/admin/oauth/access_token", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "key", body["client_id"])
		assert.Equal(t, "code123", body["code"])
		fmt.Fprint(w, `{"access_token":"offline-token","scope":"read_products"}`)
	})

	token, scope, err := c.ExchangeCode(context.Background(), shop, "key", "secret", "code123")
	require.NoError(t, err)
	assert.Equal(t, "offline-token", token)
	assert.Equal(t, "read_products", scope)
}

func TestNextPageInfo(t *testing.T) {
	link := `<https://x.myshopify.com/admin/api/2024-01/products.json?page_info=before>; rel="previous", ` +
		`<https://x.myshopify.com/admin/api/2024-01/products.json?page_info=after&limit=250>; rel="next"`
	assert.Equal(t, "after", nextPageInfo(link))
	assert.Equal(t, "", nextPageInfo(""))
	assert.Equal(t, "", nextPageInfo(`<https://x/products.json?page_info=p>; rel="previous"`))
}
