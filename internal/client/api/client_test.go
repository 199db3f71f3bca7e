package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, 5*time.Second, testLogger())
}

func TestToken_Success(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "alice", r.PostFormValue("username"))
		require.Equal(t, "secret", r.PostFormValue("password"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer"}`))
	}))

	tok, err := c.Token(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)
}

func TestToken_Unauthorized(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Incorrect username or password"}`, http.StatusUnauthorized)
	}))

	_, err := c.Token(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrorUnauthorized))
}

func TestGetCart_ParsesItemsAndTotals(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"items":[{"product_id":1,"quantity":2,"name":"mug","price":9.5}],
			"subtotal":19.0,"shipping":5.0,"total":24.0}`))
	}))

	cart, err := c.GetCart(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(1), cart.Items[0].ProductID)
	assert.Equal(t, int64(2), cart.Items[0].Quantity)
	assert.InDelta(t, 24.0, cart.Total, 1e-9)
}

func TestDoJSON_StatusErrorCarriesCodeAndBody(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database not configured", http.StatusInternalServerError)
	}))

	_, err := c.GetCart(context.Background(), "tok")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Contains(t, statusErr.Body, "database not configured")
}

func TestRemoveCartItem_SendsQuantityQuery(t *testing.T) {
	var gotPath, gotQuery string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, c.RemoveCartItem(context.Background(), "tok", 7, 1))
	assert.Equal(t, "/cart/items/7", gotPath)
	assert.Equal(t, "quantity=1", gotQuery)
}

func TestCreateOrder_SeedsIDAndStatus(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":42,"status":"PENDING_PAYMENT"}`))
	}))

	order, err := c.CreateOrder(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(42), order.ID)
	assert.Equal(t, "PENDING_PAYMENT", string(order.Status))
}

func TestGetOrder_NotFound(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Order not found"}`, http.StatusNotFound)
	}))

	_, err := c.GetOrder(context.Background(), "tok", 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrOrderNotFound))
}

func TestPay_ReturnsRawStatusAndBody(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"result":"PENDING"}`))
	}))

	code, body, err := c.Pay(context.Background(), "tok", 42, "mock")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, code)
	assert.JSONEq(t, `{"result":"PENDING"}`, string(body))
}

func TestPay_TransportFailure(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", time.Second, testLogger())
	_, _, err := c.Pay(context.Background(), "tok", 42, "mock")
	require.Error(t, err)
}
