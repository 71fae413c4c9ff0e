package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type applierStub struct {
	calls []struct {
		id   string
		code int
	}
	err error
}

func (a *applierStub) ApplyCallback(ctx context.Context, checkoutRequestID string, resultCode int) error {
	a.calls = append(a.calls, struct {
		id   string
		code int
	}{checkoutRequestID, resultCode})
	return a.err
}

func postCallback(t *testing.T, applier *applierStub, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewPaymentHandler(applier, zerolog.Nop())
	r.POST("/callback", h.MpesaCallback)

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMpesaCallbackAppliesResult(t *testing.T) {
	applier := &applierStub{}
	body := `{"Body":{"stkCallback":{"MerchantRequestID":"mr-1","CheckoutRequestID":"co-1","ResultCode":0,"ResultDesc":"Success"}}}`

	w := postCallback(t, applier, body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Success"}`, w.Body.String())
	require.Len(t, applier.calls, 1)
	assert.Equal(t, "co-1", applier.calls[0].id)
	assert.Equal(t, 0, applier.calls[0].code)
}

func TestMpesaCallbackMalformedBodyStillAcked(t *testing.T) {
	applier := &applierStub{}

	w := postCallback(t, applier, `{"Body": not json`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Success"}`, w.Body.String())
	assert.Empty(t, applier.calls)
}

func TestMpesaCallbackApplierErrorStillAcked(t *testing.T) {
	applier := &applierStub{err: errors.New("database down")}
	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"co-1","ResultCode":1032,"ResultDesc":"Cancelled by user"}}}`

	w := postCallback(t, applier, body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Success"}`, w.Body.String())
	require.Len(t, applier.calls, 1)
	assert.Equal(t, 1032, applier.calls[0].code)
}
