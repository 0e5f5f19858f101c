package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"salonshop/config"
	"salonshop/pkg/payment"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestEngine(t *testing.T, rateLimit int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cfg := config.Load()
	cfg.Server.RateLimit = rateLimit
	cfg.Admin.Email = ""
	cfg.Firebase.ServiceAccountPath = ""
	return Setup(cfg, db, Deps{Gateway: payment.NewStubGateway(3)})
}

const callbackBody = `{"Body":{"stkCallback":{"MerchantRequestID":"m1","CheckoutRequestID":"ws_CO_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`

func TestCallbacksAreNotRateLimited(t *testing.T) {
	const limit = 5
	r := newTestEngine(t, limit)

	for i := 0; i < limit*3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mpesa", strings.NewReader(callbackBody))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "196.201.214.200:443"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "callback %d", i+1)
		assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, w.Body.String())
	}
}

func TestCustomerRoutesAreRateLimited(t *testing.T) {
	const limit = 3
	r := newTestEngine(t, limit)

	var codes []int
	for i := 0; i < limit+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/mpesa/query", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "41.90.1.2:5000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	for _, c := range codes[:limit] {
		assert.NotEqual(t, http.StatusTooManyRequests, c)
	}
	assert.Equal(t, http.StatusTooManyRequests, codes[limit])
}
