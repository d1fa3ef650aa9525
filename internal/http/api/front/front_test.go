package front

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/mtandao-wifi/hotspot-portal/internal/models"
	"github.com/mtandao-wifi/hotspot-portal/internal/mpesa"
	"github.com/mtandao-wifi/hotspot-portal/internal/payment"
	"github.com/mtandao-wifi/hotspot-portal/internal/session"
	"github.com/mtandao-wifi/hotspot-portal/internal/voucher"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubGateway accepts every push and hands out sequential correlation IDs.
type stubGateway struct {
	calls int
}

func (s *stubGateway) InitiateSTKPush(_ context.Context, _ string, _ float64, _ string) (*mpesa.STKPushResult, error) {
	s.calls++
	return &mpesa.STKPushResult{
		Accepted:          true,
		MerchantRequestID: fmt.Sprintf("m-%d", s.calls),
		CheckoutRequestID: fmt.Sprintf("c-%d", s.calls),
		ResponseCode:      "0",
	}, nil
}

// newTestPortal wires the front API over an in-memory database.
func newTestPortal(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := conn.AutoMigrate(
		&models.Plan{}, &models.Voucher{}, &models.PaymentRequest{}, &models.Session{},
	); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	plan := models.Plan{
		Name:              "Daily Standard",
		Type:              models.PlanTypeDaily,
		Price:             50,
		Currency:          "KES",
		DataLimitMB:       500,
		TimeLimitMinutes:  1440,
		ConcurrentDevices: 1,
		IsActive:          true,
	}
	if errCreate := conn.Create(&plan).Error; errCreate != nil {
		t.Fatalf("seed plan: %v", errCreate)
	}

	issuer := voucher.NewIssuer(conn, 0)
	tracker := payment.NewTracker(conn, issuer)
	payments := payment.NewService(tracker, &stubGateway{})
	guard := session.NewGuard(conn)

	engine := gin.New()
	RegisterFrontRoutes(engine, conn, payments, tracker, guard)
	return engine, conn
}

// doJSON performs one JSON request against the engine.
func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	var decoded map[string]any
	if recorder.Body.Len() > 0 {
		if errUnmarshal := json.Unmarshal(recorder.Body.Bytes(), &decoded); errUnmarshal != nil {
			t.Fatalf("decode response %q: %v", recorder.Body.String(), errUnmarshal)
		}
	}
	return recorder, decoded
}

// callbackBody builds the gateway settlement envelope for a correlation pair.
func callbackBody(merchantID, checkoutID string, resultCode int, desc string) map[string]any {
	cb := map[string]any{
		"MerchantRequestID": merchantID,
		"CheckoutRequestID": checkoutID,
		"ResultCode":        resultCode,
		"ResultDesc":        desc,
	}
	if resultCode == 0 {
		cb["CallbackMetadata"] = map[string]any{
			"Item": []map[string]any{
				{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
			},
		}
	}
	return map[string]any{"Body": map[string]any{"stkCallback": cb}}
}

func TestPurchaseFlowEndToEnd(t *testing.T) {
	engine, _ := newTestPortal(t)

	// The catalog lists the seeded plan.
	recorder, decoded := doJSON(t, engine, http.MethodGet, "/v0/plans", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list plans: status %d", recorder.Code)
	}
	items, ok := decoded["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected 1 plan, got %v", decoded["items"])
	}

	// Initiate the purchase.
	recorder, decoded = doJSON(t, engine, http.MethodPost, "/v0/payments/initiate", map[string]any{
		"plan_id":      1,
		"phone_number": "0712345678",
	})
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("initiate: status %d body %s", recorder.Code, recorder.Body.String())
	}
	reference, _ := decoded["reference"].(string)
	if reference == "" {
		t.Fatal("expected a payment reference")
	}
	if decoded["status"] != "pending" {
		t.Fatalf("status = %v, want pending", decoded["status"])
	}

	// Status stays pending until the callback lands.
	recorder, decoded = doJSON(t, engine, http.MethodGet, "/v0/payments/"+reference, nil)
	if recorder.Code != http.StatusOK || decoded["status"] != "pending" {
		t.Fatalf("pre-callback status: %d %v", recorder.Code, decoded["status"])
	}

	// The gateway settles the payment.
	recorder, _ = doJSON(t, engine, http.MethodPost, "/v0/payments/mpesa/callback",
		callbackBody("m-1", "c-1", 0, "The service request is processed successfully."))
	if recorder.Code != http.StatusOK {
		t.Fatalf("callback: status %d", recorder.Code)
	}

	// The reference now reports completion with a voucher.
	recorder, decoded = doJSON(t, engine, http.MethodGet, "/v0/payments/"+reference, nil)
	if recorder.Code != http.StatusOK || decoded["status"] != "completed" {
		t.Fatalf("post-callback status: %d %v", recorder.Code, decoded["status"])
	}
	voucherPayload, ok := decoded["voucher"].(map[string]any)
	if !ok {
		t.Fatalf("expected voucher in response, got %v", decoded)
	}
	code, _ := voucherPayload["code"].(string)
	if code == "" {
		t.Fatal("expected a voucher code")
	}

	// Redeeming the voucher opens a session with zero usage.
	recorder, decoded = doJSON(t, engine, http.MethodPost, "/v0/vouchers/redeem", map[string]any{
		"code":         code,
		"phone_number": "254712345678",
		"mac_address":  "AA:BB:CC:DD:EE:FF",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("redeem: status %d body %s", recorder.Code, recorder.Body.String())
	}
	if decoded["data_used_mb"] != float64(0) {
		t.Fatalf("data_used_mb = %v, want 0", decoded["data_used_mb"])
	}
	if decoded["plan_name"] != "Daily Standard" {
		t.Fatalf("plan_name = %v", decoded["plan_name"])
	}
}

func TestPurchaseFlowFailedPayment(t *testing.T) {
	engine, conn := newTestPortal(t)

	recorder, decoded := doJSON(t, engine, http.MethodPost, "/v0/payments/initiate", map[string]any{
		"plan_id":      1,
		"phone_number": "0712345678",
	})
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("initiate: status %d", recorder.Code)
	}
	reference, _ := decoded["reference"].(string)

	recorder, _ = doJSON(t, engine, http.MethodPost, "/v0/payments/mpesa/callback",
		callbackBody("m-1", "c-1", 1, "The balance is insufficient for the transaction"))
	if recorder.Code != http.StatusOK {
		t.Fatalf("callback: status %d", recorder.Code)
	}

	recorder, decoded = doJSON(t, engine, http.MethodGet, "/v0/payments/"+reference, nil)
	if recorder.Code != http.StatusOK || decoded["status"] != "failed" {
		t.Fatalf("status: %d %v", recorder.Code, decoded["status"])
	}
	if decoded["note"] != "The balance is insufficient for the transaction" {
		t.Fatalf("note = %v", decoded["note"])
	}

	var vouchers int64
	if errCount := conn.Model(&models.Voucher{}).Count(&vouchers).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if vouchers != 0 {
		t.Fatalf("failed payment produced %d vouchers", vouchers)
	}
}

func TestCallbackDuplicateDeliveryIsAcknowledged(t *testing.T) {
	engine, conn := newTestPortal(t)

	if recorder, _ := doJSON(t, engine, http.MethodPost, "/v0/payments/initiate", map[string]any{
		"plan_id":      1,
		"phone_number": "0712345678",
	}); recorder.Code != http.StatusAccepted {
		t.Fatalf("initiate: status %d", recorder.Code)
	}

	body := callbackBody("m-1", "c-1", 0, "The service request is processed successfully.")
	for i := 0; i < 3; i++ {
		if recorder, _ := doJSON(t, engine, http.MethodPost, "/v0/payments/mpesa/callback", body); recorder.Code != http.StatusOK {
			t.Fatalf("callback %d: status %d", i, recorder.Code)
		}
	}

	var vouchers int64
	if errCount := conn.Model(&models.Voucher{}).Count(&vouchers).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if vouchers != 1 {
		t.Fatalf("expected 1 voucher after redelivery, got %d", vouchers)
	}
}

func TestCallbackUnknownPairStillAcknowledged(t *testing.T) {
	engine, _ := newTestPortal(t)
	recorder, _ := doJSON(t, engine, http.MethodPost, "/v0/payments/mpesa/callback",
		callbackBody("m-x", "c-x", 0, "ok"))
	if recorder.Code != http.StatusOK {
		t.Fatalf("unknown pair must still be acknowledged, got %d", recorder.Code)
	}
}

func TestRedeemErrorMapping(t *testing.T) {
	engine, conn := newTestPortal(t)

	if recorder, _ := doJSON(t, engine, http.MethodPost, "/v0/vouchers/redeem", map[string]any{
		"code": "ZZZ-000",
	}); recorder.Code != http.StatusNotFound {
		t.Fatalf("unknown code: status %d, want 404", recorder.Code)
	}

	issuer := voucher.NewIssuer(conn, 0)
	issued, errIssue := issuer.Issue(context.Background(), voucher.IssueParams{PlanID: 1})
	if errIssue != nil {
		t.Fatalf("issue: %v", errIssue)
	}
	if errUpdate := conn.Model(&models.Voucher{}).Where("id = ?", issued.ID).
		Update("is_active", false).Error; errUpdate != nil {
		t.Fatalf("deactivate: %v", errUpdate)
	}
	if recorder, _ := doJSON(t, engine, http.MethodPost, "/v0/vouchers/redeem", map[string]any{
		"code": issued.Code,
	}); recorder.Code != http.StatusConflict {
		t.Fatalf("inactive code: status %d, want 409", recorder.Code)
	}
}
