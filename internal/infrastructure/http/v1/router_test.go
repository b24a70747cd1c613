package v1_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finbpo/internal/core/clock"
	appctx "finbpo/internal/core/context"
	"finbpo/internal/domain/accounts"
	"finbpo/internal/domain/accounts/series"
	"finbpo/internal/domain/auth"
	v1 "finbpo/internal/infrastructure/http/v1"
	"finbpo/internal/infrastructure/storage/memory"
	"finbpo/pkg/logger"
)

type api struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newAPI(t *testing.T) *api {
	t.Helper()

	repo := memory.NewAccountRepo()
	txm := memory.NewTxManager()
	fixed := clock.Fixed(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	svc := accounts.NewService(accounts.ServiceConfig{
		Repo:      repo,
		TxManager: txm,
		Audit:     memory.NewAuditLog(),
		Clock:     fixed,
		Policy:    accounts.DefaultPolicy(),
	})
	deps := series.Deps{Accounts: svc, Repo: repo, TxManager: txm, Clock: fixed}

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	token, _, err := jwtService.GenerateAccessToken(appctx.UserContext{UserID: "u1", CompanyID: "company-1"})
	require.NoError(t, err)

	router := v1.NewRouter(v1.RouterConfig{
		Logger:        logger.NewNop(),
		JWTValidator:  jwtService,
		Accounts:      svc,
		Materializer:  series.NewMaterializer(deps),
		SeriesManager: series.NewManager(deps),
		Idempotency:   memory.NewIdempotencyStore(time.Hour),
		Version:       "test",
	})
	return &api{t: t, router: router, token: token}
}

func (a *api) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *api) createRent(months int) map[string]any {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/payables", map[string]any{
		"description": "Office rent",
		"value":       "1500.00",
		"dueDate":     "2024-01-31",
		"recurrence":  map[string]any{"type": "monthly", "dayOfMonth": 31},
		"horizon":     months,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(a.t, w)
}

func memberIDs(m map[string]any) []string {
	ids := []string{m["parent"].(map[string]any)["id"].(string)}
	for _, s := range m["siblings"].([]any) {
		ids = append(ids, s.(map[string]any)["id"].(string))
	}
	return ids
}

func TestRouter_RequiresToken(t *testing.T) {
	a := newAPI(t)
	a.token = ""

	w := a.do(http.MethodGet, "/api/v1/payables", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, w)["code"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_Health(t *testing.T) {
	a := newAPI(t)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health/live", nil).Code)
	w := a.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestRouter_CreateSeries(t *testing.T) {
	a := newAPI(t)

	created := a.createRent(2)
	assert.EqualValues(t, 3, created["total"])
	parent := created["parent"].(map[string]any)
	assert.Equal(t, "payable", parent["kind"])
	assert.Equal(t, "pending", parent["status"])
	assert.Equal(t, "1500", parent["value"])
	siblings := created["siblings"].([]any)
	assert.Equal(t, "2024-02-29", siblings[0].(map[string]any)["dueDate"])
	assert.Equal(t, parent["id"], siblings[0].(map[string]any)["parentAccountId"])

	seriesID := parent["seriesId"].(string)
	w := a.do(http.MethodGet, "/api/v1/payables/series/"+seriesID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 3)

	w = a.do(http.MethodGet, "/api/v1/payables?seriesId="+seriesID+"&orderBy=-due_date&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode(t, w)
	assert.EqualValues(t, 3, list["totalCount"])
	assert.Equal(t, "2024-03-31", list["items"].([]any)[0].(map[string]any)["dueDate"])
}

func TestRouter_RejectsUnplannableSeries(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/api/v1/payables", map[string]any{
		"description": "Equipment lease",
		"value":       "90.00",
		"dueDate":     "2024-01-10",
		"recurrence":  map[string]any{"type": "installments", "installmentCount": 1000000},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])

	w = a.do(http.MethodPost, "/api/v1/payables", map[string]any{
		"description": "One-off repair",
		"value":       "300.00",
		"dueDate":     "2024-01-10",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	unique := decode(t, w)["parent"].(map[string]any)

	w = a.do(http.MethodPost, "/api/v1/payables/"+unique["id"].(string)+"/series", map[string]any{
		"recurrence": map[string]any{"type": "monthly", "dayOfMonth": 10},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])

	w = a.do(http.MethodGet, "/api/v1/payables", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["totalCount"])
}

func TestRouter_WrongKindIsNotFound(t *testing.T) {
	a := newAPI(t)
	created := a.createRent(1)
	parent := created["parent"].(map[string]any)

	w := a.do(http.MethodGet, "/api/v1/receivables/"+parent["id"].(string), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodGet, "/api/v1/receivables/series/"+parent["seriesId"].(string), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodGet, "/api/v1/payables/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])
}

func TestRouter_ReceiptAndSeriesUpdate(t *testing.T) {
	a := newAPI(t)
	ids := memberIDs(a.createRent(3))

	w := a.do(http.MethodPost, "/api/v1/payables/"+ids[0]+"/receipt", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	settled := decode(t, w)
	assert.Equal(t, "paid", settled["status"])
	assert.Equal(t, "2024-03-01", settled["paymentDate"])

	w = a.do(http.MethodPost, "/api/v1/payables/"+ids[0]+"/receipt", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INVALID_STATE", decode(t, w)["code"])

	w = a.do(http.MethodPatch, "/api/v1/payables/"+ids[1]+"/series?scope=all", map[string]any{"value": "1600.00"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.Len(t, res["updated"], 3)
	assert.Len(t, res["skipped"], 1)
	assert.Contains(t, res["message"], "1 already settled")

	w = a.do(http.MethodPatch, "/api/v1/payables/"+ids[1]+"/series?scope=everything", map[string]any{"value": "1.00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/v1/payables/"+ids[0]+"/reverse-receipt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", decode(t, w)["status"])

	w = a.do(http.MethodGet, "/api/v1/payables/"+ids[0]+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["items"])
}

func TestRouter_DeleteSeries(t *testing.T) {
	a := newAPI(t)
	ids := memberIDs(a.createRent(3))

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/payables/"+ids[3]+"/receipt", nil).Code)

	w := a.do(http.MethodDelete, "/api/v1/payables/"+ids[0]+"/series?scope=all", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.EqualValues(t, 3, res["deletedCount"])
	assert.Len(t, res["skipped"], 1)

	w = a.do(http.MethodGet, "/api/v1/payables/"+ids[3], nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, hasParent := decode(t, w)["parentAccountId"]
	assert.False(t, hasParent, "survivor no longer references the deleted parent")

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/v1/payables/"+ids[0], nil).Code)
}

func TestRouter_CloneAndCancel(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodPost, "/api/v1/receivables", map[string]any{
		"description": "Invoice 42",
		"value":       "250.00",
		"dueDate":     "2024-01-31",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	src := decode(t, w)["parent"].(map[string]any)
	srcID := src["id"].(string)

	w = a.do(http.MethodPost, "/api/v1/receivables/"+srcID+"/clone", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	clone := decode(t, w)
	assert.Equal(t, "2024-03-01", clone["dueDate"])
	assert.Equal(t, "pending", clone["status"])
	assert.Nil(t, clone["seriesId"])

	w = a.do(http.MethodPost, "/api/v1/receivables/"+srcID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decode(t, w)["status"])

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/api/v1/receivables/"+srcID, nil).Code)
}

func TestRouter_ExportSeries(t *testing.T) {
	a := newAPI(t)
	seriesID := a.createRent(2)["parent"].(map[string]any)["seriesId"].(string)

	w := a.do(http.MethodGet, "/api/v1/payables/series/"+seriesID+"/export.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestRouter_IdempotentCreate(t *testing.T) {
	a := newAPI(t)
	body := map[string]any{"description": "Invoice 7", "value": "10.00", "dueDate": "2024-04-01"}

	first := a.do(http.MethodPost, "/api/v1/receivables", body, "X-Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := a.do(http.MethodPost, "/api/v1/receivables", body, "X-Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	w := a.do(http.MethodGet, "/api/v1/receivables", nil)
	assert.EqualValues(t, 1, decode(t, w)["totalCount"])

	body["value"] = "11.00"
	w = a.do(http.MethodPost, "/api/v1/receivables", body, "X-Idempotency-Key", "key-1")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_ValidationErrorIsReplayed(t *testing.T) {
	a := newAPI(t)
	body := map[string]any{"description": "Bad", "value": "-1", "dueDate": "2024-04-01"}

	first := a.do(http.MethodPost, "/api/v1/payables", body, "X-Idempotency-Key", "bad-1")
	require.Equal(t, http.StatusBadRequest, first.Code)

	second := a.do(http.MethodPost, "/api/v1/payables", body, "X-Idempotency-Key", "bad-1")
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}
