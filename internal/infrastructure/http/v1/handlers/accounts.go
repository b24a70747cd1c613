package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"finbpo/internal/core/apperror"
	"finbpo/internal/core/id"
	"finbpo/internal/core/types"
	"finbpo/internal/domain/accounts"
	"finbpo/internal/domain/accounts/recurrence"
	"finbpo/internal/domain/accounts/series"
	"finbpo/internal/infrastructure/export"
	"finbpo/internal/infrastructure/http/v1/dto"
	"finbpo/internal/observability/metrics"
)

const defaultHistoryLimit = 50

// AccountHandler serves one account kind. Receivables and payables share the
// implementation and are mounted under their own route groups.
type AccountHandler struct {
	*BaseHandler
	kind         accounts.Kind
	service      *accounts.Service
	materializer *series.Materializer
	manager      *series.Manager
}

// NewAccountHandler creates a handler for accounts of the given kind.
func NewAccountHandler(
	base *BaseHandler,
	kind accounts.Kind,
	service *accounts.Service,
	materializer *series.Materializer,
	manager *series.Manager,
) *AccountHandler {
	return &AccountHandler{
		BaseHandler:  base,
		kind:         kind,
		service:      service,
		materializer: materializer,
		manager:      manager,
	}
}

// RegisterRoutes mounts the handler on rg.
func (h *AccountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/series/:seriesId", h.ListSeries)
	rg.GET("/series/:seriesId/export.xlsx", h.ExportSeries)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.GET("/:id/history", h.History)
	rg.POST("/:id/receipt", h.ProcessReceipt)
	rg.POST("/:id/reverse-receipt", h.ReverseReceipt)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/clone", h.Clone)
	rg.POST("/:id/series", h.Materialize)
	rg.PATCH("/:id/series", h.UpdateSeries)
	rg.DELETE("/:id/series", h.DeleteSeries)
}

// load fetches the account named by the :id parameter. Accounts of the other
// kind are reported as missing.
func (h *AccountHandler) load(c *gin.Context) (*accounts.Account, bool) {
	accountID, ok := h.ParseID(c, "id")
	if !ok {
		return nil, false
	}
	a, err := h.service.Get(c.Request.Context(), accountID)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	if a.Kind != h.kind {
		h.Error(c, apperror.NewNotFound(string(h.kind), accountID))
		return nil, false
	}
	return a, true
}

// List handles GET /{kind}.
func (h *AccountHandler) List(c *gin.Context) {
	var q dto.ListAccountsQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := accounts.ListFilter{
		Kind:    h.kind,
		Status:  accounts.Status(q.Status),
		OrderBy: q.OrderBy,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	if q.SeriesID != "" {
		seriesID, err := id.Parse(q.SeriesID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "seriesId"))
			return
		}
		filter.SeriesID = &seriesID
	}
	var err error
	if filter.DueFrom, err = parseDateQuery(q.DueFrom, "dueFrom"); err != nil {
		h.Error(c, err)
		return
	}
	if filter.DueTo, err = parseDateQuery(q.DueTo, "dueTo"); err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse[dto.AccountResponse]{
		Items:      dto.FromAccounts(result.Items),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Get handles GET /{kind}/:id.
func (h *AccountHandler) Get(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.FromAccount(a))
}

// Create handles POST /{kind}. A request with a recurrence creates the whole
// series in one transaction.
func (h *AccountHandler) Create(c *gin.Context) {
	var req dto.CreateAccountRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cfg, err := req.RecurrenceConfig()
	if err != nil {
		h.Error(c, err)
		return
	}

	m, err := h.materializer.Create(c.Request.Context(), req.ToEntity(h.kind), cfg, req.Horizon)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromMaterialized(m))
}

// Update handles PUT /{kind}/:id.
func (h *AccountHandler) Update(c *gin.Context) {
	var patch dto.UpdateAccountRequest
	if !h.BindJSON(c, &patch) {
		return
	}
	a, ok := h.load(c)
	if !ok {
		return
	}

	updated, err := h.service.Update(c.Request.Context(), a.ID, patch)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAccount(updated))
}

// Delete handles DELETE /{kind}/:id.
func (h *AccountHandler) Delete(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), a.ID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// History handles GET /{kind}/:id/history.
func (h *AccountHandler) History(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	entries, err := h.service.History(c.Request.Context(), a.ID, h.ParseIntQuery(c, "limit", defaultHistoryLimit))
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromHistory(entries))
}

// ProcessReceipt handles POST /{kind}/:id/receipt. An empty body settles the
// full value today.
func (h *AccountHandler) ProcessReceipt(c *gin.Context) {
	var req dto.ReceiptRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	h.transition(c, func(a *accounts.Account) (*accounts.Account, error) {
		return h.service.ProcessReceipt(c.Request.Context(), a.ID, req)
	})
}

// ReverseReceipt handles POST /{kind}/:id/reverse-receipt.
func (h *AccountHandler) ReverseReceipt(c *gin.Context) {
	h.transition(c, func(a *accounts.Account) (*accounts.Account, error) {
		return h.service.ReverseReceipt(c.Request.Context(), a.ID)
	})
}

// Cancel handles POST /{kind}/:id/cancel.
func (h *AccountHandler) Cancel(c *gin.Context) {
	h.transition(c, func(a *accounts.Account) (*accounts.Account, error) {
		return h.service.Cancel(c.Request.Context(), a.ID)
	})
}

// Clone handles POST /{kind}/:id/clone.
func (h *AccountHandler) Clone(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	clone, err := h.service.CloneAccount(c.Request.Context(), a.ID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromAccount(clone))
}

func (h *AccountHandler) transition(c *gin.Context, fn func(*accounts.Account) (*accounts.Account, error)) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	updated, err := fn(a)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromAccount(updated))
}

// Materialize handles POST /{kind}/:id/series.
func (h *AccountHandler) Materialize(c *gin.Context) {
	var req dto.MaterializeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cfg, err := recurrence.FromSpec(req.Recurrence)
	if err != nil {
		h.Error(c, err)
		return
	}
	a, ok := h.load(c)
	if !ok {
		return
	}

	m, err := h.materializer.Materialize(c.Request.Context(), a, cfg, req.Horizon)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromMaterialized(m))
}

// UpdateSeries handles PATCH /{kind}/:id/series?scope=.
func (h *AccountHandler) UpdateSeries(c *gin.Context) {
	scope, err := series.ParseScope(c.DefaultQuery("scope", string(series.ScopeCurrent)))
	if err != nil {
		h.Error(c, err)
		return
	}
	var patch dto.UpdateAccountRequest
	if !h.BindJSON(c, &patch) {
		return
	}
	a, ok := h.load(c)
	if !ok {
		return
	}

	result, err := h.manager.UpdateSeries(c.Request.Context(), a.ID, patch, scope)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromUpdateResult(result))
}

// DeleteSeries handles DELETE /{kind}/:id/series?scope=.
func (h *AccountHandler) DeleteSeries(c *gin.Context) {
	scope, err := series.ParseScope(c.DefaultQuery("scope", string(series.ScopeCurrent)))
	if err != nil {
		h.Error(c, err)
		return
	}
	a, ok := h.load(c)
	if !ok {
		return
	}

	result, err := h.manager.DeleteSeries(c.Request.Context(), a.ID, scope)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDeleteResult(result))
}

// ListSeries handles GET /{kind}/series/:seriesId.
func (h *AccountHandler) ListSeries(c *gin.Context) {
	seriesID, members, ok := h.loadSeries(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.SeriesMembersResponse{
		SeriesID: seriesID.String(),
		Items:    dto.FromAccounts(members),
	})
}

// ExportSeries handles GET /{kind}/series/:seriesId/export.xlsx.
func (h *AccountHandler) ExportSeries(c *gin.Context) {
	seriesID, members, ok := h.loadSeries(c)
	if !ok {
		return
	}

	data, err := export.SeriesXLSX(members)
	metrics.IncExport("xlsx", metrics.Result(err))
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	h.File(c, export.ContentTypeXLSX, fmt.Sprintf("%s-series-%s.xlsx", h.kind, seriesID), data)
}

func (h *AccountHandler) loadSeries(c *gin.Context) (id.ID, []*accounts.Account, bool) {
	seriesID, ok := h.ParseID(c, "seriesId")
	if !ok {
		return id.ID{}, nil, false
	}
	members, err := h.service.ListSeries(c.Request.Context(), seriesID)
	if err != nil {
		h.Error(c, err)
		return id.ID{}, nil, false
	}
	if len(members) == 0 || members[0].Kind != h.kind {
		h.Error(c, apperror.NewNotFound("series", seriesID))
		return id.ID{}, nil, false
	}
	return seriesID, members, true
}

func parseDateQuery(v, field string) (*types.Date, error) {
	if v == "" {
		return nil, nil
	}
	d, err := types.ParseDate(v)
	if err != nil {
		return nil, apperror.NewValidation("invalid date, expected YYYY-MM-DD").
			WithDetail("field", field).
			WithDetail("value", v)
	}
	return &d, nil
}
