package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

const (
	defaultDrainLimit = 50
	readyTimeout      = 2 * time.Second
)

// Pinger is a dependency probed by the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	conversation *service.Conversation
	catalog      *service.Catalog
	orders       *service.OrderService
	outbox       port.Outbox
	pingers      map[string]Pinger
	logger       *zap.Logger
}

func NewHTTPHandler(
	conversation *service.Conversation,
	catalog *service.Catalog,
	orders *service.OrderService,
	outbox port.Outbox,
	pingers map[string]Pinger,
	logger *zap.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		conversation: conversation,
		catalog:      catalog,
		orders:       orders,
		outbox:       outbox,
		pingers:      pingers,
		logger:       logger,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type ProductResponse struct {
	Barcode   string          `json:"barcode"`
	Article   string          `json:"article"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Available int             `json:"available"`
}

type CartLineResponse struct {
	Product  ProductResponse `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type PrunedLineResponse struct {
	Key       string `json:"key"`
	Quantity  int    `json:"quantity"`
	Available int    `json:"available"`
	Reason    string `json:"reason"`
}

type CartResponse struct {
	UserID int64                `json:"user_id"`
	Lines  []CartLineResponse   `json:"lines"`
	Pruned []PrunedLineResponse `json:"pruned"`
	Total  decimal.Decimal      `json:"total"`
	Stale  bool                 `json:"stale"`
}

type UpdateStatusRequest struct {
	Status         domain.OrderStatus `json:"status"`
	TrackingNumber *string            `json:"tracking_number,omitempty"`
}

func toProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{
		Barcode:   p.Barcode,
		Article:   p.Article,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Available: p.Available,
	}
}

func toCartResponse(rc *domain.ReconciledCart) CartResponse {
	resp := CartResponse{
		UserID: rc.UserID,
		Lines:  make([]CartLineResponse, 0, len(rc.Lines)),
		Pruned: make([]PrunedLineResponse, 0, len(rc.Pruned)),
		Total:  rc.Total,
		Stale:  rc.Stale,
	}
	for _, l := range rc.Lines {
		resp.Lines = append(resp.Lines, CartLineResponse{
			Product:  toProductResponse(l.Product),
			Quantity: l.Quantity,
			Subtotal: l.Subtotal,
		})
	}
	for _, p := range rc.Pruned {
		resp.Pruned = append(resp.Pruned, PrunedLineResponse{
			Key:       p.Key,
			Quantity:  p.Quantity,
			Available: p.Available,
			Reason:    string(p.Reason),
		})
	}
	return resp
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// checkReady requires a loaded catalog and an answer from every dependency.
func checkReady(ctx context.Context, catalog *service.Catalog, pingers map[string]Pinger) (bool, map[string]string) {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	checks := map[string]string{"catalog": "ok"}
	ready := true
	if !catalog.Status().Loaded {
		checks["catalog"] = "not loaded"
		ready = false
	}
	for name, p := range pingers {
		checks[name] = "ok"
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
		}
	}
	return ready, checks
}

func (h *HTTPHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ready, checks := checkReady(r.Context(), h.catalog, h.pingers)

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ready": ready, "checks": checks})
}

func (h *HTTPHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}

	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ev.Kind == "" {
		writeError(w, http.StatusBadRequest, "missing event type")
		return
	}

	reply, err := h.conversation.Handle(r.Context(), userID, ev)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *HTTPHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultDrainLimit)
	msgs, err := h.outbox.Drain(r.Context(), userID, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}

	rc, err := h.conversation.Cart(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(rc))
}

func (h *HTTPHandler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}

	page, err := h.orders.History(r.Context(), userID, queryInt(r, "page", 1))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *HTTPHandler) FindProducts(w http.ResponseWriter, r *http.Request) {
	found, err := h.catalog.Find(chi.URLParam(r, "query"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	products := make([]ProductResponse, 0, len(found))
	for _, p := range found {
		products = append(products, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(r.URL.Query().Get("status"))

	page, err := h.orders.AdminOrders(r.Context(), status, queryInt(r, "page", 1))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *HTTPHandler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "order_id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, req.Status, req.TrackingNumber)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) AdminReloadCatalog(w http.ResponseWriter, r *http.Request) {
	if _, err := h.catalog.Refresh(r.Context()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.Status())
}

func (h *HTTPHandler) AdminCatalogStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Status())
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrOrderNotFound) || errors.Is(err, domain.ErrProductNotFound) {
		return http.StatusNotFound
	}

	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindDomainConstraint:
		return http.StatusConflict
	case domain.KindStoreUnavailable, domain.KindCatalogUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *HTTPHandler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	kind := domain.KindOf(err)

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", kind.String()),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		if kind == domain.KindUnknown || kind == domain.KindInternalInconsistency {
			msg = "internal error"
		}
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind.String()})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
