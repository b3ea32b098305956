package presentation

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/RaikyD/merch-pickup-service/internal/application"
	"github.com/RaikyD/merch-pickup-service/internal/domain"
	"github.com/RaikyD/merch-pickup-service/internal/logger"
	"github.com/RaikyD/merch-pickup-service/internal/presentation/helpers"
	"github.com/RaikyD/merch-pickup-service/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// OrderPublisher hands new orders to the ingestion topic.
type OrderPublisher interface {
	PublishOrder(ctx context.Context, o domain.Order) error
}

type OrdersHandler struct {
	svc  *application.OrdersService
	prod OrderPublisher
}

// NewOrdersHandler builds the order endpoints. prod may be nil, then orders
// are stored directly instead of going through kafka.
func NewOrdersHandler(svc *application.OrdersService, prod OrderPublisher) *OrdersHandler {
	return &OrdersHandler{svc: svc, prod: prod}
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders", h.ListOrders)
	r.Get("/orders/{code}", h.GetOrderByCode)
	r.Post("/orders/generate", h.GenerateOrders)
	r.Get("/releases", h.ListReleases)
	r.Get("/dashboard", h.Dashboard)
}

// three accepted bodies:
// - application/json:    the order object itself
// - text/plain:          a string holding order JSON
// - multipart/form-data: a .json file in field "file"
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	mediatype, params, _ := mime.ParseMediaType(ct)

	var ord domain.Order
	var readErr error

	switch mediatype {
	case "application/json":
		readErr = helpers.DecodeJSON(r.Body, &ord)

	case "text/plain":
		raw, err := io.ReadAll(io.LimitReader(r.Body, 2<<20))
		if err != nil {
			readErr = err
			break
		}
		readErr = json.Unmarshal(raw, &ord)

	case "multipart/form-data":
		mr := multipart.NewReader(r.Body, params["boundary"])
		found := false
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				readErr = err
				break
			}
			if part.FormName() != "file" {
				continue
			}
			found = true
			bufr := bufio.NewReader(io.LimitReader(part, 2<<20))
			readErr = helpers.DecodeJSON(bufr, &ord)
			_ = part.Close()
			break
		}
		if !found && readErr == nil {
			readErr = errors.New(`multipart field "file" is missing`)
		}
	default:
		helpers.HttpError(w, http.StatusUnsupportedMediaType, "unsupported content-type")
		return
	}

	if readErr != nil {
		helpers.HttpError(w, http.StatusBadRequest, "invalid JSON: "+readErr.Error())
		return
	}

	ord.Normalize()
	if err := ord.Validate(); err != nil {
		helpers.HttpError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.prod != nil {
		if err := h.prod.PublishOrder(r.Context(), ord); err != nil {
			logger.Warn("publish order failed", "code", ord.OrderCode, "err", err)
			helpers.HttpError(w, http.StatusBadGateway, "failed to queue order")
			return
		}
		helpers.WriteJSON(w, http.StatusAccepted, map[string]any{
			"status":     "queued",
			"order_code": ord.OrderCode,
		})
		return
	}

	if err := h.svc.AddOrder(r.Context(), &ord); err != nil {
		if errors.Is(err, application.ErrOrderAlreadyExists) {
			helpers.HttpError(w, http.StatusConflict, "order already exists")
			return
		}
		helpers.HttpError(w, http.StatusInternalServerError, "failed to add order")
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, map[string]any{
		"status":     "ok",
		"order_code": ord.OrderCode,
		"order_id":   ord.OrderID,
	})
}

func (h *OrdersHandler) GetOrderByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if strings.TrimSpace(code) == "" {
		helpers.HttpError(w, http.StatusBadRequest, "code is empty")
		return
	}

	ord, err := h.svc.GetOrderByCode(r.Context(), code)
	if errors.Is(err, repository.ErrOrderNotFound) {
		helpers.HttpError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		helpers.HttpError(w, http.StatusInternalServerError, "failed to get order")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, ord)
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.OrderFilter{
		Status:            domain.OrderStatus(q.Get("status")),
		OwnerIdentityCode: q.Get("owner"),
		Department:        q.Get("department"),
	}
	if f.Status != "" && !f.Status.Valid() {
		helpers.HttpError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", f.Status))
		return
	}
	limit, ok := parseLimit(q.Get("limit"))
	if !ok {
		helpers.HttpError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	f.Limit = limit

	list, err := h.svc.ListOrders(r.Context(), f)
	if err != nil {
		helpers.HttpError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"orders": list,
		"count":  len(list),
	})
}

func (h *OrdersHandler) ListReleases(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		helpers.HttpError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	recs, err := h.svc.ListReleases(r.Context(), limit)
	if err != nil {
		helpers.HttpError(w, http.StatusInternalServerError, "failed to list releases")
		return
	}
	if recs == nil {
		recs = []domain.ReleaseRecord{}
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"releases": recs})
}

func (h *OrdersHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		helpers.HttpError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}
	helpers.WriteJSON(w, http.StatusOK, sum)
}

func (h *OrdersHandler) GenerateOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("count")
	n := 1
	if q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 && v <= 1000 {
			n = v
		}
	}

	var created []string
	for i := 0; i < n; i++ {
		o := genDemoOrder(i)
		if err := h.svc.AddOrder(r.Context(), &o); err != nil {
			if !errors.Is(err, application.ErrOrderAlreadyExists) {
				logger.Warn("generate: add failed", "err", err)
			}
			continue
		}
		created = append(created, o.OrderCode)
	}

	helpers.WriteJSON(w, http.StatusCreated, map[string]any{
		"status":        "ok",
		"created_codes": created,
	})
}

// parseLimit returns 0 for an empty value.
func parseLimit(s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

var demoItems = []domain.Item{
	{Name: "Campus Hoodie", Quantity: 1, UnitPrice: decimal.RequireFromString("450.00"), Size: "M", Color: "Navy"},
	{Name: "Logo T-Shirt", Quantity: 1, UnitPrice: decimal.RequireFromString("180.00"), Size: "L", Color: "White"},
	{Name: "Enamel Mug", Quantity: 1, UnitPrice: decimal.RequireFromString("95.00")},
	{Name: "Tote Bag", Quantity: 1, UnitPrice: decimal.RequireFromString("120.00"), Color: "Natural"},
}

func genDemoOrder(seq int) domain.Order {
	now := time.Now().UTC()
	ident := fmt.Sprintf("S%06d", (now.UnixNano()/1000+int64(seq))%1_000_000)
	item := demoItems[seq%len(demoItems)]
	return domain.Order{
		OrderCode:         fmt.Sprintf("MERCH-DEMO%d-%s", now.UnixNano()+int64(seq), ident),
		OwnerIdentityCode: ident,
		OwnerName:         "Demo Student",
		Department:        "General Studies",
		Status:            domain.StatusReadyForPickup,
		Items:             []domain.Item{item},
		Total:             item.Subtotal(),
		RemainingBalance:  decimal.Zero,
		CreatedAt:         now,
	}
}
