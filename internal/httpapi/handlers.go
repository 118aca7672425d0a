package httpapi

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dshills/ordermgr/internal/service"
	"github.com/dshills/ordermgr/internal/storage"
)

const maxBodyBytes = 1 << 20

// --- Request / Response types ---

type productRequest struct {
	Name      *string          `json:"name"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type productResponse struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	UnitPrice json.Number `json:"unit_price"`
}

// lineItemRequest keeps its fields raw so a value of the wrong type is
// reported against the item's index instead of failing the whole body.
// Numbers and numeric strings are both accepted; form selects in the UI
// submit strings.
type lineItemRequest struct {
	ProductID  json.RawMessage `json:"product_id"`
	Qty        json.RawMessage `json:"qty"`
	TotalPrice json.RawMessage `json:"total_price"`
}

type orderRequest struct {
	OrderNumber string            `json:"order_number"`
	Date        string            `json:"date"`
	Products    []lineItemRequest `json:"products"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID          int64       `json:"id"`
	OrderNumber string      `json:"order_number"`
	Date        string      `json:"date"`
	Status      string      `json:"status"`
	NumProducts int         `json:"num_products"`
	FinalPrice  json.Number `json:"final_price"`
}

type lineItemResponse struct {
	ID         int64       `json:"id"`
	OrderID    int64       `json:"order_id"`
	ProductID  int64       `json:"product_id"`
	Qty        int         `json:"qty"`
	TotalPrice json.Number `json:"total_price"`
	Name       string      `json:"name"`
	UnitPrice  json.Number `json:"unit_price"`
}

type orderDetailResponse struct {
	orderResponse
	Products []lineItemResponse `json:"products"`
}

// money renders a price as a JSON number with two decimals
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func toProductResponse(p *storage.Product) productResponse {
	return productResponse{ID: p.ID, Name: p.Name, UnitPrice: money(p.UnitPrice)}
}

func toOrderResponse(o *storage.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Date:        o.Date,
		Status:      o.Status,
		NumProducts: o.NumProducts,
		FinalPrice:  money(o.FinalPrice),
	}
}

func toLineItemInputs(in []lineItemRequest) []service.LineItemInput {
	if in == nil {
		return nil
	}
	out := make([]service.LineItemInput, len(in))
	for i, item := range in {
		out[i] = toLineItemInput(item)
	}
	return out
}

// toLineItemInput never fails. Absent values become zero or nil and values
// of the wrong type become unusable ones (NaN quantity), so the service
// rejects them with the item's index.
func toLineItemInput(item lineItemRequest) service.LineItemInput {
	var in service.LineItemInput

	if text, ok := numericText(item.ProductID); ok {
		in.ProductID, _ = strconv.ParseInt(text, 10, 64)
	}

	if text, ok := numericText(item.Qty); ok {
		qty, err := strconv.ParseFloat(text, 64)
		if err != nil {
			qty = math.NaN()
		}
		in.Qty = qty
	}

	if text, ok := numericText(item.TotalPrice); ok {
		if d, err := decimal.NewFromString(text); err == nil {
			in.TotalPrice = &d
		}
	}
	return in
}

// numericText unwraps a JSON scalar into text for number parsing. ok is
// false for an absent, null or blank value. Strings are unquoted and
// trimmed; any other literal is returned as written and left to the parser
// to reject.
func numericText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	if raw[0] != '"' {
		return string(raw), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// pathID parses {id}. A malformed id can never match a row, so it is
// reported the same way as a missing one.
func pathID(w http.ResponseWriter, r *http.Request, notFoundMsg string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		WriteJSONError(w, http.StatusNotFound, notFoundMsg)
		return 0, false
	}
	return id, true
}

// --- Products ---

func (a *App) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.catalog.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Product not found")
	if !ok {
		return
	}
	p, err := a.catalog.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (a *App) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := a.catalog.Create(r.Context(), service.ProductInput{Name: req.Name, UnitPrice: req.UnitPrice})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (a *App) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Product not found")
	if !ok {
		return
	}
	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := a.catalog.Update(r.Context(), id, service.ProductInput{Name: req.Name, UnitPrice: req.UnitPrice})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (a *App) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Product not found")
	if !ok {
		return
	}
	if err := a.catalog.Delete(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Product deleted"})
}

// --- Orders ---

func (a *App) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.orders.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Order not found")
	if !ok {
		return
	}
	detail, err := a.orders.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	resp := orderDetailResponse{
		orderResponse: toOrderResponse(detail.Order),
		Products:      make([]lineItemResponse, len(detail.Items)),
	}
	for i, item := range detail.Items {
		resp.Products[i] = lineItemResponse{
			ID:         item.ID,
			OrderID:    item.OrderID,
			ProductID:  item.ProductID,
			Qty:        item.Qty,
			TotalPrice: money(item.TotalPrice),
			Name:       item.ProductName,
			UnitPrice:  money(item.UnitPrice),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := a.orders.Create(r.Context(), service.CreateOrderInput{
		OrderNumber: req.OrderNumber,
		Date:        req.Date,
		Items:       toLineItemInputs(req.Products),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, message{ID: id, Message: "Order created"})
}

func (a *App) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Order not found")
	if !ok {
		return
	}
	var req orderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := a.orders.Update(r.Context(), id, service.UpdateOrderInput{
		OrderNumber: req.OrderNumber,
		Items:       toLineItemInputs(req.Products),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{ID: id, Message: "Order updated"})
}

func (a *App) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Order not found")
	if !ok {
		return
	}
	if err := a.orders.Delete(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Order deleted"})
}

func (a *App) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Order not found")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.orders.SetStatus(r.Context(), id, req.Status); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "Status updated"})
}
