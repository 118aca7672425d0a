package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/dshills/ordermgr/internal/service"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound      = -32001 // Order or product does not exist
	ErrorCodeConflict      = -32002 // Order number already taken
	ErrorCodeInvalidState  = -32003 // Order is Completed and cannot be edited
)

// handleListProducts handles the list_products tool invocation
func (s *Server) handleListProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	products, err := s.catalog.List(ctx)
	if err != nil {
		return nil, s.serviceError(ctx, "list_products", err)
	}

	items := make([]map[string]interface{}, len(products))
	for i, p := range products {
		items[i] = map[string]interface{}{
			"id":         p.ID,
			"name":       p.Name,
			"unit_price": money(p.UnitPrice),
		}
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"products": items})), nil
}

// handleListOrders handles the list_orders tool invocation
func (s *Server) handleListOrders(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, s.serviceError(ctx, "list_orders", err)
	}

	items := make([]map[string]interface{}, len(orders))
	for i, o := range orders {
		items[i] = map[string]interface{}{
			"id":           o.ID,
			"order_number": o.OrderNumber,
			"date":         o.Date,
			"status":       o.Status,
			"num_products": o.NumProducts,
			"final_price":  money(o.FinalPrice),
		}
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"orders": items})), nil
}

// handleGetOrder handles the get_order tool invocation
func (s *Server) handleGetOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireID(args)
	if err != nil {
		return nil, err
	}

	detail, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, s.serviceError(ctx, "get_order", err)
	}

	lines := make([]map[string]interface{}, len(detail.Items))
	for i, item := range detail.Items {
		lines[i] = map[string]interface{}{
			"id":          item.ID,
			"product_id":  item.ProductID,
			"name":        item.ProductName,
			"qty":         item.Qty,
			"unit_price":  money(item.UnitPrice),
			"total_price": money(item.TotalPrice),
		}
	}

	response := map[string]interface{}{
		"id":           detail.ID,
		"order_number": detail.OrderNumber,
		"date":         detail.Date,
		"status":       detail.Status,
		"num_products": detail.NumProducts,
		"final_price":  money(detail.FinalPrice),
		"products":     lines,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleCreateOrder handles the create_order tool invocation
func (s *Server) handleCreateOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	in := service.CreateOrderInput{
		OrderNumber: getStringDefault(args, "order_number", ""),
		Date:        getStringDefault(args, "date", ""),
	}
	if raw, present := args["products"]; present {
		list, ok := raw.([]interface{})
		if !ok {
			return nil, newMCPError(ErrorCodeInvalidParams, "products must be an array", map[string]interface{}{
				"param": "products",
			})
		}
		in.Items = make([]service.LineItemInput, len(list))
		for i, entry := range list {
			obj, _ := entry.(map[string]interface{})
			in.Items[i] = lineItemFromArgs(obj)
		}
	}

	id, err := s.orders.Create(ctx, in)
	if err != nil {
		return nil, s.serviceError(ctx, "create_order", err)
	}

	response := map[string]interface{}{
		"id":      id,
		"message": "Order created",
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleUpdateOrderStatus handles the update_order_status tool invocation
func (s *Server) handleUpdateOrderStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireID(args)
	if err != nil {
		return nil, err
	}

	if err := s.orders.SetStatus(ctx, id, getStringDefault(args, "status", "")); err != nil {
		return nil, s.serviceError(ctx, "update_order_status", err)
	}

	response := map[string]interface{}{
		"id":      id,
		"message": "Status updated",
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// serviceError maps a service error kind onto an MCP error code
func (s *Server) serviceError(ctx context.Context, tool string, err error) error {
	kind := service.KindOf(err)
	code := ErrorCodeInternalError
	switch kind {
	case service.KindInvalidInput:
		code = ErrorCodeInvalidParams
	case service.KindNotFound:
		code = ErrorCodeNotFound
	case service.KindConflict:
		code = ErrorCodeConflict
	case service.KindInvalidState:
		code = ErrorCodeInvalidState
	default:
		s.logger.ErrorContext(ctx, "mcp_tool_failed", "tool", tool, "error", err)
	}
	return newMCPError(code, err.Error(), map[string]interface{}{"kind": kind.String()})
}

// requireID extracts a positive integer "id" argument
func requireID(args map[string]interface{}) (int64, error) {
	id := getInt64Default(args, "id", 0)
	if id <= 0 {
		return 0, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or not a positive integer",
		})
	}
	return id, nil
}

// lineItemFromArgs converts one products entry. Missing or malformed values
// are left zero so the service reports them with the item's index.
func lineItemFromArgs(obj map[string]interface{}) service.LineItemInput {
	item := service.LineItemInput{
		ProductID: getInt64Default(obj, "product_id", 0),
		Qty:       getFloatDefault(obj, "qty", 0),
	}
	switch v := obj["total_price"].(type) {
	case float64:
		d := decimal.NewFromFloat(v)
		item.TotalPrice = &d
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			item.TotalPrice = &d
		}
	}
	return item
}

// money renders a price with two decimals
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getInt64Default extracts an integer parameter with a default value.
// Numeric strings are accepted.
func getInt64Default(args map[string]interface{}, key string, defaultValue int64) int64 {
	switch v := args[key].(type) {
	case float64:
		if v == float64(int64(v)) {
			return int64(v)
		}
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

// getFloatDefault extracts a numeric parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
