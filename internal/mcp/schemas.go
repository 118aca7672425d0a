package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// listProductsTool returns the tool definition for list_products
func listProductsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_products",
		Description: "List every product in the catalog with its unit price",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// listOrdersTool returns the tool definition for list_orders
func listOrdersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_orders",
		Description: "List order headers, newest order date first",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getOrderTool returns the tool definition for get_order
func getOrderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_order",
		Description: "Get one order with its line items",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "integer",
					"description": "Order id",
					"minimum":     1,
				},
			},
			Required: []string{"id"},
		},
	}
}

// createOrderTool returns the tool definition for create_order
func createOrderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "create_order",
		Description: "Create a Pending order. Line totals are recomputed from catalog prices.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"order_number": map[string]interface{}{
					"type":        "string",
					"description": "Unique human-facing order number",
				},
				"date": map[string]interface{}{
					"type":        "string",
					"description": "Order date (YYYY-MM-DD)",
				},
				"products": map[string]interface{}{
					"type":        "array",
					"description": "Line items",
					"minItems":    1,
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"product_id": map[string]interface{}{
								"type": "integer",
							},
							"qty": map[string]interface{}{
								"type":    "integer",
								"minimum": 1,
							},
							"total_price": map[string]interface{}{
								"type":    "number",
								"minimum": 0,
							},
						},
						"required": []string{"product_id", "qty", "total_price"},
					},
				},
			},
			Required: []string{"order_number", "date", "products"},
		},
	}
}

// updateOrderStatusTool returns the tool definition for update_order_status
func updateOrderStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_order_status",
		Description: "Set an order's status. Any status may move to any other.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "integer",
					"description": "Order id",
					"minimum":     1,
				},
				"status": map[string]interface{}{
					"type": "string",
					"enum": []string{"Pending", "In Progress", "Completed"},
				},
			},
			Required: []string{"id", "status"},
		},
	}
}
