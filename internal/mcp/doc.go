// Package mcp implements the Model Context Protocol (MCP) server for ordermgr.
//
// The MCP server exposes the order services to AI assistants as five tools:
//   - list_products: List the catalog
//   - list_orders: List order headers, newest first
//   - get_order: Get one order with its line items
//   - create_order: Create a Pending order
//   - update_order_status: Move an order to Pending, In Progress or Completed
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is enabled with the serve command's --mcp flag and runs next
// to the HTTP API against the same database:
//
//	ordermgr serve --mcp
//
// # Tool: create_order
//
//	Request:
//	{
//	  "name": "create_order",
//	  "arguments": {
//	    "order_number": "ORD-1001",
//	    "date": "2024-05-01",
//	    "products": [
//	      {"product_id": 1, "qty": 3, "total_price": 30}
//	    ]
//	  }
//	}
//
//	Response:
//	{
//	  "id": 7,
//	  "message": "Order created"
//	}
//
// Line totals are recomputed from catalog prices, exactly as for the HTTP
// API; the submitted total_price only has to be present and non-negative.
//
// # Tool: update_order_status
//
//	Request:
//	{
//	  "name": "update_order_status",
//	  "arguments": {"id": 7, "status": "Completed"}
//	}
//
// # Error Handling
//
// Service errors are returned as MCPError values whose Data carries the
// error kind:
//
//	{
//	  "error": {
//	    "code": -32002,
//	    "message": "Order number \"ORD-1001\" already exists",
//	    "data": {"kind": "conflict"}
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing or malformed arguments)
//   - -32603: Internal error (database failures)
//   - -32001: Order or product not found
//   - -32002: Order number already exists
//   - -32003: Order is Completed and cannot be edited
package mcp
