package mcp

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/ordermgr/internal/obs"
	"github.com/dshills/ordermgr/internal/service"
	"github.com/dshills/ordermgr/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "ordermgr"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Catalog is the subset of the product service the tools need
type Catalog interface {
	List(ctx context.Context) ([]*storage.Product, error)
}

// Orders is the subset of the order service the tools need
type Orders interface {
	Create(ctx context.Context, in service.CreateOrderInput) (int64, error)
	SetStatus(ctx context.Context, orderID int64, status string) error
	Get(ctx context.Context, orderID int64) (*service.OrderDetail, error)
	List(ctx context.Context) ([]*storage.Order, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	catalog Catalog
	orders  Orders
	logger  *slog.Logger
}

// NewServer creates a new MCP server exposing the order tools
func NewServer(catalog Catalog, orders Orders, logger *slog.Logger) *Server {
	if logger == nil {
		logger = obs.Discard()
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		catalog: catalog,
		orders:  orders,
		logger:  logger,
	}
	s.registerTools()
	return s
}

// Serve speaks MCP over in/out until ctx is cancelled or in is closed
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.InfoContext(ctx, "mcp_serving", "transport", "stdio")
	return stdio.Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(listProductsTool(), s.handleListProducts)
	s.mcp.AddTool(listOrdersTool(), s.handleListOrders)
	s.mcp.AddTool(getOrderTool(), s.handleGetOrder)
	s.mcp.AddTool(createOrderTool(), s.handleCreateOrder)
	s.mcp.AddTool(updateOrderStatusTool(), s.handleUpdateOrderStatus)
}
