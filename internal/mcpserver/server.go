// Package mcpserver exposes the expense service as MCP tools and resources.
package mcpserver

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shopspring/decimal"

	"expenses/internal/catalog"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/report"
	"expenses/internal/services"
)

const (
	Version = "0.1.0"

	ToolAddExpense        = "add_expense"
	ToolListExpenses      = "list_expenses_by_date"
	ToolSummarizeExpenses = "summarize_expenses"

	CategoriesURI = "expense://categories"
)

// Service is the expense API the tools delegate to.
type Service interface {
	Add(ctx context.Context, req services.AddRequest) (core.Expense, error)
	List(ctx context.Context, start, end string) (services.ListResult, error)
	SumCategory(ctx context.Context, start, end, category string) (core.DateRange, decimal.Decimal, error)
	Summarize(ctx context.Context, start, end string) (services.SummaryResult, error)
	Categories(ctx context.Context) (catalog.Document, error)
}

type handlers struct {
	svc    Service
	logger *log.Logger
}

// New builds an MCP server with the expense tools and the categories resource.
func New(name string, svc Service, logger *log.Logger) *server.MCPServer {
	if logger == nil {
		logger = log.Discard()
	}
	h := &handlers{svc: svc, logger: logger.WithComponent(log.ComponentMCP)}

	s := server.NewMCPServer(name, Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool(ToolAddExpense,
		mcp.WithDescription("Add a new expense entry to the database."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Expense date, YYYY-MM-DD")),
		mcp.WithNumber("amount", mcp.Required(), mcp.Description("Expense amount")),
		mcp.WithString("category", mcp.Required(), mcp.Description("Expense category")),
		mcp.WithString("sub_category", mcp.Description("Optional sub-category")),
		mcp.WithString("note", mcp.Description("Optional free-text note")),
	), h.instrument(ToolAddExpense, h.addExpense))

	s.AddTool(mcp.NewTool(ToolListExpenses,
		mcp.WithDescription("List expense entries within an inclusive date range."),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("First day, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("Last day, YYYY-MM-DD")),
	), h.instrument(ToolListExpenses, h.listExpenses))

	s.AddTool(mcp.NewTool(ToolSummarizeExpenses,
		mcp.WithDescription("Summarize expenses by category within an inclusive date range."),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("First day, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("Last day, YYYY-MM-DD")),
		mcp.WithString("category", mcp.Description("Restrict the total to one category")),
	), h.instrument(ToolSummarizeExpenses, h.summarizeExpenses))

	s.AddResource(mcp.NewResource(CategoriesURI, "categories",
		mcp.WithResourceDescription("Category and sub-category catalog"),
		mcp.WithMIMEType(catalog.MIMEType),
	), h.categories)

	return s
}

// instrument logs every tool call with its outcome and duration.
func (h *handlers) instrument(tool string, next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := next(ctx, req)

		args := []any{
			log.FieldTool, tool,
			log.FieldDuration, time.Since(start).Milliseconds(),
		}
		if id := log.RequestID(ctx); id != "" {
			args = append(args, log.FieldRequestID, id)
		}
		switch {
		case err != nil:
			args = append(args, log.FieldError, err, log.FieldErrorKind, core.KindOf(err))
			h.logger.ErrorContext(ctx, "Tool call failed", args...)
		case res != nil && res.IsError:
			h.logger.WarnContext(ctx, "Tool call returned an error result", args...)
		default:
			h.logger.DebugContext(ctx, "Tool call completed", args...)
		}
		return res, err
	}
}

// addExpense never faults: failures are reported as an error result.
func (h *handlers) addExpense(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	e, err := h.svc.Add(ctx, services.AddRequest{
		Date:        req.GetString("date", ""),
		Amount:      args["amount"],
		Category:    req.GetString("category", ""),
		SubCategory: req.GetString("sub_category", ""),
		Note:        req.GetString("note", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(report.AddFailed(err)), nil
	}
	return mcp.NewToolResultText(report.Added(e)), nil
}

func (h *handlers) listExpenses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := requireRange(req)
	if err != nil {
		return nil, err
	}
	res, err := h.svc.List(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(report.ExpenseList(res.Range, res.Expenses)), nil
}

func (h *handlers) summarizeExpenses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := requireRange(req)
	if err != nil {
		return nil, err
	}

	if category := req.GetString("category", ""); category != "" {
		rng, total, err := h.svc.SumCategory(ctx, start, end, category)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(report.CategoryTotal(rng, category, total)), nil
	}

	res, err := h.svc.Summarize(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(report.Summary(res.Range, res.Totals)), nil
}

func (h *handlers) categories(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	doc, err := h.svc.Categories(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load categories",
			log.FieldOperation, log.OpCatalog,
			log.FieldResourceURI, req.Params.URI,
			log.FieldError, err)
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      CategoriesURI,
			MIMEType: catalog.MIMEType,
			Text:     string(doc.Raw),
		},
	}, nil
}

func requireRange(req mcp.CallToolRequest) (string, string, error) {
	start, err := req.RequireString("start_date")
	if err != nil {
		return "", "", core.E(core.KindInvalidInput, "read arguments", err)
	}
	end, err := req.RequireString("end_date")
	if err != nil {
		return "", "", core.E(core.KindInvalidInput, "read arguments", err)
	}
	return start, end, nil
}
