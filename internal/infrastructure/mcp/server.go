package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/specsync/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/specsync/pkg/application"
	"github.com/felixgeelhaar/specsync/pkg/domain/drift"
	"github.com/felixgeelhaar/specsync/pkg/domain/reconcile"
)

type Server struct {
	mcpServer  *mcp.Server
	dispatcher *application.Dispatcher
	strict     bool
	logger     *slog.Logger
	root       string
}

var (
	Version     = "dev"
	BuildCommit = "unknown"
	BuildDate   = "unknown"
)

// mcpErr returns a user-friendly error for MCP clients.
// Internal details are omitted; only the friendly message is returned.
func mcpErr(friendly string) error {
	return fmt.Errorf("%s", friendly)
}

// NewServer loads the project configuration under root and registers the tools.
func NewServer(root string, logger *slog.Logger) (*Server, error) {
	services, err := wiring.Load(root, logger)
	if err != nil {
		return nil, fmt.Errorf("build services: %w", err)
	}
	return NewServerWithServices(services), nil
}

// NewServerWithServices registers the tools over already built services.
func NewServerWithServices(services *wiring.AppServices) *Server {
	info := mcp.ServerInfo{
		Name:    "specsync",
		Version: Version,
	}

	s := &Server{
		mcpServer: mcp.NewServer(info,
			mcp.WithTitle("specsync MCP Server"),
			mcp.WithDescription("specsync keeps requirements, design, API and task documents consistent with the code that implements them."),
			mcp.WithWebsiteURL("https://github.com/felixgeelhaar/specsync"),
			mcp.WithBuildInfo(BuildCommit, BuildDate),
			mcp.WithInstructions("Detect drift first, preview sync with dry_run, then apply. Use the matrix and coverage tools to find untested requirements."),
		),
		dispatcher: services.Dispatcher,
		strict:     services.Workspace.Config.Consistency.Strict,
		logger:     services.Logger,
		root:       services.Workspace.Config.ProjectRoot,
	}

	s.registerTools()
	s.registerSchemaResource()
	s.registerOpenAPIResource()
	return s
}

// FlexBool accepts both boolean and string ("true"/"false") JSON values.
// MCP clients sometimes send string values for boolean fields.
type FlexBool bool

func (fb *FlexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*fb = FlexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*fb = FlexBool(s == "true" || s == "1" || s == "yes")
		return nil
	}
	return fmt.Errorf("expected boolean or string, got %s", string(data))
}

// FlexFloat accepts both numeric and string JSON values.
type FlexFloat float64

func (ff *FlexFloat) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*ff = FlexFloat(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*ff = FlexFloat(n)
			return nil
		}
	}
	return fmt.Errorf("expected number or string, got %s", string(data))
}

type DriftArgs struct {
	Scope string `json:"scope,omitempty" jsonschema:"description=Which part of the specs to check: all requirements design api or tasks (default all)"`
}

type ConsistencyArgs struct {
	Strict FlexBool `json:"strict,omitempty" jsonschema:"description=Treat warnings such as orphaned entities as errors"`
}

type SyncArgs struct {
	DryRun FlexBool `json:"dry_run,omitempty" jsonschema:"description=Only propose changes without writing any document"`
	Scope  string   `json:"scope,omitempty" jsonschema:"description=Which documents to update: all requirements design api models or tasks (default all)"`
}

type MatrixArgs struct {
	Format string `json:"format,omitempty" jsonschema:"description=Output format: markdown json or csv (default markdown)"`
}

type CoverageArgs struct {
	Threshold *FlexFloat `json:"threshold,omitempty" jsonschema:"description=Minimum overall coverage percentage between 0 and 100 (default from config or 80)"`
}

func (s *Server) registerTools() {
	s.mcpServer.Tool(application.OpDetectSpecDrift).
		Description("Detect drift between the spec documents and the code: undocumented code, unimplemented specs and changed attributes").
		Handler(s.handleDetectDrift)

	s.mcpServer.Tool(application.OpValidateSpecConsistency).
		Description("Validate the spec documents against each other: ids, references, cycles, API contracts and contradictions").
		Handler(s.handleValidateConsistency)

	s.mcpServer.Tool(application.OpSyncSpecsWithCode).
		Description("Update the spec documents to match the code. Use dry_run to preview the changes first").
		Handler(s.handleSync)

	s.mcpServer.Tool(application.OpGenerateTraceabilityMatrix).
		Description("Generate the requirement traceability matrix linking requirements to design, API, code and tests").
		Handler(s.handleTraceabilityMatrix)

	s.mcpServer.Tool(application.OpCheckSpecCoverage).
		Description("Compute requirement, design, API and test coverage and compare it with a threshold").
		Handler(s.handleCoverage)
}

// invoke runs an operation and turns caller mistakes into friendly errors.
func (s *Server) invoke(ctx context.Context, op string, args application.Args, failure string) (any, error) {
	out, err := s.dispatcher.Invoke(ctx, op, args)
	if err == nil {
		return out, nil
	}
	s.logger.Warn("mcp tool failed", "tool", op, "error", err)
	switch {
	case errors.Is(err, application.ErrInvalidScope):
		return nil, mcpErr("Invalid scope. Use one of: " + scopeNames(op) + ".")
	case errors.Is(err, application.ErrInvalidFormat):
		return nil, mcpErr("Invalid format. Use one of: markdown, json, csv.")
	case errors.Is(err, application.ErrInvalidThreshold):
		return nil, mcpErr("Invalid threshold. Use a percentage between 0 and 100.")
	case errors.Is(err, context.DeadlineExceeded):
		return nil, mcpErr("The operation timed out. Narrow the scope or raise the timeout in .specsync/config.yaml.")
	}
	return nil, mcpErr(failure)
}

// scopeNames lists the scopes op accepts. Only sync knows about models.
func scopeNames(op string) string {
	var names []string
	if op == application.OpSyncSpecsWithCode {
		for _, sc := range reconcile.AllScopes() {
			names = append(names, string(sc))
		}
	} else {
		for _, sc := range drift.AllScopes() {
			names = append(names, string(sc))
		}
	}
	return strings.Join(names, ", ")
}

func (s *Server) handleDetectDrift(ctx context.Context, args DriftArgs) (any, error) {
	return s.invoke(ctx, application.OpDetectSpecDrift, application.Args{Scope: args.Scope},
		"Failed to detect drift. Ensure the spec directory exists and is readable.")
}

func (s *Server) handleValidateConsistency(ctx context.Context, args ConsistencyArgs) (any, error) {
	return s.invoke(ctx, application.OpValidateSpecConsistency, application.Args{Strict: bool(args.Strict) || s.strict},
		"Failed to validate spec consistency. Ensure the spec directory exists and is readable.")
}

func (s *Server) handleSync(ctx context.Context, args SyncArgs) (any, error) {
	return s.invoke(ctx, application.OpSyncSpecsWithCode, application.Args{DryRun: bool(args.DryRun), Scope: args.Scope},
		"Failed to sync specs with code. Run with dry_run to inspect the proposed changes.")
}

// handleTraceabilityMatrix returns the rendered matrix text.
func (s *Server) handleTraceabilityMatrix(ctx context.Context, args MatrixArgs) (string, error) {
	out, err := s.invoke(ctx, application.OpGenerateTraceabilityMatrix, application.Args{Format: args.Format},
		"Failed to generate the traceability matrix.")
	if err != nil {
		return "", err
	}
	report := out.(*application.TraceabilityReport)
	return fmt.Sprintf("Requirements Traceability Matrix (%s)\n\n%s", strings.ToUpper(string(report.Format)), report.Rendered), nil
}

func (s *Server) handleCoverage(ctx context.Context, args CoverageArgs) (any, error) {
	var threshold *float64
	if args.Threshold != nil {
		v := float64(*args.Threshold)
		threshold = &v
	}
	return s.invoke(ctx, application.OpCheckSpecCoverage, application.Args{Threshold: threshold},
		"Failed to check spec coverage.")
}

func (s *Server) Start() error {
	return s.StartStdio()
}

func (s *Server) StartStdio() error {
	return s.ServeStdio(context.Background())
}

func (s *Server) StartHTTP(addr string) error {
	return s.ServeHTTP(context.Background(), addr)
}

func (s *Server) StartWebSocket(addr string) error {
	return s.ServeWebSocket(context.Background(), addr)
}

func (s *Server) StartGRPC(addr string) error {
	return s.ServeGRPC(context.Background(), addr)
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr, mcp.WithDefaultCORS())
}

func (s *Server) ServeWebSocket(ctx context.Context, addr string) error {
	return mcp.ServeWebSocket(ctx, s.mcpServer, addr)
}

func (s *Server) ServeGRPC(ctx context.Context, addr string) error {
	return mcp.ServeGRPC(ctx, s.mcpServer, addr)
}
