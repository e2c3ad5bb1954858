// Package cli implements the legallens command line. Commands run the
// analysis components in-process; backends come from the same configuration
// the API server uses.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/LegalLens/internal/application/knowledge"
	"github.com/turtacn/LegalLens/internal/application/pipeline"
	"github.com/turtacn/LegalLens/internal/config"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/intelligence/advisory"
	"github.com/turtacn/LegalLens/internal/intelligence/evidence"
	"github.com/turtacn/LegalLens/internal/intelligence/issue"
	"github.com/turtacn/LegalLens/internal/intelligence/retrieval"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

type cliContextKey struct{}

// ─────────────────────────────────────────────────────────────────────────────
// Service dependencies
// ─────────────────────────────────────────────────────────────────────────────

// SectionLookup is the read side of the section mapper.
type SectionLookup interface {
	MapSections(domain, primaryIssue string, secondaryIssues []string) legal.SectionMapping
	SectionDetails(actName, number string) (legal.SectionRecord, error)
	Search(query string) []legal.SectionRecord
}

// KnowledgeService is the knowledge application service as seen by the CLI.
type KnowledgeService interface {
	Ingest(ctx context.Context, req knowledge.IngestRequest) (*knowledge.IngestResult, error)
	LoadDirectory(ctx context.Context, dir string) (retrieval.LoadResult, error)
	Retrieve(ctx context.Context, domain, query string, topK int) []legal.RetrievedChunk
	Stats(ctx context.Context) map[string]knowledge.DomainStats
}

type CaseAnalyzer interface {
	Analyze(ctx context.Context, req pipeline.CaseRequest) *legal.PipelineResult
}

type AdvisoryAnalyzer interface {
	Analyze(ctx context.Context, req pipeline.AdvisoryRequest) *legal.PipelineResult
}

// Migrator manages the registry schema.
type Migrator interface {
	Up() error
	Down(steps int) error
	Status() (version uint, dirty bool, err error)
	Force(version int) error
}

// Services is what the subcommands run against. Nil members make their
// commands fail with a configuration error.
type Services struct {
	Documents  pipeline.DocumentExtractor
	Classifier issue.Classifier
	Sections   SectionLookup
	Evidence   evidence.Extractor
	Advisory   advisory.Classifier
	Knowledge  KnowledgeService
	Cases      CaseAnalyzer
	Advisories AdvisoryAnalyzer
	Migrator   Migrator
}

// ServiceFactory builds Services once flags and configuration are known.
// The returned cleanup releases backend connections.
type ServiceFactory func(ctx context.Context, cfg *config.Config, log logging.Logger) (*Services, func(), error)

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string

	factory  ServiceFactory
	services *Services
	cleanup  func()
	cancel   context.CancelFunc
}

// Services builds the service graph on first use.
func (c *CLIContext) Services(ctx context.Context) (*Services, error) {
	if c.services != nil {
		return c.services, nil
	}
	if c.factory == nil {
		return nil, errors.New(errors.ErrCodeFeatureDisabled, "no service factory configured")
	}
	svc, cleanup, err := c.factory(ctx, c.Config, c.Logger)
	if err != nil {
		return nil, err
	}
	c.services, c.cleanup = svc, cleanup
	return svc, nil
}

// Close releases whatever Services opened.
func (c *CLIContext) Close() {
	if c.cleanup != nil {
		c.cleanup()
		c.cleanup = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Root command
// ─────────────────────────────────────────────────────────────────────────────

// NewRootCommand creates the root command with its global flags and every
// subcommand.
func NewRootCommand(factory ServiceFactory) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "legallens",
		Short: "LegalLens: legal case analysis and pre-litigation advisory",
		Long: "LegalLens classifies legal narratives, maps them to statutory sections,\n" +
			"extracts evidence and produces case analysis and advisory reports.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPreRun(cmd, opts, factory)
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if cc, err := GetCLIContext(cmd); err == nil {
				cc.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: LEGALLENS_* environment)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", OutputText, "output format (text, json)")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "overall command timeout")

	cmd.AddCommand(
		newClassifyCmd(),
		newSectionsCmd(),
		newEvidenceCmd(),
		newAdviseCmd(),
		newAnalyzeCmd(),
		newIngestCmd(),
		newRetrieveCmd(),
		newStatsCmd(),
		newMigrateCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions, factory ServiceFactory) error {
	format := strings.ToLower(opts.OutputFormat)
	if format != OutputText && format != OutputJSON {
		return errors.Newf(errors.ErrCodeBadRequest, "unsupported output format %q (use text or json)", opts.OutputFormat)
	}
	if opts.NoColor {
		color.NoColor = true
	}

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            opts.LogLevel,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cc := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: format,
		factory:      factory,
	}
	if opts.Timeout > 0 {
		ctx, cc.cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))
	return nil
}

// GetCLIContext extracts the CLIContext installed by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLI context not initialised")
	}
	return cc, nil
}

// services is the common prologue of every RunE.
func services(cmd *cobra.Command) (*CLIContext, *Services, error) {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	svc, err := cc.Services(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return cc, svc, nil
}

func notConfigured(component string) error {
	return errors.Newf(errors.ErrCodeFeatureDisabled, "%s is not configured", component)
}

// Execute is the main entry point for the CLI application.
func Execute(factory ServiceFactory) error {
	root := NewRootCommand(factory)
	cmd, err := root.ExecuteC()
	// PersistentPostRun is skipped when RunE fails.
	if cc, ccErr := GetCLIContext(cmd); ccErr == nil {
		cc.Close()
	}
	if err != nil {
		PrintError(root, err)
		return err
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Output helpers
// ─────────────────────────────────────────────────────────────────────────────

// PrintResult writes data as JSON, or through text when the text format is
// selected.
func PrintResult(cmd *cobra.Command, data interface{}, text func(w io.Writer)) error {
	format := OutputText
	if cc, err := GetCLIContext(cmd); err == nil {
		format = cc.OutputFormat
	}
	if format == OutputJSON || text == nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	text(cmd.OutOrStdout())
	return nil
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}

// renderTable writes an aligned table.
func renderTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

// confidence colours a 0..1 score.
func confidence(v float64) string {
	s := fmt.Sprintf("%.0f%%", v*100)
	switch {
	case v >= 0.7:
		return color.GreenString(s)
	case v >= 0.4:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

func heading(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n\n", color.New(color.Bold).Sprint(title))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

// readInput returns text from --file (through document intake), the
// arguments, or stdin when the only argument is "-".
func readInput(ctx context.Context, svc *Services, cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read input file")
		}
		if svc.Documents == nil {
			return string(data), nil
		}
		doc := svc.Documents.Extract(ctx, file, data)
		if doc.Error != "" {
			return "", errors.New(errors.ErrCodeDocumentDecode, doc.Error).WithDetail(file)
		}
		return doc.Text, nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read stdin")
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	return "", errors.New(errors.ErrCodeBadRequest, "no input: pass text, --file or - for stdin")
}
