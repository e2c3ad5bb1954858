package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/LegalLens/internal/application/pipeline"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the end-to-end case or advisory pipeline",
	}
	cmd.AddCommand(newAnalyzeCaseCmd(), newAnalyzeAdvisoryCmd())
	return cmd
}

func newAnalyzeCaseCmd() *cobra.Command {
	var (
		title, statementText, statementFile string
		firText, firFile                    string
		docs                                []string
		translate, noClean, embeddings      bool
	)
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Analyse a litigation case from a statement and FIR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, svc, err := services(cmd)
			if err != nil {
				return err
			}
			if svc.Cases == nil {
				return notConfigured("case pipeline")
			}
			req := pipeline.CaseRequest{
				CaseTitle:     title,
				StatementText: statementText,
				FIRText:       firText,
				Translate:     translate,
				Clean:         !noClean,
				UseEmbeddings: embeddings,
			}
			if req.Statement, err = loadOptionalFile(statementFile); err != nil {
				return err
			}
			if req.FIR, err = loadOptionalFile(firFile); err != nil {
				return err
			}
			if req.OtherFiles, err = loadFiles(docs); err != nil {
				return err
			}
			return printPipeline(cmd, svc.Cases.Analyze(cmd.Context(), req))
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "case title (default: Case_<timestamp>)")
	f.StringVar(&statementText, "statement-text", "", "victim statement text")
	f.StringVar(&statementFile, "statement", "", "victim statement file")
	f.StringVar(&firText, "fir-text", "", "FIR text")
	f.StringVar(&firFile, "fir", "", "FIR file")
	f.StringSliceVar(&docs, "doc", nil, "additional evidence files (repeatable)")
	f.BoolVar(&translate, "translate", false, "translate non-English input to English")
	f.BoolVar(&noClean, "no-clean", false, "skip text cleaning")
	f.BoolVar(&embeddings, "embeddings", false, "use the embedding classifier path")
	return cmd
}

func newAnalyzeAdvisoryCmd() *cobra.Command {
	var (
		title, objective, background string
		docs                         []string
	)
	cmd := &cobra.Command{
		Use:   "advisory",
		Short: "Prepare a pre-litigation advisory from an objective and background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("objective", objective); err != nil {
				return err
			}
			_, svc, err := services(cmd)
			if err != nil {
				return err
			}
			if svc.Advisories == nil {
				return notConfigured("advisory pipeline")
			}
			req := pipeline.AdvisoryRequest{CaseTitle: title, Objective: objective, Background: background}
			if req.Files, err = loadFiles(docs); err != nil {
				return err
			}
			return printPipeline(cmd, svc.Advisories.Analyze(cmd.Context(), req))
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "advisory title (default: Advisory_<timestamp>)")
	f.StringVar(&objective, "objective", "", "what the client wants to achieve")
	f.StringVar(&background, "background", "", "background facts")
	f.StringSliceVar(&docs, "doc", nil, "supporting documents (repeatable)")
	return cmd
}

// printPipeline prints the result and turns a failed run into an error so
// the process exits non-zero.
func printPipeline(cmd *cobra.Command, res *legal.PipelineResult) error {
	if err := PrintResult(cmd, res, func(w io.Writer) { printPipelineText(w, res) }); err != nil {
		return err
	}
	if res.Status != legal.StatusSuccess {
		return errors.New(errors.ErrCodePipelineStageFailed, res.Error)
	}
	return nil
}

func printPipelineText(w io.Writer, res *legal.PipelineResult) {
	if res.Status != legal.StatusSuccess {
		heading(w, color.RedString("Pipeline failed"))
		fmt.Fprintf(w, "Type:  %s\n", res.CaseType)
		return
	}
	heading(w, fmt.Sprintf("%s (%s)", res.CaseTitle, res.CaseType))
	fmt.Fprintf(w, "Case ID: %s\n", res.CaseID)
	fmt.Fprintf(w, "Status:  %s\n", color.GreenString(string(res.Status)))

	stages := make([]string, 0, len(res.Steps))
	for s := range res.Steps {
		stages = append(stages, string(s))
	}
	sort.Strings(stages)
	fmt.Fprintln(w)
	renderTable(w, []string{"Stage"}, toRows(stages))

	switch s := res.Summary.(type) {
	case legal.CaseSummary:
		fmt.Fprintf(w, "\nDomain: %s  Issue: %s  Sections: %d  Witnesses: %d  Documents: %d\n",
			s.Domain, s.PrimaryIssue, s.SectionsCount, s.WitnessesCount, s.DocumentsCount)
	case legal.AdvisorySummary:
		fmt.Fprintf(w, "\nDomain: %s (%s)  Documents: %d  Knowledge sources: %d\n",
			s.Domain, confidence(s.Confidence), s.DocumentsProcessed, s.KnowledgeSources)
	}
	if res.PDFPath != "" {
		fmt.Fprintf(w, "Report: %s\n", res.PDFPath)
	}
}

func toRows(values []string) [][]string {
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = []string{v}
	}
	return rows
}

func loadOptionalFile(path string) (*pipeline.FileInput, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read file").WithDetail(path)
	}
	return &pipeline.FileInput{Filename: filepath.Base(path), Data: data}, nil
}

func loadFiles(paths []string) ([]pipeline.FileInput, error) {
	out := make([]pipeline.FileInput, 0, len(paths))
	for _, p := range paths {
		in, err := loadOptionalFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, nil
}
