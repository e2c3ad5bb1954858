package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// ─────────────────────────────────────────────────────────────────────────────
// classify
// ─────────────────────────────────────────────────────────────────────────────

func newClassifyCmd() *cobra.Command {
	var (
		file       string
		embeddings bool
	)
	cmd := &cobra.Command{
		Use:   "classify [text | -]",
		Short: "Classify a legal narrative into a domain and issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := services(cmd)
			if err != nil {
				return err
			}
			if svc.Classifier == nil {
				return notConfigured("issue classifier")
			}
			text, err := readInput(cmd.Context(), svc, cmd, args, file)
			if err != nil {
				return err
			}
			res := svc.Classifier.Classify(cmd.Context(), text, embeddings)
			return PrintResult(cmd, res, func(w io.Writer) { printClassification(w, res) })
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the narrative from a .txt, .pdf or .docx file")
	cmd.Flags().BoolVar(&embeddings, "embeddings", false, "also run the embedding path")
	return cmd
}

func printClassification(w io.Writer, res legal.ClassificationResult) {
	heading(w, "Issue classification")
	fmt.Fprintf(w, "Domain:        %s (%s)\n", res.Domain, confidence(res.Confidence))
	fmt.Fprintf(w, "Primary issue: %s\n", res.PrimaryIssue)
	if len(res.SecondaryIssues) > 0 {
		fmt.Fprintf(w, "Secondary:     %s\n", strings.Join(res.SecondaryIssues, ", "))
	}
	fmt.Fprintf(w, "Method:        %s\n", res.Method)
	if res.Error != "" {
		fmt.Fprintf(w, "Error:         %s\n", res.Error)
	}
	if len(res.AllDomainScores) > 0 {
		domains := make([]string, 0, len(res.AllDomainScores))
		for d := range res.AllDomainScores {
			domains = append(domains, d)
		}
		sort.Slice(domains, func(i, j int) bool {
			return res.AllDomainScores[domains[i]] > res.AllDomainScores[domains[j]]
		})
		rows := make([][]string, 0, len(domains))
		for _, d := range domains {
			rows = append(rows, []string{d, fmt.Sprintf("%.2f", res.AllDomainScores[d])})
		}
		fmt.Fprintln(w)
		renderTable(w, []string{"Domain", "Score"}, rows)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// sections
// ─────────────────────────────────────────────────────────────────────────────

func newSectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sections",
		Short: "Map issues to statutory sections and search the section table",
	}

	var (
		domain    string
		primary   string
		secondary []string
	)
	mapCmd := &cobra.Command{
		Use:   "map",
		Short: "List the sections that apply to an issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, svc, err := services(cmd)
			if err != nil {
				return err
			}
			if svc.Sections == nil {
				return notConfigured("section mapper")
			}
			res := svc.Sections.MapSections(domain, primary, secondary)
			return PrintResult(cmd, res, func(w io.Writer) {
				heading(w, fmt.Sprintf("Sections for %s / %s", res.Domain, res.PrimaryIssue))
				printSectionRecords(w, res.AllSections)
				fmt.Fprintf(w, "\nTotal: %d across %s\n", res.Summary.TotalSections, strings.Join(res.Summary.ActsCovered, ", "))
				if res.Error != "" {
					fmt.Fprintf(w, "Error: %s\n", res.Error)
				}
			})
		},
	}
	mapCmd.Flags().StringVar(&domain, "domain", "", "legal domain, e.g. Criminal")
	mapCmd.Flags().StringVar(&primary, "issue", "", "primary issue, e.g. theft")
	mapCmd.Flags().StringSliceVar(&secondary, "secondary", nil, "secondary issues")
	_ = mapCmd.MarkFlagRequired("domain")
	_ = mapCmd.MarkFlagRequired("issue")

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search section titles, descriptions and numbers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := services(cmd)
			if err != nil {
				return err
			}
			if svc.Sections == nil {
				return notConfigured("section mapper")
			}
			q := strings.Join(args, " ")
			res := svc.Sections.Search(q)
			return PrintResult(cmd, res, func(w io.Writer) {
				heading(w, fmt.Sprintf("Sections matching %q", q))
				printSectionRecords(w, res)
				fmt.Fprintf(w, "\n%d match(es)\n", len(res))
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <act> <number>",
		Short: "Show one section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := services(cmd)
			if err != nil {
				return err
			}
			if svc.Sections == nil {
				return notConfigured("section mapper")
			}
			rec, err := svc.Sections.SectionDetails(args[0], args[1])
			if err != nil {
				return err
			}
			return PrintResult(cmd, rec, func(w io.Writer) {
				heading(w, fmt.Sprintf("%s Section %s: %s", rec.Act, rec.Section.Section, rec.Title))
				fmt.Fprintf(w, "Issue:       %s\n", rec.Issue)
				fmt.Fprintf(w, "Description: %s\n", rec.Description)
				if rec.Punishment != "" {
					fmt.Fprintf(w, "Punishment:  %s\n", rec.Punishment)
				}
				if rec.Bailable != nil {
					fmt.Fprintf(w, "Bailable:    %t\n", *rec.Bailable)
				}
				if rec.Cognizable != nil {
					fmt.Fprintf(w, "Cognizable:  %t\n", *rec.Cognizable)
				}
			})
		},
	}

	cmd.AddCommand(mapCmd, searchCmd, showCmd)
	return cmd
}

func printSectionRecords(w io.Writer, recs []legal.SectionRecord) {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{r.Act, r.Section.Section, truncate(r.Title, 50), r.Issue, string(r.Type)})
	}
	renderTable(w, []string{"Act", "Section", "Title", "Issue", "Type"}, rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// evidence
// ─────────────────────────────────────────────────────────────────────────────

func newEvidenceCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "evidence [text | -]",
		Short: "Extract witnesses, documents, dates, amounts and locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := services(cmd)
			if err != nil {
				return err
			}
			if svc.Evidence == nil {
				return notConfigured("evidence extractor")
			}
			text, err := readInput(cmd.Context(), svc, cmd, args, file)
			if err != nil {
				return err
			}
			b := svc.Evidence.Extract(cmd.Context(), text)
			return PrintResult(cmd, b, func(w io.Writer) { printEvidence(w, b) })
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the text from a .txt, .pdf or .docx file")
	return cmd
}

func printEvidence(w io.Writer, b legal.EvidenceBundle) {
	heading(w, "Evidence")
	rows := [][]string{}
	for _, x := range b.Witnesses {
		kind := "person"
		if x.IsWitness {
			kind = "witness"
		}
		rows = append(rows, []string{kind, x.Name, truncate(x.Context, 60)})
	}
	for _, x := range b.Documents {
		rows = append(rows, []string{"document", x.Reference, truncate(x.Context, 60)})
	}
	for _, x := range b.Dates {
		rows = append(rows, []string{"date", x.Date, truncate(x.Context, 60)})
	}
	for _, x := range b.Money {
		rows = append(rows, []string{"money", x.Amount, truncate(x.Context, 60)})
	}
	for _, x := range b.Locations {
		rows = append(rows, []string{"location", x.Location, truncate(x.Context, 60)})
	}
	renderTable(w, []string{"Kind", "Value", "Context"}, rows)
	if b.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", b.Error)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// advise
// ─────────────────────────────────────────────────────────────────────────────

func newAdviseCmd() *cobra.Command {
	var (
		file string
		topK int
	)
	cmd := &cobra.Command{
		Use:   "advise [text | -]",
		Short: "Pick the advisory domain for a query and show supporting knowledge",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := services(cmd)
			if err != nil {
				return err
			}
			if svc.Advisory == nil {
				return notConfigured("advisory classifier")
			}
			text, err := readInput(cmd.Context(), svc, cmd, args, file)
			if err != nil {
				return err
			}
			cls := svc.Advisory.Classify(cmd.Context(), text)
			var chunks []legal.RetrievedChunk
			if svc.Knowledge != nil && cls.Error == "" && topK > 0 {
				chunks = svc.Knowledge.Retrieve(cmd.Context(), cls.Domain, text, topK)
			}
			out := struct {
				Classification legal.AdvisoryClassification `json:"classification"`
				References     []legal.RetrievedChunk       `json:"references"`
			}{cls, chunks}
			return PrintResult(cmd, out, func(w io.Writer) {
				heading(w, "Advisory domain")
				fmt.Fprintf(w, "Domain:     %s (%s)\n", cls.Domain, confidence(cls.Confidence))
				if len(cls.SecondaryDomains) > 0 {
					fmt.Fprintf(w, "Also:       %s\n", strings.Join(cls.SecondaryDomains, ", "))
				}
				if cls.Error != "" {
					fmt.Fprintf(w, "Error:      %s\n", cls.Error)
				}
				if len(chunks) > 0 {
					rows := make([][]string, 0, len(chunks))
					for i, c := range chunks {
						rows = append(rows, []string{fmt.Sprint(i + 1), c.Source(), truncate(c.Text, 70)})
					}
					fmt.Fprintln(w)
					renderTable(w, []string{"#", "Source", "Excerpt"}, rows)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the query from a .txt, .pdf or .docx file")
	cmd.Flags().IntVar(&topK, "top-k", 3, "knowledge chunks to show (0 disables retrieval)")
	return cmd
}

// requireFlag reports a missing string flag in the CLI's error style.
func requireFlag(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.Newf(errors.ErrCodeBadRequest, "--%s is required", name)
	}
	return nil
}
