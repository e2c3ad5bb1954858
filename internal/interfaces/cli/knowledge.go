package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/LegalLens/internal/application/knowledge"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

func newIngestCmd() *cobra.Command {
	var domain, file, dir, source string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Add documents to a domain knowledge collection",
		Long: "Ingest one file into --domain, or every matching .txt/.md file in --dir.\n" +
			"Directory files are routed by name prefix, e.g. property_laws.txt.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (file == "") == (dir == "") {
				return errors.New(errors.ErrCodeBadRequest, "exactly one of --file or --dir is required")
			}
			_, svc, err := services(cmd)
			if err != nil {
				return err
			}
			if svc.Knowledge == nil {
				return notConfigured("knowledge service")
			}

			if dir != "" {
				res, err := svc.Knowledge.LoadDirectory(cmd.Context(), dir)
				if err != nil {
					return err
				}
				return PrintResult(cmd, res, func(w io.Writer) {
					heading(w, "Knowledge directory "+dir)
					fmt.Fprintf(w, "Loaded:  %d\nSkipped: %d\nFailed:  %d\n", len(res.Loaded), len(res.Skipped), len(res.Failed))
					for name, msg := range res.Failed {
						fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("x"), name, msg)
					}
				})
			}

			if err := requireFlag("domain", domain); err != nil {
				return err
			}
			text, err := readInput(cmd.Context(), svc, cmd, nil, file)
			if err != nil {
				return err
			}
			if source == "" {
				source = filepath.Base(file)
			}
			res, err := svc.Knowledge.Ingest(cmd.Context(), knowledge.IngestRequest{
				Domain:   domain,
				Text:     text,
				Metadata: map[string]interface{}{"source": source},
			})
			if err != nil {
				return err
			}
			return PrintResult(cmd, res, func(w io.Writer) {
				state := color.GreenString("ingested")
				if res.Unchanged {
					state = color.YellowString("unchanged")
				}
				fmt.Fprintf(w, "%s %s into %s (%d chunks)\n", state, res.Source, res.Collection, res.Chunks)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&domain, "domain", "", "target domain for --file")
	f.StringVarP(&file, "file", "f", "", "document to ingest")
	f.StringVar(&dir, "dir", "", "knowledge directory to load")
	f.StringVar(&source, "source", "", "source name recorded with the chunks (default: file name)")
	return cmd
}

func newRetrieveCmd() *cobra.Command {
	var (
		domain string
		topK   int
	)
	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Retrieve the closest knowledge chunks for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("domain", domain); err != nil {
				return err
			}
			_, svc, err := services(cmd)
			if err != nil {
				return err
			}
			if svc.Knowledge == nil {
				return notConfigured("knowledge service")
			}
			chunks := svc.Knowledge.Retrieve(cmd.Context(), domain, strings.Join(args, " "), topK)
			if chunks == nil {
				chunks = []legal.RetrievedChunk{}
			}
			return PrintResult(cmd, chunks, func(w io.Writer) {
				heading(w, fmt.Sprintf("%s knowledge", domain))
				rows := make([][]string, 0, len(chunks))
				for i, c := range chunks {
					rows = append(rows, []string{fmt.Sprint(i + 1), c.Source(), truncate(c.Text, 80)})
				}
				renderTable(w, []string{"#", "Source", "Excerpt"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "domain to search")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "number of chunks")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-domain knowledge collection sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, svc, err := services(cmd)
			if err != nil {
				return err
			}
			if svc.Knowledge == nil {
				return notConfigured("knowledge service")
			}
			stats := svc.Knowledge.Stats(cmd.Context())
			return PrintResult(cmd, stats, func(w io.Writer) {
				domains := make([]string, 0, len(stats))
				for d := range stats {
					domains = append(domains, d)
				}
				sort.Strings(domains)
				rows := make([][]string, 0, len(domains))
				for _, d := range domains {
					st := stats[d]
					status := fmt.Sprint(st.DocumentCount)
					if st.Error != "" {
						status = color.RedString(st.Error)
					}
					rows = append(rows, []string{d, st.Collection, status, fmt.Sprint(st.Sources)})
				}
				renderTable(w, []string{"Domain", "Collection", "Chunks", "Sources"}, rows)
			})
		},
	}
}

