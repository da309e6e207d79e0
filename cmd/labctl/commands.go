package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/labtrack/internal/application"
	"github.com/JonMunkholm/labtrack/internal/core"
	"github.com/JonMunkholm/labtrack/internal/logging"
	"github.com/JonMunkholm/labtrack/internal/records"
	"github.com/JonMunkholm/labtrack/internal/sheetstore"
)

// opener builds the app a command runs against.
type opener func(ctx context.Context, log *slog.Logger, opts application.Options) (*application.App, error)

type cli struct {
	open    opener
	verbose bool
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:   "labctl",
		Short: "Inspect and maintain the lab spreadsheets",
		Long: `labctl runs against the sheets configured for the server
(SHEETS_BACKEND, SHEET_*_ID, GOOGLE_CREDENTIALS_BASE64).

With SHEETS_BACKEND=memory it operates on the demo data.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log to stderr")

	root.AddCommand(
		c.sheetsCmd(),
		c.listCmd(),
		c.exportCmd(),
		c.deleteCmd(),
		c.initSheetCmd(),
	)
	return root
}

func (c *cli) app(cmd *cobra.Command, readOnly bool) (*application.App, error) {
	log := logging.Discard()
	if c.verbose {
		log = logging.New(cmd.ErrOrStderr(), "debug", "text")
	}
	// Reads are not audited, so they skip the database.
	return c.open(cmd.Context(), log, application.Options{SkipAudit: readOnly})
}

func (c *cli) sheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets",
		Short: "List the configured sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.app(cmd, true)
			if err != nil {
				return err
			}
			defer app.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tLABEL\tKIND\tPUBLIC")
			for _, sh := range app.Service.Sheets() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", sh.Key, sh.Label, sh.Kind, sh.Public)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var q, withdrawnBy string

	cmd := &cobra.Command{
		Use:   "list <sheet>",
		Short: "List the records of a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.app(cmd, true)
			if err != nil {
				return err
			}
			defer app.Close()

			sh, err := app.Service.Sheet(args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			switch sh.Kind {
			case records.KindExam:
				list, err := app.Service.ListExams(cmd.Context(), sh.Key, core.ExamQuery{Patient: q, WithdrawnBy: withdrawnBy})
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "ID\tPATIENT\tRECEIVED\tWITHDRAWN BY\tFILES")
				for _, e := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
						e.ID, e.PatientName, formatDate(e.ReceivedDate, app.Location), e.WithdrawnBy, len(e.Attachments))
				}
			default:
				list, err := app.Service.ListRecoletas(cmd.Context(), sh.Key, q)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "ID\tPATIENT\tUBS\tNOTIFIED")
				for _, r := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", r.ID, r.PatientName, r.UBS, r.Notified)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&q, "query", "q", "", "Filter by patient name")
	cmd.Flags().StringVar(&withdrawnBy, "withdrawn-by", "", "Filter exams by destination")
	return cmd
}

// examDoc is the yaml/json export shape of an exam.
type examDoc struct {
	ID           string               `json:"id" yaml:"id"`
	PatientName  string               `json:"patientName" yaml:"patientName"`
	ReceivedDate string               `json:"receivedDate,omitempty" yaml:"receivedDate,omitempty"`
	WithdrawnBy  string               `json:"withdrawnBy,omitempty" yaml:"withdrawnBy,omitempty"`
	Observations string               `json:"observations,omitempty" yaml:"observations,omitempty"`
	Attachments  []records.Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

type recoletaDoc struct {
	ID           string `json:"id" yaml:"id"`
	PatientName  string `json:"patientName" yaml:"patientName"`
	UBS          string `json:"ubs" yaml:"ubs"`
	Notified     bool   `json:"notified" yaml:"notified"`
	Observations string `json:"observations,omitempty" yaml:"observations,omitempty"`
}

func (c *cli) exportCmd() *cobra.Command {
	var format, from, to, withdrawnBy string

	cmd := &cobra.Command{
		Use:   "export <sheet>",
		Short: "Export a sheet as csv, yaml or json",
		Long: `Export writes every record of a sheet to stdout.

For exam sheets --from, --to (DD/MM/YYYY, inclusive) and --withdrawn-by
narrow the export the same way the report endpoint does, newest first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "csv", "yaml", "json":
			default:
				return fmt.Errorf("unknown format %q (csv, yaml, json)", format)
			}

			app, err := c.app(cmd, true)
			if err != nil {
				return err
			}
			defer app.Close()

			sh, err := app.Service.Sheet(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if sh.Kind == records.KindRecoleta {
				list, err := app.Service.ListRecoletas(cmd.Context(), sh.Key, "")
				if err != nil {
					return err
				}
				if format == "csv" {
					return writeRecoletaCSV(out, list)
				}
				docs := make([]recoletaDoc, 0, len(list))
				for _, r := range list {
					docs = append(docs, recoletaDoc{ID: r.ID, PatientName: r.PatientName, UBS: r.UBS, Notified: r.Notified, Observations: r.Observations})
				}
				return encode(out, format, docs)
			}

			f := core.ReportFilter{WithdrawnBy: withdrawnBy}
			if f.From, err = parseDate(from, app.Location); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if f.To, err = parseDate(to, app.Location); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			list, err := app.Service.Report(cmd.Context(), sh.Key, f)
			if err != nil {
				return err
			}
			if format == "csv" {
				return core.WriteReportCSV(out, list)
			}
			docs := make([]examDoc, 0, len(list))
			for _, e := range list {
				docs = append(docs, examDoc{
					ID:           e.ID,
					PatientName:  e.PatientName,
					ReceivedDate: formatDate(e.ReceivedDate, app.Location),
					WithdrawnBy:  e.WithdrawnBy,
					Observations: e.Observations,
					Attachments:  e.Attachments,
				})
			}
			return encode(out, format, docs)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format: csv, yaml or json")
	cmd.Flags().StringVar(&from, "from", "", "First received date (DD/MM/YYYY)")
	cmd.Flags().StringVar(&to, "to", "", "Last received date (DD/MM/YYYY)")
	cmd.Flags().StringVar(&withdrawnBy, "withdrawn-by", "", `Destination filter ("todos" for all)`)
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <sheet> <id>",
		Short: "Delete the record with the given id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.app(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			sh, err := app.Service.Sheet(args[0])
			if err != nil {
				return err
			}

			ctx := core.ContextWithUser(cmd.Context(), "labctl")
			var deleted bool
			if sh.Kind == records.KindExam {
				deleted, err = app.Service.DeleteExam(ctx, sh.Key, args[1])
			} else {
				deleted, err = app.Service.DeleteRecoleta(ctx, sh.Key, args[1])
			}
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("%w: %s in %s", sheetstore.ErrNotFound, args[1], sh.Key)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s from %s\n", args[1], sh.Key)
			return nil
		},
	}
}

func (c *cli) initSheetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-sheet <sheet>",
		Short: "Write the header row to an empty sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.app(cmd, false)
			if err != nil {
				return err
			}
			defer app.Close()

			written, err := app.Service.InitSheet(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if written {
				fmt.Fprintf(cmd.OutOrStdout(), "header written to %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already has data\n", args[0])
			}
			return nil
		},
	}
}

func encode(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var recoletaHeader = []string{"Paciente", "UBS", "Notificado", "OBS"}

func writeRecoletaCSV(w io.Writer, list []records.Recoleta) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recoletaHeader); err != nil {
		return err
	}
	for _, r := range list {
		notified := sheetstore.NotifiedNo
		if r.Notified {
			notified = sheetstore.NotifiedYes
		}
		if err := cw.Write([]string{r.PatientName, r.UBS, notified, r.Observations}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(sheetstore.DateLayout)
}

// parseDate reads a DD/MM/YYYY or YYYY-MM-DD flag; empty means no bound.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{sheetstore.DateLayout, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, use DD/MM/YYYY", s)
}
