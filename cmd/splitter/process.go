package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"invoicesplit/internal/domain"
	"invoicesplit/internal/export"
	"invoicesplit/internal/port"
	"invoicesplit/internal/service"
	"invoicesplit/internal/settlement"
)

type processOptions struct {
	itemsA []int
	itemsB []int
	nameA  string
	nameB  string
	output string
	export string
}

var procOpts processOptions

var processCmd = &cobra.Command{
	Use:   "process <file.pdf|s3://bucket/key>",
	Short: "Extract an invoice and print the split",
	Long: `Extract the line items of one invoice, assign them with --a and --b
(zero-based item indices) and print the totals and settlement.

Examples:
  splitter process receipt.pdf
  splitter process receipt.pdf --a 0,2 --b 1 --names Ana,Ben
  splitter process s3://invoices/march.pdf --a 0 -o json --export split.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		return runProcess(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), a, args[0], procOpts)
	},
}

func init() {
	var names string
	processCmd.Flags().IntSliceVar(&procOpts.itemsA, "a", nil, "item indices assigned to the first person")
	processCmd.Flags().IntSliceVar(&procOpts.itemsB, "b", nil, "item indices assigned to the second person")
	processCmd.Flags().StringVar(&names, "names", "", "display names as first,second")
	processCmd.Flags().StringVarP(&procOpts.output, "output", "o", "table", "output format: table, json or yaml")
	processCmd.Flags().StringVar(&procOpts.export, "export", "", "write a .csv or .xlsx export to a file or s3:// URI")
	processCmd.PreRunE = func(_ *cobra.Command, _ []string) error {
		if names == "" {
			return nil
		}
		parts := strings.SplitN(names, ",", 2)
		procOpts.nameA = strings.TrimSpace(parts[0])
		if len(parts) == 2 {
			procOpts.nameB = strings.TrimSpace(parts[1])
		}
		return nil
	}
	rootCmd.AddCommand(processCmd)
}

func runProcess(ctx context.Context, stdout, stderr io.Writer, a *app, source string, opts processOptions) error {
	if err := checkAssignments(opts.itemsA, opts.itemsB); err != nil {
		return err
	}
	switch opts.output {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}

	session, err := a.svc.Create(ctx, domain.Names{A: opts.nameA, B: opts.nameB})
	if err != nil {
		return err
	}

	input := submitInputFor(source)
	session, err = a.svc.Submit(ctx, session.ID, input)
	if err != nil {
		if session != nil && session.Failure != nil && session.Failure.Raw != "" {
			fmt.Fprintf(stderr, "model response:\n%s\n", session.Failure.Raw)
		}
		return err
	}
	for _, w := range session.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}

	if session.IsEmptyInvoice() {
		fmt.Fprintln(stdout, "No line items were found on this invoice.")
		return nil
	}

	summary, err := assign(ctx, a, session.ID, opts)
	if err != nil {
		return err
	}

	if err := writeSummary(stdout, opts.output, summary); err != nil {
		return err
	}

	if opts.export != "" {
		return writeExport(ctx, stderr, a, session.ID, opts.export)
	}
	return nil
}

func submitInputFor(source string) service.SubmitInput {
	if port.IsObjectURI(source) {
		return service.SubmitInput{URI: source}
	}
	return service.SubmitInput{Path: source}
}

// checkAssignments rejects an index given to both people.
func checkAssignments(itemsA, itemsB []int) error {
	seen := make(map[int]bool, len(itemsA))
	for _, idx := range itemsA {
		seen[idx] = true
	}
	for _, idx := range itemsB {
		if seen[idx] {
			return fmt.Errorf("item %d is assigned to both people", idx)
		}
	}
	return nil
}

func assign(ctx context.Context, a *app, id uuid.UUID, opts processOptions) (*settlement.Summary, error) {
	toggle := func(p domain.Participant, indices []int) error {
		done := make(map[int]bool, len(indices))
		for _, idx := range indices {
			if done[idx] {
				continue
			}
			done[idx] = true
			if _, err := a.svc.Toggle(ctx, id, p, idx); err != nil {
				return err
			}
		}
		return nil
	}
	if err := toggle(domain.ParticipantA, opts.itemsA); err != nil {
		return nil, err
	}
	if err := toggle(domain.ParticipantB, opts.itemsB); err != nil {
		return nil, err
	}
	return a.svc.Summary(ctx, id)
}

func writeSummary(w io.Writer, format string, s *settlement.Summary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeTable(w, s)
	}
}

func writeTable(w io.Writer, s *settlement.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tITEM\tPRICE\tASSIGNED TO")
	for _, item := range s.Items {
		owner := ""
		if item.Owner != "" {
			owner = s.Names.Of(item.Owner)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", item.Index, item.Name, settlement.FormatMoney(item.Price, s.Currency), owner)
	}
	fmt.Fprintln(tw, "\t\t\t")
	fmt.Fprintf(tw, "\tTotal %s\t%s\t\n", s.Names.A, settlement.FormatMoney(s.Totals.A, s.Currency))
	fmt.Fprintf(tw, "\tTotal %s\t%s\t\n", s.Names.B, settlement.FormatMoney(s.Totals.B, s.Currency))
	fmt.Fprintf(tw, "\tUnassigned\t%s\t\n", settlement.FormatMoney(s.Totals.Unassigned, s.Currency))
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s\n", s.Message)
	return err
}

// writeExport renders the split and stores it at target, a local path or an
// s3:// URI. The format follows the target's extension.
func writeExport(ctx context.Context, stderr io.Writer, a *app, id uuid.UUID, target string) error {
	format, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(target), "."))
	if err != nil {
		return err
	}
	out, err := a.svc.Export(ctx, id, format)
	if err != nil {
		return err
	}

	if !port.IsObjectURI(target) {
		if err := os.WriteFile(target, out.Data, 0o644); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		fmt.Fprintf(stderr, "exported %s\n", target)
		return nil
	}

	if a.storage == nil {
		return fmt.Errorf("cannot export to %s: S3 is not configured", target)
	}
	uri, err := port.ParseObjectURI(target)
	if err != nil {
		return err
	}
	if _, err := a.storage.Upload(ctx, port.UploadInput{
		Bucket:      uri.Bucket,
		Key:         uri.Key,
		Body:        bytes.NewReader(out.Data),
		ContentType: out.ContentType,
	}); err != nil {
		return fmt.Errorf("uploading export: %w", err)
	}
	fmt.Fprintf(stderr, "exported %s\n", uri)
	return nil
}
