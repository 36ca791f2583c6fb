package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/report"
)

const pollInterval = 500 * time.Millisecond

type scanFlags struct {
	maxPages     int
	asJSON       bool
	allowPrivate bool
}

func newScanCommand(opts *options) *cobra.Command {
	var f scanFlags
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan a site once and print its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if f.allowPrivate {
				cfg.Guard.AllowPrivate = true
			}
			var maxPages *int
			if cmd.Flags().Changed("max-pages") {
				maxPages = &f.maxPages
			}
			logger, flush := newLogger(cfg.LogLevel, "a11yscan")
			defer flush()
			return runScan(cmd.Context(), opts, cfg, logger, args[0], maxPages, f.asJSON)
		},
	}
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "pages to audit (clamped to the configured limit)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&f.allowPrivate, "allow-private", false, "allow private and loopback targets (local testing only)")
	return cmd
}

func runScan(ctx context.Context, opts *options, cfg *app.Config, logger logging.Logger, target string, maxPages *int, asJSON bool) error {
	a, err := opts.newApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("shutdown", logging.Err(err))
		}
	}()

	res, err := a.Service.Submit(ctx, target, maxPages)
	if err != nil {
		return err
	}
	if !asJSON {
		fmt.Fprintf(opts.out, "Scan %s queued for %s\n", res.PublicID, target)
	}

	view, err := waitForScan(ctx, a, res.PublicID, opts.out, !asJSON)
	if err != nil {
		return err
	}

	rep, err := a.Service.Report(ctx, res.PublicID)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(opts.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else {
		printReport(opts.out, rep)
	}

	if view.Status == model.ScanFailed {
		return fmt.Errorf("scan failed: %s", view.ErrorMessage)
	}
	return nil
}

// waitForScan follows job events for progress output and polls the store
// until the scan is terminal.
func waitForScan(ctx context.Context, a *app.Application, publicID string, out io.Writer, progress bool) (*report.ScanView, error) {
	events, cancel := a.Events.Subscribe(publicID)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		view, err := a.Service.Status(ctx, publicID)
		if err != nil {
			return nil, err
		}
		if view.Status.Terminal() {
			return view, nil
		}

		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if progress && ev.Type == app.JobEventProgress {
				fmt.Fprintf(out, "  audited %d/%d pages\n", ev.Processed, ev.Total)
			}
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func printReport(w io.Writer, rep *report.ScanReport) {
	s := rep.Summary
	fmt.Fprintf(w, "\nScan %s %s\n", rep.PublicID, rep.Status)
	if rep.Score != nil {
		fmt.Fprintf(w, "Score: %d (%s), reliability %s\n", rep.Score.Score, rep.Score.Label, rep.Score.Reliability.Level)
	}
	fmt.Fprintf(w, "Pages: %d total, %d audited, %d failed, %d skipped\n",
		s.TotalPages, s.SuccessPages, s.FailedPages, s.SkippedPages)

	counts := make([]string, 0, len(model.Severities))
	for _, sev := range model.Severities {
		counts = append(counts, fmt.Sprintf("%s %d", sev, s.SeverityCounts[sev]))
	}
	fmt.Fprintf(w, "Violations: %d (%s)\n", s.TotalViolations, strings.Join(counts, ", "))
	fmt.Fprintf(w, "Needs review: %d\n", s.NeedsReview)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(rep.TopRules) > 0 {
		fmt.Fprintln(tw, "\nRULE\tIMPACT\tPAGES\tNODES\tSTANDARDS")
		for _, r := range rep.TopRules {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.RuleID, r.Impact, r.Pages, r.Nodes, strings.Join(r.Standard, ", "))
		}
	}

	fmt.Fprintln(tw, "\nPAGE\tSTATUS\tDETAIL")
	for _, p := range rep.Pages {
		detail := fmt.Sprintf("%d violations, %d to review", len(p.Violations), len(p.Incompletes))
		if p.Status != model.PageSuccess {
			detail = strings.TrimSpace(fmt.Sprintf("%s %s", p.ErrorCode, p.ErrorMessage))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.URL, p.Status, detail)
	}
	_ = tw.Flush()
}
