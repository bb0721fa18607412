package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/agent-haymaker/haymaker/internal/store"
)

func commandStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	format := fs.String("format", "text", "Output format: text or json")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: haymaker status <deployment-id> [flags]")
	}

	app, closer, err := newApp()
	if err != nil {
		return err
	}
	defer closer()

	res, err := app.orch.Status(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}

	if *format == "json" {
		return printJSON(res)
	}

	rec := res.Record
	fmt.Printf("deployment:  %s\n", rec.DeploymentID)
	fmt.Printf("workload:    %s\n", rec.WorkloadName)
	fmt.Printf("status:      %s\n", rec.Status)
	if rec.Phase != "" {
		fmt.Printf("phase:       %s\n", rec.Phase)
	}
	if rec.Error != "" {
		fmt.Printf("error:       %s\n", rec.Error)
	}
	fmt.Printf("created:     %s\n", rec.CreatedAt.Local().Format(time.RFC3339))
	fmt.Printf("updated:     %s\n", rec.UpdatedAt.Local().Format(time.RFC3339))
	if res.Stale {
		fmt.Println("(workload unreachable; showing last recorded state)")
	}
	return nil
}

func commandList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	workloadName := fs.String("workload", "", "Filter by workload name")
	status := fs.String("status", "", "Filter by status")
	limit := fs.Int("limit", 0, "Maximum records to show")
	format := fs.String("format", "text", "Output format: text or json")
	fs.Parse(args)

	app, closer, err := newApp()
	if err != nil {
		return err
	}
	defer closer()

	records, err := app.orch.List(context.Background(), store.ListFilter{
		WorkloadName: *workloadName,
		Status:       *status,
	}, *limit)
	if err != nil {
		return err
	}

	if *format == "json" {
		return printJSON(records)
	}

	if len(records) == 0 {
		fmt.Println("no deployments")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEPLOYMENT\tWORKLOAD\tSTATUS\tCREATED")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.DeploymentID, rec.WorkloadName, rec.Status,
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func commandLogs(args []string) error {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	follow := fs.Bool("follow", false, "Stream new lines as they arrive")
	lines := fs.Int("lines", 100, "Number of recent lines to show")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: haymaker logs <deployment-id> [flags]")
	}

	app, closer, err := newApp()
	if err != nil {
		return err
	}
	defer closer()

	// Ctrl-C ends a follow cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream, err := app.orch.Logs(ctx, fs.Arg(0), *follow, *lines)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		line, err := stream.Next(ctx)
		if err == io.EOF || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println(line)
	}
}

func commandStop(args []string) error {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: haymaker stop <deployment-id> [flags]")
	}
	id := fs.Arg(0)

	ok, err := confirmAction(*yes, fmt.Sprintf("Stop deployment %s?", id))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("aborted")
		return nil
	}

	app, closer, err := newApp()
	if err != nil {
		return err
	}
	defer closer()

	changed, err := app.orch.Stop(context.Background(), id)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Printf("%s is already stopped\n", id)
		return nil
	}
	fmt.Printf("stopped %s\n", id)
	return nil
}

func commandStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: haymaker start <deployment-id>")
	}
	id := fs.Arg(0)

	app, closer, err := newApp()
	if err != nil {
		return err
	}
	defer closer()

	changed, err := app.orch.Start(context.Background(), id)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Printf("%s is already running\n", id)
		return nil
	}
	fmt.Printf("started %s\n", id)
	return nil
}

func commandCleanup(args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Preview what would be deleted")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	format := fs.String("format", "text", "Output format: text or json")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: haymaker cleanup <deployment-id> [flags]")
	}
	id := fs.Arg(0)

	if !*dryRun {
		ok, err := confirmAction(*yes, fmt.Sprintf("This permanently deletes all resources for %s. Continue?", id))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}
	}

	app, closer, err := newApp()
	if err != nil {
		return err
	}
	defer closer()

	report, err := app.orch.Cleanup(context.Background(), id, *dryRun)
	if err != nil {
		return err
	}

	if *format == "json" {
		return printJSON(report)
	}

	if *dryRun {
		fmt.Println("dry run; nothing deleted")
		for _, d := range report.Details {
			fmt.Printf("  %s\n", d)
		}
		return nil
	}

	fmt.Printf("cleaned up %s: %d resources deleted", id, report.ResourcesDeleted)
	if report.ResourcesFailed > 0 {
		fmt.Printf(", %d failed", report.ResourcesFailed)
	}
	fmt.Printf(" (%.1fs)\n", report.DurationSeconds)
	for _, e := range report.Errors {
		fmt.Fprintf(os.Stderr, "  error: %s\n", e)
	}
	return nil
}
