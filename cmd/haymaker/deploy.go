package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/agent-haymaker/haymaker/internal/model"
	"github.com/agent-haymaker/haymaker/internal/orchestrator"
)

func commandDeploy(args []string) error {
	fs := flag.NewFlagSet("deploy", flag.ExitOnError)
	var configPairs, tagPairs stringList
	fs.Var(&configPairs, "c", "Workload config as key=value (repeatable)")
	fs.Var(&configPairs, "config", "Workload config as key=value (repeatable)")
	fs.Var(&tagPairs, "tag", "Deployment tag as key=value (repeatable)")
	var duration int
	fs.IntVar(&duration, "duration", 0, "Advisory run duration in hours")
	fs.IntVar(&duration, "d", 0, "Advisory run duration in hours (shorthand)")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	format := fs.String("format", "text", "Output format: text or json")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: haymaker deploy <workload> [flags]")
	}
	name := fs.Arg(0)

	workloadCfg, err := parseConfigPairs(configPairs)
	if err != nil {
		return err
	}
	tags, err := parseTagPairs(tagPairs)
	if err != nil {
		return err
	}

	cfg := model.DeploymentConfig{
		WorkloadName:   name,
		Tags:           tags,
		WorkloadConfig: workloadCfg,
	}
	if duration > 0 {
		cfg.DurationHours = &duration
	}

	if !*yes && isTerminal() {
		fmt.Printf("Deploy workload %s", name)
		if len(workloadCfg) > 0 {
			fmt.Printf(" with config %s", formatConfig(workloadCfg))
		}
		fmt.Print("? [y/N] ")
		if !readConfirmation() {
			fmt.Println("aborted")
			return nil
		}
	}

	appCtx, closer, err := newApp()
	if err != nil {
		return err
	}
	defer closer()

	rec, err := appCtx.orch.Deploy(context.Background(), cfg)

	var verr *orchestrator.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintln(os.Stderr, "config validation failed:")
		for _, msg := range verr.Errors {
			fmt.Fprintf(os.Stderr, "  - %s\n", msg)
		}
		return errors.New("deployment rejected")
	}
	if err != nil {
		return err
	}

	if *format == "json" {
		return printJSON(rec)
	}
	fmt.Printf("deployed %s (workload %s, status %s)\n", rec.DeploymentID, rec.WorkloadName, rec.Status)
	return nil
}

func formatConfig(cfg map[string]any) string {
	parts := make([]string, 0, len(cfg))
	for k, v := range cfg {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirmAction gates a state-changing command behind a prompt. It returns
// true when the command may proceed: either yes was passed, or the user
// answered the prompt affirmatively. Non-interactive sessions must pass yes.
func confirmAction(yes bool, prompt string) (bool, error) {
	if yes {
		return true, nil
	}
	if !isTerminal() {
		return false, errors.New("confirmation required; pass --yes in a non-interactive session")
	}
	fmt.Printf("%s [y/N] ", prompt)
	return readConfirmation(), nil
}

func readConfirmation() bool {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
