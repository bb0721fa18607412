package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
)

func commandWorkload(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: haymaker workload <list|install|info> [args]")
	}

	switch args[0] {
	case "list":
		return workloadList(args[1:])
	case "install":
		return workloadInstall(args[1:])
	case "info":
		return workloadInfo(args[1:])
	default:
		return fmt.Errorf("unknown workload subcommand: %s", args[0])
	}
}

func workloadList(args []string) error {
	fs := flag.NewFlagSet("workload list", flag.ExitOnError)
	format := fs.String("format", "text", "Output format: text or json")
	fs.Parse(args)

	app, closer, err := newApp()
	if err != nil {
		return err
	}
	defer closer()

	descs := app.registry.List()

	if *format == "json" {
		return printJSON(descs)
	}

	if len(descs) == 0 {
		fmt.Println("no workloads installed")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tDESCRIPTION")
	for _, d := range descs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Version, d.Description)
	}
	return w.Flush()
}

func workloadInstall(args []string) error {
	fs := flag.NewFlagSet("workload install", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: haymaker workload install <source>")
	}

	app, closer, err := newApp()
	if err != nil {
		return err
	}
	defer closer()

	desc, err := app.registry.Install(context.Background(), fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Printf("installed %s %s\n", desc.Name, desc.Version)
	return nil
}

func workloadInfo(args []string) error {
	fs := flag.NewFlagSet("workload info", flag.ExitOnError)
	format := fs.String("format", "text", "Output format: text or json")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: haymaker workload info <name>")
	}

	app, closer, err := newApp()
	if err != nil {
		return err
	}
	defer closer()

	desc, err := app.registry.Describe(fs.Arg(0))
	if err != nil {
		return err
	}

	if *format == "json" {
		return printJSON(desc)
	}

	fmt.Printf("name:        %s\n", desc.Name)
	fmt.Printf("version:     %s\n", desc.Version)
	if desc.Description != "" {
		fmt.Printf("description: %s\n", desc.Description)
	}
	fmt.Printf("entrypoint:  %s\n", desc.Entrypoint)
	for _, tgt := range desc.RequiredTargets {
		fmt.Printf("target:      %s", tgt.TargetType)
		if len(tgt.RequiredRoles) > 0 {
			fmt.Printf(" (roles: %v)", tgt.RequiredRoles)
		}
		fmt.Println()
	}
	return nil
}
