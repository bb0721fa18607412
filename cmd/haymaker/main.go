// Command haymaker deploys and manages agent workloads: long-running
// simulated activity against real or simulated environments, driven through
// a uniform lifecycle regardless of what each workload provisions.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/agent-haymaker/haymaker/internal/config"
	"github.com/agent-haymaker/haymaker/internal/credentials"
	"github.com/agent-haymaker/haymaker/internal/orchestrator"
	"github.com/agent-haymaker/haymaker/internal/registry"
	"github.com/agent-haymaker/haymaker/internal/store"
	"github.com/agent-haymaker/haymaker/internal/workload"
	"github.com/agent-haymaker/haymaker/internal/workloads/filesim"
)

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "deploy":
		err = commandDeploy(args)
	case "status":
		err = commandStatus(args)
	case "list":
		err = commandList(args)
	case "logs":
		err = commandLogs(args)
	case "stop":
		err = commandStop(args)
	case "start":
		err = commandStart(args)
	case "cleanup":
		err = commandCleanup(args)
	case "workload":
		err = commandWorkload(args)
	case "serve":
		err = commandServe(args)
	case "version", "--version", "-v":
		fmt.Printf("haymaker %s\n", buildVersion)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: haymaker <command> [flags]

Commands:
  deploy     Deploy a workload
  status     Show deployment status
  list       List deployments
  logs       Show deployment logs
  stop       Stop a running deployment
  start      Resume a stopped deployment
  cleanup    Delete all resources for a deployment
  workload   Manage installed workloads (list, install, info)
  serve      Run the HTTP API server
  version    Print version

Run 'haymaker <command> -h' for command flags.
`)
}

// app bundles the platform services every command needs.
type app struct {
	cfg      config.Config
	registry *registry.Registry
	store    store.Store
	orch     *orchestrator.Orchestrator
}

// newApp wires configuration, the record store, and the workload registry.
// The returned closer must be invoked before exit.
func newApp() (*app, func(), error) {
	// A local .env is a convenience for development setups; absence is fine.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	env := workload.Env{
		Credentials: credentials.Default(),
		Logger:      logger,
		DataDir:     cfg.DataDir,
	}

	reg, err := registry.New(env, cfg.CatalogPath(), []registry.Builtin{
		{Descriptor: filesim.Descriptor(), Factory: filesim.New},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load workload registry: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open deployment database: %w", err)
	}

	closer := func() {
		if err := st.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}

	return &app{
		cfg:      cfg,
		registry: reg,
		store:    st,
		orch:     orchestrator.New(reg, st, logger),
	}, closer, nil
}
