package main

import (
	"flag"
	"os"

	"github.com/agent-haymaker/haymaker/internal/api"
	"github.com/agent-haymaker/haymaker/internal/config"
)

func commandServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides HAYMAKER_LISTEN_ADDR)")
	fs.Parse(args)

	app, closer, err := newApp()
	if err != nil {
		return err
	}
	defer closer()

	listen := app.cfg.ListenAddr
	if *addr != "" {
		listen = *addr
	}

	logger := config.NewLogger(os.Stdout, app.cfg.LogLevel)
	srv := api.NewServer(listen, app.orch, app.registry, logger)
	return srv.Run()
}
