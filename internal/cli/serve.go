package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	logcrafterrors "github.com/seungwoo7050/logcrafter/internal/errors"
	"github.com/seungwoo7050/logcrafter/internal/logging"
	"github.com/seungwoo7050/logcrafter/internal/server"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest, query and IRC listeners in the foreground",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	log := logging.New(cfg.LogLevel)

	if err := cfg.EnsurePersistenceDirectory(); err != nil {
		return logcrafterrors.New(logcrafterrors.TypeFileSystem, logcrafterrors.ComponentPersistence, "cannot create persistence directory").
			WithCause(err.Error()).
			WithSolutions("Check permissions on persistence.directory", "Choose a writable directory in logcrafter.yaml")
	}

	srv, err := server.New(cfg, log)
	if err != nil {
		return logcrafterrors.New(logcrafterrors.TypeConfiguration, logcrafterrors.ComponentConfig, "failed to construct server").
			WithCause(err.Error())
	}

	if err := srv.Start(); err != nil {
		return logcrafterrors.New(logcrafterrors.TypeNetwork, logcrafterrors.ComponentIngest, "failed to start server").
			WithCause(err.Error()).
			WithSolutions("Check that log_port, query_port and irc.port are free", "Run with a different port via --log-port/--query-port")
	}

	logcrafterrors.DisplaySuccess("logcrafterd is running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	logcrafterrors.DisplayWarning("received " + sig.String() + ", shutting down")
	srv.Shutdown()
	logcrafterrors.DisplayInfo("logcrafterd stopped")
	return nil
}
