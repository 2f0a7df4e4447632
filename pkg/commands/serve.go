package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keystone-orm/keystone/internal/cli/config"
	"github.com/keystone-orm/keystone/internal/inspector"
)

// NewServeCommand creates the serve command
func NewServeCommand(models []interface{}) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve metadata introspection over HTTP",
		Long: `Starts an HTTP server exposing the resolved metadata as JSON:
/classes, /classes/{name}, /classes/{name}/subclasses, /graph and
/warnings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(models)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = fmt.Sprintf("%s:%d", cfg.Inspector.Host, cfg.Inspector.Port)
			}

			log, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}

			srv := inspector.NewServer(mgr, log)
			log.Info("inspector listening", zap.String("addr", addr))
			return http.ListenAndServe(addr, srv)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to inspector config)")
	return cmd
}
