// Package commands implements the keystone CLI. Applications embed it by
// passing their model types to NewRootCommand and wiring the result into
// their own main.
package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keystone-orm/keystone/internal/cli/config"
	"github.com/keystone-orm/keystone/internal/introspect"
	"github.com/keystone-orm/keystone/internal/meta"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// NewRootCommand creates the root command over the given model types
func NewRootCommand(models ...interface{}) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "keystone",
		Short: "Keystone metadata and schema tooling",
		Long: color.CyanString(`Keystone - persistence metadata for Go structs

Keystone resolves entity metadata from tagged Go structs: identity,
inheritance, discriminators, versioning and member layout. The resolved
model drives schema generation and runtime introspection.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewInspectCommand(models))
	rootCmd.AddCommand(NewSchemaCommand(models))
	rootCmd.AddCommand(NewServeCommand(models))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)

			titleColor.Print("Keystone version: ")
			valueColor.Println(Version)

			titleColor.Print("Git commit: ")
			valueColor.Println(GitCommit)

			titleColor.Print("Build date: ")
			valueColor.Println(BuildDate)

			titleColor.Print("Go version: ")
			valueColor.Println(goVer)
		},
	}
}

// newManager builds a manager from keystone.yml and registers the models
func newManager(models []interface{}) (*meta.MetaDataManager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	tree, err := meta.ParseTreeStrategy(cfg.Metadata.TreeStrategy)
	if err != nil {
		return nil, err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	mgr := meta.NewMetaDataManager(
		meta.WithTreeStrategy(tree),
		meta.WithEnhancing(cfg.Metadata.Enhancing),
		meta.WithLogger(log),
	)

	if len(models) > 0 {
		if err := introspect.RegisterAll(mgr, models...); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}
