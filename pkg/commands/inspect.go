package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keystone-orm/keystone/internal/cli/ui"
	"github.com/keystone-orm/keystone/internal/meta"

	merr "github.com/keystone-orm/keystone/internal/meta/errors"
)

// NewInspectCommand creates the inspect command
func NewInspectCommand(models []interface{}) *cobra.Command {
	var (
		showOrder bool
		noColor   bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [class]",
		Short: "Show resolved class metadata",
		Long: `Without arguments, inspect lists every registered class with its
identity type, inheritance strategy and table. With a class name it
prints the full member layout of that class.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(models)
			if err != nil {
				return err
			}

			if err := mgr.ResolveAll(); err != nil {
				renderError(err, noColor)
				return err
			}

			for _, warning := range mgr.Warnings() {
				ui.RenderMetaDataError(os.Stderr, warning, noColor)
			}

			if len(args) == 1 {
				return inspectClass(mgr, args[0], noColor)
			}

			if showOrder {
				ordered, err := mgr.OrderedReferencedClasses()
				if err != nil {
					renderError(err, noColor)
					return err
				}
				for i, class := range ordered {
					fmt.Printf("%3d. %s\n", i+1, class.FullName)
				}
				return nil
			}

			ui.RenderClassList(os.Stdout, mgr.Classes(), noColor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showOrder, "order", false, "print classes in dependency order")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func inspectClass(mgr *meta.MetaDataManager, name string, noColor bool) error {
	cmd, err := mgr.MetaDataForClass(name)
	if err != nil {
		var mdErr *merr.MetaDataError
		if errors.As(err, &mdErr) && mdErr.Code == merr.ErrClassNotRegistered {
			var known []string
			for _, c := range mgr.Classes() {
				known = append(known, c.FullName)
			}
			ui.RenderUnknownClass(os.Stderr, name, known, noColor)
			return err
		}
		renderError(err, noColor)
		return err
	}

	return ui.RenderClassDetail(os.Stdout, cmd, noColor)
}

func renderError(err error, noColor bool) {
	var mdErr *merr.MetaDataError
	if errors.As(err, &mdErr) {
		ui.RenderMetaDataError(os.Stderr, mdErr, noColor)
		return
	}
	fmt.Fprintln(os.Stderr, err)
}
