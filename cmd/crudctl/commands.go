package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-crudmeta/internal/mockapi"
	"github.com/goliatone/go-crudmeta/pkg/actions"
	"github.com/goliatone/go-crudmeta/pkg/catalog"
	"github.com/goliatone/go-crudmeta/pkg/columns"
	"github.com/goliatone/go-crudmeta/pkg/form"
	"github.com/goliatone/go-crudmeta/pkg/model"
	"github.com/goliatone/go-crudmeta/pkg/openapiimport"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "crudctl",
		Short: "Browse and edit metadata driven entities from the terminal",
		Long: `crudctl drives entity admin screens described by metadata.

Examples:

  crudctl entities
  crudctl rows A
  crudctl create A
  crudctl action A 1 deactivate
  crudctl serve
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML config file")
	flags.StringVar(&a.baseURL, "base-url", "", "entity API base URL")
	flags.DurationVar(&a.timeout, "timeout", 10*time.Second, "request timeout")
	flags.StringVar(&a.catalog, "catalog", "", "catalog file or directory (offline and serve)")
	flags.StringVar(&a.themeName, "theme", "", "theme name")
	flags.StringVar(&a.variant, "variant", "", "theme variant")
	flags.BoolVar(&a.offline, "offline", false, "serve the catalog in process instead of calling the API")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log warnings and requests to stderr")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newEntitiesCmd(a),
		newRowsCmd(a),
		newCreateCmd(a),
		newEditCmd(a),
		newActionCmd(a),
		newImportCmd(a),
		newLintCmd(a),
		newServeCmd(a),
	)
	return root
}

func newEntitiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			admin, err := a.admin(cmd.Context(), "")
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tFORM\tAPI")
			for _, meta := range admin.Controller.State().Entities {
				kind := string(meta.FormType)
				if meta.FormType == model.FormComponent {
					kind += ":" + meta.Component
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", meta.ID, meta.Title, kind, meta.API)
			}
			return tw.Flush()
		},
	}
}

func newRowsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rows <entity>",
		Short: "List the rows of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := a.admin(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			state := admin.Controller.State()
			a.heading("%s (%d rows)", state.Active.Title, len(state.Rows))
			return writeRows(a, admin.Columns(), state.Rows)
		},
	}
}

func writeRows(a *app, defs []columns.ColumnDef, rows []model.Row) error {
	var data []columns.ColumnDef
	var actionsCol *columns.ActionsColumn
	for _, def := range defs {
		switch {
		case def.Actions != nil:
			actionsCol = def.Actions
		case !def.Hide:
			data = append(data, def)
		}
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	headers := []string{"ID"}
	for _, def := range data {
		headers = append(headers, strings.ToUpper(def.HeaderName))
	}
	if actionsCol != nil {
		headers = append(headers, strings.ToUpper(columns.ActionsHeader))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	for _, row := range rows {
		cells := []string{model.Stringify(row["id"])}
		for _, def := range data {
			cells = append(cells, model.Stringify(def.Cell(row)))
		}
		if actionsCol != nil {
			var ids []string
			for _, ctl := range actionsCol.Controls(row) {
				ids = append(ids, ctl.ActionID)
			}
			cells = append(cells, strings.Join(ids, ","))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <entity>",
		Short: "Fill the entity form and create a row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := a.admin(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f, err := admin.NewForm(form.ModeCreate, nil)
			if err != nil {
				return err
			}
			if _, err := a.filler().Submit(cmd.Context(), f); err != nil {
				return err
			}
			a.success("created, %s now has %d rows", args[0], len(admin.Controller.State().Rows))
			return nil
		},
	}
}

func newEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <entity> <id>",
		Short: "Fill the entity form for a row and update it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := a.admin(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			row, ok := admin.Row(args[1])
			if !ok {
				return fmt.Errorf("row %q not found in %s", args[1], args[0])
			}
			f, err := admin.NewForm(form.ModeEdit, row)
			if err != nil {
				return err
			}
			if _, err := a.filler().Submit(cmd.Context(), f); err != nil {
				return err
			}
			a.success("updated %s row %s", args[0], args[1])
			return nil
		},
	}
}

func newActionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "action <entity> <row-id> <action-id>",
		Short: "Run a row action",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			admin, err := a.admin(ctx, args[0])
			if err != nil {
				return err
			}
			cell, err := admin.Trigger(ctx, args[1], args[2])
			if err != nil {
				return err
			}
			if err := a.settle(ctx, cell); err != nil {
				return err
			}
			if err := cell.Err(); err != nil {
				return fmt.Errorf("action %s failed: %w", args[2], err)
			}
			a.success("action %s done", args[2])
			return nil
		},
	}
}

// settle drives the dialog a triggered action left open.
func (a *app) settle(ctx context.Context, cell *actions.Cell) error {
	dialog := cell.Dialog()
	if !dialog.Open {
		return nil
	}
	switch dialog.Kind {
	case actions.DialogConfirm:
		ok, err := a.filler().Confirm(ctx, dialog)
		if err != nil {
			_ = cell.Cancel()
			return err
		}
		if !ok {
			a.warn("cancelled")
			return cell.Cancel()
		}
		return cell.Confirm(ctx)
	case actions.DialogForm:
		_, err := a.filler().SubmitDialog(ctx, cell)
		return err
	default:
		return nil
	}
}

func newImportCmd(a *app) *cobra.Command {
	var id, title string
	cmd := &cobra.Command{
		Use:   "import <openapi-file> <operation-id>",
		Short: "Print a catalog entry built from an OpenAPI operation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := openapiimport.Entity(cmd.Context(), data, args[1],
				openapiimport.WithEntityID(id),
				openapiimport.WithTitle(title),
			)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(a.out)
			enc.SetIndent(2)
			if err := enc.Encode(map[string]any{"entities": []model.EntityConfig{cfg}}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "entity id (defaults to the last path segment)")
	cmd.Flags().StringVar(&title, "title", "", "entity title (defaults to the operation summary)")
	return cmd
}

func newLintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <openapi-file>...",
		Short: "Check x-crudmeta extensions in OpenAPI documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				violations, err := openapiimport.Lint(cmd.Context(), data)
				if err != nil {
					return fmt.Errorf("lint %s: %w", path, err)
				}
				for _, v := range violations {
					a.warn("%s: %s", path, v)
				}
				total += len(violations)
			}
			if total > 0 {
				return fmt.Errorf("%d extension violations", total)
			}
			a.success("no extension violations in %d documents", len(args))
			return nil
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	var listen string
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog as the reference entity API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := catalog.Load(a.cfg.Catalog)
			if err != nil {
				return err
			}
			addr := a.cfg.Listen
			if cmd.Flags().Changed("listen") {
				addr = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.success("serving %d entities on %s", len(cat.Entities()), addr)
			srv := mockapi.New(cat, mockapi.WithLogger(a.logger), mockapi.WithDelay(delay))
			if err := srv.Run(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "listen address")
	cmd.Flags().DurationVar(&delay, "delay", 0, "delay every option response")
	return cmd
}
