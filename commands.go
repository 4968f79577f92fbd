package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pagebuilder/internal/app"
	"pagebuilder/internal/registry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the builder over MCP on stdin/stdout",
	Long: `Starts the MCP server on stdin/stdout. Autosave, the export directory
watcher and the metrics endpoint run as configured. Dirty documents are
saved on exit.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List the registered component types",
	Args:  cobra.NoArgs,
	RunE:  listComponents,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE:  listDocuments,
}

var newCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create an empty document",
	Args:  cobra.ExactArgs(1),
	RunE:  newDocument,
}

var importName string

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Store a builder JSON file as a new document",
	Args:  cobra.ExactArgs(1),
	RunE:  importDocument,
}

var exportCmd = &cobra.Command{
	Use:   "export [document-id] [file]",
	Short: "Write a document's builder JSON to a file or stdout",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  exportDocument,
}

func init() {
	importCmd.Flags().StringVarP(&importName, "name", "n", "", "Document name (default: file name)")
}

// withApp builds the app, runs fn and shuts the app down again.
func withApp(ctx context.Context, fn func(*app.App) error) (err error) {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := a.Shutdown(shutdownCtx); serr != nil && err == nil {
			err = serr
		}
	}()
	return fn(a)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return withApp(ctx, func(a *app.App) error {
		if err := a.Startup(ctx); err != nil {
			return err
		}
		logger.Info("serving MCP on stdio", zap.String("dataDir", cfg.DataDir))
		return a.ServeMCP(ctx, os.Stdin, os.Stdout)
	})
}

func listComponents(cmd *cobra.Command, args []string) error {
	cat, err := registry.Default()
	if cfg.Registry.CatalogPath != "" {
		cat, err = registry.LoadFile(cfg.Registry.CatalogPath)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tTYPE\tNAME\tCHILDREN")
	byCat := cat.ListByCategory()
	cats := make([]string, 0, len(byCat))
	for c := range byCat {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		for _, e := range byCat[c] {
			children := "-"
			if e.CanHaveChildren {
				children = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c, e.Type, e.Name, children)
		}
	}
	return w.Flush()
}

func listDocuments(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		docs, err := a.ListDocuments()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSLUG\tSTATUS\tBLOCKS\tUPDATED")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				d.ID, d.Name, d.Slug, d.Status, len(d.Content.Blocks), d.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	})
}

func newDocument(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		rec, err := a.CreateDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", rec.ID, rec.Slug)
		return nil
	})
}

func importDocument(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		rec, err := a.ImportFile(cmd.Context(), args[0], importName)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s (%d blocks)\n", args[0], rec.ID, len(rec.Content.Blocks))
		return nil
	})
}

func exportDocument(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(a *app.App) error {
		if len(args) == 1 {
			return a.ExportDocument(args[0], cmd.OutOrStdout())
		}
		if err := a.ExportFile(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", args[0], args[1])
		return nil
	})
}
