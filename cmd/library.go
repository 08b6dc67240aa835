package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the book library",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List books, most recently added first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		application, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer application.Close()

		books, err := application.Books.ListBooks(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tPAGES\tADDED")
		for _, b := range books {
			added := time.UnixMilli(b.DateAdded).Format("2006-01-02 15:04")
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", b.ID, b.Title, len(b.Pages), added)
		}
		return w.Flush()
	},
}

var (
	exportOutput    string
	exportToStorage bool
)

var libraryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the whole library as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		application, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer application.Close()

		if exportToStorage {
			key, url, err := application.Books.ExportLibraryToStorage(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, url)
			return nil
		}

		data, err := application.Books.ExportLibrary(ctx)
		if err != nil {
			return err
		}
		if exportOutput == "" || exportOutput == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOutput, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "library exported to %s\n", exportOutput)
		return nil
	},
}

var libraryImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a library export, replacing books with the same ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read library file: %w", err)
		}

		ctx, cancel := signalContext()
		defer cancel()

		application, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer application.Close()

		n, err := application.Books.ImportLibrary(ctx, data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d books imported\n", n)
		return nil
	},
}

var libraryDeleteCmd = &cobra.Command{
	Use:   "delete <book-id>...",
	Short: "Delete books and their stored source documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		application, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer application.Close()

		for _, bookID := range args {
			if err := application.Books.DeleteBook(ctx, bookID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", bookID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", bookID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	libraryCmd.AddCommand(libraryListCmd, libraryExportCmd, libraryImportCmd, libraryDeleteCmd)

	libraryExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	libraryExportCmd.Flags().BoolVar(&exportToStorage, "storage", false, "upload the export to the configured storage")
}
