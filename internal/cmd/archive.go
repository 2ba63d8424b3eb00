package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/surfacegen/internal/archive"
	"github.com/MeKo-Tech/surfacegen/internal/export"
	"github.com/MeKo-Tech/surfacegen/internal/generator"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect and export archived material sets",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived sets, newest first",
	Args:  cobra.NoArgs,
	RunE:  runArchiveList,
}

var archiveExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write an archived set as PNG files",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveExport,
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveListCmd, archiveExportCmd)

	archiveCmd.PersistentFlags().String("archive", "sets.db", "SQLite archive path")
	archiveExportCmd.Flags().StringP("out", "o", "", "Output base path (default: ./<material>_<id>)")

	if err := viper.BindPFlag("archive.path", archiveCmd.PersistentFlags().Lookup("archive")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
	if err := viper.BindPFlag("archive.out", archiveExportCmd.Flags().Lookup("out")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	store, err := archive.OpenReader(viper.GetString("archive.path"))
	if err != nil {
		return err
	}
	defer store.Close()

	sets, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	return printSets(cmd.OutOrStdout(), sets)
}

func printSets(w io.Writer, sets []archive.SetRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMATERIAL\tRESOLUTION\tSEED\tCREATED\tELAPSED")
	for _, s := range sets {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.ID, s.Material, s.Resolution, s.Seed,
			s.CreatedAt.Local().Format(time.DateTime), s.Elapsed.Round(time.Millisecond))
	}
	return tw.Flush()
}

func runArchiveExport(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	store, err := archive.OpenReader(viper.GetString("archive.path"))
	if err != nil {
		return err
	}
	defer store.Close()

	paths, err := exportArchived(cmd.Context(), store, args[0], viper.GetString("archive.out"))
	if err != nil {
		return err
	}
	logger.Info("Archived set exported", "id", args[0], "files", paths)
	return nil
}

// exportArchived copies the stored PNGs of one set to <base>_<Kind>.png.
func exportArchived(ctx context.Context, store *archive.Store, id, base string) ([]string, error) {
	rec, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if base == "" {
		base = rec.Material + "_" + id
	}
	if dir := filepath.Dir(export.BaseName(base)); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	var written []string
	for _, kind := range generator.MapKinds() {
		data, err := store.Map(ctx, id, kind)
		if err != nil {
			return nil, err
		}
		path := export.PathFor(base, kind)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
