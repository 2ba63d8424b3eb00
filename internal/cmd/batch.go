package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/surfacegen/internal/archive"
	"github.com/MeKo-Tech/surfacegen/internal/export"
	"github.com/MeKo-Tech/surfacegen/internal/generator"
	"github.com/MeKo-Tech/surfacegen/internal/worker"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate many material sets in parallel",
	Long: `Generate every combination of --materials × --resolutions, --count times each,
using a pool of workers. Each set is written under --out-dir and/or stored in
--archive.`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("materials", "grass,dirt", "Comma separated materials")
	batchCmd.Flags().String("resolutions", "1024", "Comma separated output sizes")
	batchCmd.Flags().Int("count", 1, "Sets per material and resolution")
	batchCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: min(CPUs, 2))")
	batchCmd.Flags().String("out-dir", "./out", "Output directory (empty = archive only)")
	batchCmd.Flags().Bool("progress", true, "Show progress bar")
	batchCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some sets fail")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"batch.materials", "materials"},
		{"batch.resolutions", "resolutions"},
		{"batch.count", "count"},
		{"batch.workers", "workers"},
		{"batch.out_dir", "out-dir"},
		{"batch.progress", "progress"},
		{"batch.allow_failures", "allow-failures"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, batchCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}

	addParamFlags(batchCmd, "batch")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	base, err := paramsFromConfig("batch")
	if err != nil {
		return err
	}
	materials, err := parseMaterials(viper.GetString("batch.materials"))
	if err != nil {
		return err
	}
	resolutions, err := parseResolutions(viper.GetString("batch.resolutions"))
	if err != nil {
		return err
	}

	outDir := viper.GetString("batch.out_dir")
	archivePath := viper.GetString("batch.archive")
	if outDir == "" && archivePath == "" {
		return fmt.Errorf("nothing to write: set --out-dir and/or --archive")
	}
	exportOpts := export.Options{Compression: viper.GetString("batch.png_compression")}
	if _, err := export.ParseCompression(exportOpts.Compression); err != nil {
		return err
	}

	tasks, err := worker.Plan{
		Base:        base,
		OutDir:      outDir,
		Materials:   materials,
		Resolutions: resolutions,
		Count:       viper.GetInt("batch.count"),
	}.Tasks()
	if err != nil {
		return err
	}

	// Each worker holds a full set in memory.
	workers := viper.GetInt("batch.workers")
	if workers <= 0 {
		workers = min(runtime.NumCPU(), 2)
	}

	opts, err := newGeneratorOptions()
	if err != nil {
		return err
	}

	var store *archive.Store
	if archivePath != "" {
		if store, err = archive.New(archivePath); err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer store.Close()
	}

	logger.Info("Starting batch generation",
		"materials", viper.GetString("batch.materials"),
		"resolutions", viper.GetString("batch.resolutions"),
		"sets", len(tasks),
		"workers", workers,
		"out_dir", outDir,
		"archive", archivePath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := worker.NewProgress(tasks, viper.GetBool("batch.progress"))
	pool := worker.New(worker.Config{
		Workers: workers,
		NewGenerator: func() worker.Generator {
			return generator.New(opts)
		},
		Sink: worker.SinkFunc(func(ctx context.Context, task worker.Task, maps *generator.Maps) (string, error) {
			paths, id, err := saveSet(ctx, store, maps, task.Out, exportOpts)
			if err != nil {
				return "", err
			}
			var loc []string
			if paths.Albedo != "" {
				loc = append(loc, export.BaseName(task.Out))
			}
			if id != "" {
				loc = append(loc, "archive:"+id)
			}
			return strings.Join(loc, " "), nil
		}),
		OnProgress: progress.Complete,
		OnStage:    progress.Observe,
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failedCount int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Set generation failed", "set", r.Task.Name, "error", r.Err)
			continue
		}
		logger.Debug("Set generated", "set", r.Task.Name, "seed", r.Seed, "location", r.Location, "elapsed", r.Elapsed)
	}

	logger.Info(progress.Summary())

	if failedCount > 0 {
		if viper.GetBool("batch.allow_failures") {
			logger.Warn("Some sets failed to generate, but continuing due to --allow-failures flag", "failed_count", failedCount)
			return nil
		}
		return fmt.Errorf("%d sets failed to generate", failedCount)
	}
	return nil
}
