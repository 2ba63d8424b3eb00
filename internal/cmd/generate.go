package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/surfacegen/internal/archive"
	"github.com/MeKo-Tech/surfacegen/internal/export"
	"github.com/MeKo-Tech/surfacegen/internal/generator"
	"github.com/MeKo-Tech/surfacegen/internal/material"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one material set",
	Long: `Generate albedo, normal and roughness maps for one material and write them
as <out>_Albedo.png, <out>_Normal.png and <out>_Roughness.png.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	d := generator.DefaultParams()
	generateCmd.Flags().StringP("material", "m", d.Material.String(), "Material (grass, dirt)")
	generateCmd.Flags().IntP("resolution", "r", d.Resolution, "Output size in pixels (1024, 2048, 4096, 8192, 16384)")
	generateCmd.Flags().StringP("out", "o", "", "Output base path (default: ./<material>)")
	generateCmd.Flags().Int("preview", 0, "Also write an albedo preview of this size (0 = off)")
	generateCmd.Flags().Bool("progress", true, "Print stage progress")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"generate.material", "material"},
		{"generate.resolution", "resolution"},
		{"generate.out", "out"},
		{"generate.preview", "preview"},
		{"generate.progress", "progress"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, generateCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}

	addParamFlags(generateCmd, "generate")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	p, err := paramsFromConfig("generate")
	if err != nil {
		return err
	}
	if p.Material, err = material.ParseKind(viper.GetString("generate.material")); err != nil {
		return err
	}
	p.Resolution = viper.GetInt("generate.resolution")
	if err := p.Validate(); err != nil {
		return err
	}

	out := viper.GetString("generate.out")
	if out == "" {
		out = p.Material.String()
	}
	exportOpts := export.Options{
		Compression: viper.GetString("generate.png_compression"),
		Preview:     viper.GetInt("generate.preview"),
	}
	if _, err := export.ParseCompression(exportOpts.Compression); err != nil {
		return err
	}
	showProgress := viper.GetBool("generate.progress")
	archivePath := viper.GetString("generate.archive")

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting generation",
		"material", p.Material.String(),
		"resolution", p.Resolution,
		"scale", p.NoiseScale,
		"octaves", p.Octaves,
		"out", out,
	)

	var onProgress generator.ProgressFunc
	if showProgress {
		onProgress = func(e generator.Event) {
			fmt.Fprintln(os.Stderr, e.Label)
		}
	}

	maps, err := generator.New(opts).Generate(ctx, p, onProgress)
	if err != nil {
		return fmt.Errorf("failed to generate %s: %w", p.Material, err)
	}

	paths, id, err := saveSet(ctx, store, maps, out, exportOpts)
	if err != nil {
		return err
	}

	logFields := []any{
		"albedo", paths.Albedo,
		"normal", paths.Normal,
		"roughness", paths.Roughness,
		"seed", maps.Seed,
		"elapsed", maps.Elapsed.Round(time.Millisecond),
	}
	if paths.Preview != "" {
		logFields = append(logFields, "preview", paths.Preview)
	}
	if id != "" {
		logFields = append(logFields, "archive_id", id)
	}
	logger.Info("Material set written", logFields...)
	fmt.Fprintf(os.Stderr, "Done! Generation took %.2fs\n", maps.Elapsed.Seconds())
	return nil
}

// saveSet writes the PNGs when base is set and archives the set when store
// is set.
func saveSet(ctx context.Context, store *archive.Store, maps *generator.Maps, base string, opts export.Options) (export.Paths, string, error) {
	var paths export.Paths
	if base != "" {
		var err error
		if paths, err = export.WriteSet(base, maps, opts); err != nil {
			return export.Paths{}, "", fmt.Errorf("failed to write set: %w", err)
		}
	}

	if store == nil {
		return paths, "", nil
	}
	encoded, err := export.EncodeSet(maps, opts.Compression)
	if err != nil {
		return paths, "", err
	}
	id, err := store.Put(ctx, archive.RecordFor(maps), encoded)
	if err != nil {
		return paths, "", fmt.Errorf("failed to archive set: %w", err)
	}
	return paths, id, nil
}
