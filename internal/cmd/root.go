package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "surfacegen",
	Short: "A procedural PBR surface texture generator",
	Long: `SurfaceGen synthesizes ground materials (grass, dirt) as albedo,
normal and roughness maps.

It stacks octaves of smoothed random noise into a height field, colors it per
material and derives a tangent-space normal map, writing lossless PNGs or
storing the sets in a SQLite archive.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("resampler", "cubic", "Upsampling kernel (cubic, catmull-rom)")
	rootCmd.PersistentFlags().Uint64("memory-budget-mb", 0, "Refuse generations estimated above this many MiB (0 = unlimited)")

	for _, name := range []string{"verbose", "resampler", "memory-budget-mb"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// SURFACEGEN_GENERATE_SCALE sets generate.scale, SURFACEGEN_MEMORY_BUDGET_MB
	// sets memory-budget-mb.
	viper.SetEnvPrefix("SURFACEGEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
