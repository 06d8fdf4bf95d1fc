package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-sorter",
	Short: "A tool for sorting photos by the person in them",
	Long: `Face Sorter splits a batch of photos into the ones that show a
target person and the ones that don't. It combines a trained identity
classifier with a cosine-similarity check against the target face,
using an external embedding server for face detection.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
