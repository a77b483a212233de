package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/vine/config"
)

var (
	cfg     *config.Config
	envFile string

	rootCmd = &cobra.Command{
		Use:          "vine",
		Short:        "Matches supplier import lines against the canonical wine catalog",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCatalogCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("vine: %v", err)
	}
}
