package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/radeon-ai/reasoner/config"
	"github.com/radeon-ai/reasoner/internal/knowledge"
	srv "github.com/radeon-ai/reasoner/internal/server"
)

func main() {
	var root = &cobra.Command{Use: "reasonerd"}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	var validate = &cobra.Command{
		Use:   "validate",
		Short: "Check that the knowledge corpus loads and indexes cleanly",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			logger := log.New(log.Writer(), "[VALIDATE] ", log.LstdFlags)
			corpus, err := knowledge.LoadCorpus(cfg.Knowledge.CorpusPath)
			if err != nil {
				return err
			}
			ix, err := knowledge.Build(corpus)
			if err != nil {
				return err
			}
			stats := ix.Stats()
			logger.Printf("corpus ok: %d articles, %d words, %d keywords",
				stats.Articles, stats.Words, stats.Keywords)
			return nil
		},
	}

	root.AddCommand(serve, validate)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
