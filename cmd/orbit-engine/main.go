// Command orbit-engine is a thin CLI over the engine package: it
// loads configuration and a domain/template pair and offers
// validate and reconcile subcommands.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	orbitconfig "github.com/orbitretrieval/engine/config"
	"github.com/orbitretrieval/engine/domain"
	"github.com/orbitretrieval/engine/engine"
	"github.com/orbitretrieval/engine/matcher"
	openaiembedding "github.com/orbitretrieval/engine/providers/embedding/openai"
	qdrantstore "github.com/orbitretrieval/engine/providers/vectorstore/qdrant"
	"github.com/orbitretrieval/engine/template"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "orbit-engine",
		Short: "Intent-driven template retrieval engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the engine config file")

	root.AddCommand(validateCommand())
	root.AddCommand(reconcileCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load a domain config and template library and report validation errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := orbitconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			domainCfg, err := domain.Load(cfg.Engine.DomainConfigPath)
			if err != nil {
				return fmt.Errorf("domain config invalid: %w", err)
			}
			fmt.Printf("domain config %q: OK\n", domainCfg.DomainName)

			lib, problems, err := template.Load(cfg.Engine.TemplateLibraryPath...)
			if err != nil {
				return fmt.Errorf("failed to load template library: %w", err)
			}

			fmt.Printf("template library: %d template(s) loaded\n", lib.Len())
			for _, p := range problems {
				fmt.Printf("  problem: %v\n", p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d template(s) failed validation", len(problems))
			}
			return nil
		},
	}
}

func reconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Force the vector store to resync against the current template library",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := orbitconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			lib, problems, err := template.Load(cfg.Engine.TemplateLibraryPath...)
			if err != nil {
				return fmt.Errorf("failed to load template library: %w", err)
			}
			for _, p := range problems {
				fmt.Printf("warning: %v\n", p)
			}

			embedder, err := openaiembedding.New(&openaiembedding.Config{
				APIKey:     cfg.Embedding.APIKey,
				Model:      cfg.Embedding.Model,
				Dimensions: cfg.Embedding.Dimensions,
			})
			if err != nil {
				return fmt.Errorf("failed to build embedder: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			client, err := buildQdrantClient(cfg.VectorStore)
			if err != nil {
				return fmt.Errorf("failed to build qdrant client: %w", err)
			}

			store, err := qdrantstore.NewStore(ctx, &qdrantstore.Config{
				Client:           client,
				CollectionName:   cfg.VectorStore.CollectionName,
				Dimensions:       cfg.Embedding.Dimensions,
				InitializeSchema: cfg.VectorStore.InitializeSchema,
			})
			if err != nil {
				return fmt.Errorf("failed to build vector store: %w", err)
			}

			m := matcher.New(embedder, store, lib, zerolog.New(os.Stdout))
			report, err := engine.Reconcile(ctx, m, store, lib)
			if err != nil {
				return fmt.Errorf("reconciliation failed: %w", err)
			}

			fmt.Printf("upserted %d template(s), deleted %d template(s)\n", len(report.Upserted), len(report.Deleted))
			return nil
		},
	}
}

func buildQdrantClient(cfg orbitconfig.VectorStoreConfig) (*qdrant.Client, error) {
	host, port := "localhost", 6334
	if cfg.URL != "" {
		parsed, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid vector store url: %w", err)
		}
		host = parsed.Hostname()
		if p := parsed.Port(); p != "" {
			if parsedPort, err := strconv.Atoi(p); err == nil {
				port = parsedPort
			}
		}
	}

	return qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
	})
}
