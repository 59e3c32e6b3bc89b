package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/cyderes/jobs-ingestion-service/internal/ingestion"
)

func ingestCmd() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Run one ingestion and print the run summary as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Search query (defaults to ingestion.default_query)",
			},
			&cli.StringFlag{
				Name:  "country",
				Usage: "Country code (defaults to ingestion.default_country)",
			},
			&cli.IntFlag{
				Name:  "pages",
				Usage: "Number of result pages to fetch",
			},
			&cli.BoolFlag{
				Name:  "enrich",
				Usage: "Fetch per-job details before staging",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			p, err := buildPipeline(ctx, cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			summary, err := p.service.Run(ctx, ingestion.Request{
				Query:   cmd.String("query"),
				Country: cmd.String("country"),
				Pages:   int(cmd.Int("pages")),
				Enrich:  cmd.Bool("enrich"),
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}
