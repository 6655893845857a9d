// Package crl implements the one-shot revocation list CLI command.
package crl

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wick-sh/wick/internal/infrastructure/config"
	"github.com/wick-sh/wick/internal/infrastructure/database"
	"github.com/wick-sh/wick/internal/infrastructure/pki"
	"github.com/wick-sh/wick/internal/infrastructure/repository"
	"github.com/wick-sh/wick/internal/shared/logger"
)

var (
	env    string
	output string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crl",
		Short: "Generate the certificate revocation list",
		Long: `Generate the next certificate revocation list from the serial ledger and
write it to disk. Revoked serials published by this run are marked collected;
expired collected serials are purged from the ledger.`,
		RunE: run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: crl.file_path from config)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	path := output
	if path == "" {
		path = cfg.CRL.FilePath
	}

	serialRepo := repository.NewCertificateSerialRepository(database.Get(), log)
	reader := pki.NewCertificateReader(cfg.PKI)
	generator := pki.NewCRLGenerator(reader, serialRepo,
		time.Duration(cfg.CRL.ValidityHours)*time.Hour, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := generator.UpdateFile(ctx, path); err != nil {
		log.Errorw("revocation list generation failed", "error", err, "path", path)
		return fmt.Errorf("revocation list generation failed: %w", err)
	}

	log.Infow("revocation list written", "path", path)
	return nil
}
