package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kinship/internal/config"
	"kinship/internal/database"
	"kinship/internal/repository"
	"kinship/internal/service"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	if len(os.Args) < 2 || os.Args[1] != "export" {
		printUsage()
		os.Exit(1)
	}
	if err := exportCmd.Parse(os.Args[2:]); err != nil {
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := export(context.Background(), cfg, logger, *exportOutput); err != nil {
		logger.Fatal("export failed", zap.Error(err))
	}
}

func export(ctx context.Context, cfg *config.Config, logger *zap.Logger, outputPath string) error {
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Run migrations so the export always sees the current schema
	if err := db.RunMigrations(ctx, database.MigrationsFS(cfg.MigrationsPath), logger); err != nil {
		return err
	}

	backupService := service.NewBackupService(db,
		repository.NewUserRepository(),
		repository.NewFamilyRepository(),
		repository.NewMemberRepository(),
		logger,
	)

	if outputPath == "" {
		outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}
	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := backupService.Export(ctx, outputPath); err != nil {
		return err
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return err
	}
	logger.Info("export complete",
		zap.String("path", outputPath),
		zap.Float64("size_mb", float64(info.Size())/1024/1024),
	)
	return nil
}

func printUsage() {
	fmt.Println("Kinship Database Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export database to JSON file")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DB_TYPE          Database type: sqlite, postgres, pgx or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./kinship.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
