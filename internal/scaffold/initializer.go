package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/collab/internal/config"
	"github.com/dyluth/collab/internal/printer"
)

//go:embed templates/*
var templatesFS embed.FS

// Initialize writes the default configuration to path, creating parent
// directories as needed. If force is true, an existing file is replaced.
func Initialize(path string, force bool) error {
	if !force {
		if err := CheckExisting(path); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	content, err := templatesFS.ReadFile("templates/collab.yml.tmpl")
	if err != nil {
		return fmt.Errorf("failed to read collab.yml template: %w", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	// the written file must load cleanly
	if _, err := config.Load(path); err != nil {
		return fmt.Errorf("created %s is invalid: %w", path, err)
	}

	return nil
}

// PrintSuccess prints the success message and next steps.
func PrintSuccess(p *printer.Printer, path string) {
	p.Success("Wrote %s\n", path)
	p.Info("\nNext steps:\n")
	p.Info("  1. Adjust timings or niche multipliers in %s\n", path)
	p.Info("  2. Run 'collab run --quota 5' to simulate a campaign\n")
	p.Info("  3. Set events.redis_url and run 'collab watch' in another terminal to follow events\n")
}
