package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/handsomefox/reelshelf/internal/collection"
	"github.com/handsomefox/reelshelf/internal/logger"
	"github.com/handsomefox/reelshelf/internal/store"
)

func export(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close DB", logger.Error(err))
		}
	}()

	return exportUser(ctx, st, afero.NewOsFs(), os.Stdout, cmd.String("user"), cmd.String("output"))
}

// exportUser writes every collection of the user with the given email to
// output on fsys, or to stdout when output is "-".
func exportUser(ctx context.Context, st *store.Store, fsys afero.Fs, stdout io.Writer, email, output string) error {
	u, err := st.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if store.IsNoRows(err) {
			return fmt.Errorf("no user with email %q", email)
		}
		return err
	}

	payload, err := collection.New(st).Export(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if output == "" || output == "-" {
		_, err := stdout.Write(data)
		return err
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := afero.WriteFile(fsys, output, data, 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	total := 0
	for _, items := range payload.Collections {
		total += len(items)
	}
	slog.Info("export written", slog.String("path", output), slog.Int("items", total))
	return nil
}
