// Package vault copies notes between the store and a directory of Markdown
// files. Each file holds one note: the file stem is the title and the file
// body is the content.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/lore/internal/apperr"
	"github.com/starford/lore/internal/checksum"
	"github.com/starford/lore/internal/models"
	"github.com/starford/lore/internal/storage"
)

// Notes is the part of the note store that import and export use.
type Notes interface {
	NoteByTitle(ctx context.Context, title string) (*models.Note, error)
	Create(ctx context.Context, title, content string) (*models.Note, error)
	Update(ctx context.Context, id, title, content string) (*models.Note, error)
	List(ctx context.Context) ([]models.NoteSummary, error)
	Get(ctx context.Context, id string) (*models.Note, error)
}

// ImportReport counts what an import did.
type ImportReport struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// ExportReport counts what an export did.
type ExportReport struct {
	Written   int `json:"written"`
	Unchanged int `json:"unchanged"`
}

// Import creates or updates one note per Markdown file under src. Files
// whose content already matches the stored note are skipped. A file that
// cannot be read or stored is logged and counted as failed; the import
// carries on with the rest.
func Import(ctx context.Context, notes Notes, src storage.Provider, logger *slog.Logger) (*ImportReport, error) {
	files, err := src.List("")
	if err != nil {
		return nil, err
	}

	// Files sharing a stem would map to one title; none of them is imported.
	paths := make(map[string][]string, len(files))
	for _, f := range files {
		title := TitleFromPath(f.Path)
		paths[title] = append(paths[title], f.Path)
	}

	rep := &ImportReport{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		title := TitleFromPath(f.Path)
		if same := paths[title]; len(same) > 1 {
			logger.Warn("import: ambiguous title, skipped",
				slog.String("path", f.Path),
				slog.String("title", title),
				slog.Any("paths", same),
			)
			rep.Failed++
			continue
		}

		data, err := src.Read(f.Path)
		if err != nil {
			logger.Warn("import: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			rep.Failed++
			continue
		}

		existing, err := notes.NoteByTitle(ctx, title)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			if _, err := notes.Create(ctx, title, string(data)); err != nil {
				logger.Warn("import: create failed", slog.String("path", f.Path), slog.String("error", err.Error()))
				rep.Failed++
				continue
			}
			rep.Created++
		case err != nil:
			return rep, err
		case checksum.Equal(data, checksum.SumString(existing.Content)):
			rep.Unchanged++
		default:
			if _, err := notes.Update(ctx, existing.ID, title, string(data)); err != nil {
				logger.Warn("import: update failed", slog.String("path", f.Path), slog.String("error", err.Error()))
				rep.Failed++
				continue
			}
			rep.Updated++
		}
		logger.Debug("import: processed", slog.String("path", f.Path), slog.String("title", title))
	}

	logger.Info("import finished",
		slog.Int("created", rep.Created),
		slog.Int("updated", rep.Updated),
		slog.Int("unchanged", rep.Unchanged),
		slog.Int("failed", rep.Failed),
	)
	return rep, nil
}

// Export writes every note to dst as <title>.md. Files that already hold the
// same content are left alone.
func Export(ctx context.Context, notes Notes, dst storage.Provider, logger *slog.Logger) (*ExportReport, error) {
	summaries, err := notes.List(ctx)
	if err != nil {
		return nil, err
	}

	rep := &ExportReport{}
	used := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		n, err := notes.Get(ctx, s.ID)
		if errors.Is(err, apperr.ErrNotFound) {
			continue // deleted since List
		}
		if err != nil {
			return rep, err
		}

		name := FileName(n.Title)
		if used[strings.ToLower(name)] {
			name = strings.TrimSuffix(name, ".md") + "-" + shortID(n.ID) + ".md"
		}
		used[strings.ToLower(name)] = true

		data := []byte(n.Content)
		if cur, err := dst.Read(name); err == nil && checksum.Equal(cur, checksum.Sum(data)) {
			rep.Unchanged++
			continue
		}
		if err := dst.Write(name, data); err != nil {
			return rep, fmt.Errorf("export %q: %w", n.Title, err)
		}
		rep.Written++
	}

	logger.Info("export finished",
		slog.Int("written", rep.Written),
		slog.Int("unchanged", rep.Unchanged),
	)
	return rep, nil
}

// TitleFromPath derives a note title from a Markdown file path.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

var unsafeChars = strings.NewReplacer(
	"/", "-", `\`, "-", ":", "-", "*", "-", "?", "-",
	`"`, "-", "<", "-", ">", "-", "|", "-", "\x00", "",
)

// FileName maps a title to a flat file name that is safe on common file
// systems.
func FileName(title string) string {
	name := strings.TrimSpace(unsafeChars.Replace(title))
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "untitled"
	}
	return name + ".md"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
