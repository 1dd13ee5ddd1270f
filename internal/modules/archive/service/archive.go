package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"etf_agent/internal/models"
	"etf_agent/pkg/logger"

	"github.com/parquet-go/parquet-go"
)

// Archiver пишет бары в parquet: dir/YYYYMMDD/<kind>_HHMMSS.parquet.
// Пустой dir: архив выключен.
type Archiver struct {
	dir string
	now func() time.Time
}

func NewArchiver(dir string) *Archiver {
	return &Archiver{dir: dir, now: time.Now}
}

func (a *Archiver) Enabled() bool { return a.dir != "" }

// ArchiveBatch: сырой дневной батч, полученный при восстановлении.
func (a *Archiver) ArchiveBatch(ctx context.Context, day time.Time, rows models.Series) error {
	_, err := a.write(ctx, "batch", day, rows)
	return err
}

// ArchiveSession: склеенные бары дня на закрытии.
func (a *Archiver) ArchiveSession(ctx context.Context, day time.Time, rows models.Series) (string, error) {
	return a.write(ctx, "session", day, rows)
}

func (a *Archiver) write(ctx context.Context, kind string, day time.Time, rows models.Series) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	flat := flatten(rows)
	dir := filepath.Join(a.dir, day.Format("20060102"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("archive mkdir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.parquet", kind, a.now().Format("150405")))
	if err := parquet.WriteFile(path, flat); err != nil {
		return "", fmt.Errorf("archive write %s: %w", path, err)
	}
	logger.Info("[ARCHIVE] %s: %d rows -> %s", kind, len(flat), path)
	return path, nil
}

func flatten(rows models.Series) []models.Bar {
	codes := make([]string, 0, len(rows))
	n := 0
	for code, series := range rows {
		codes = append(codes, code)
		n += len(series)
	}
	sort.Strings(codes)

	out := make([]models.Bar, 0, n)
	for _, code := range codes {
		out = append(out, rows[code]...)
	}
	return out
}
