package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/askdb/askdb/internal/storage"
)

// Warehouse is the part of the warehouse the loader drives.
type Warehouse interface {
	RegisterParquetView(ctx context.Context, tableName string, localPaths []string) error
}

// TableLoad summarizes one registered dataset table.
type TableLoad struct {
	Table string
	Files int
	Bytes int64
}

// Loader stages parquet dataset objects to local disk and registers them as
// queryable warehouse views. The object store is only touched at load time;
// queries run entirely against the staged copies.
type Loader struct {
	log       *slog.Logger
	store     storage.ObjectStore
	warehouse Warehouse
	stageDir  string
}

func NewLoader(log *slog.Logger, store storage.ObjectStore, warehouse Warehouse, stageDir string) (*Loader, error) {
	if log == nil {
		return nil, errors.New("dataset: logger is required")
	}
	if store == nil {
		return nil, errors.New("dataset: object store is required")
	}
	if warehouse == nil {
		return nil, errors.New("dataset: warehouse is required")
	}
	if stageDir == "" {
		return nil, errors.New("dataset: stage directory is required")
	}
	return &Loader{log: log, store: store, warehouse: warehouse, stageDir: stageDir}, nil
}

// Load lists every parquet object under the dataset root, stages it locally,
// and registers one view per table. Objects with keys that do not map to a
// valid table name are skipped with a warning.
func (l *Loader) Load(ctx context.Context) ([]TableLoad, error) {
	infos, err := l.store.List(ctx, storage.DatasetRoot)
	if err != nil {
		return nil, fmt.Errorf("list dataset objects: %w", err)
	}

	staged := map[string][]string{}
	sizes := map[string]int64{}
	for _, info := range infos {
		table, ok := storage.TableNameFromKey(info.Key)
		if !ok {
			l.log.Warn("skipping dataset object with unusable key", "key", info.Key)
			continue
		}
		localPath, err := l.stage(ctx, table, info.Key)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", info.Key, err)
		}
		staged[table] = append(staged[table], localPath)
		sizes[table] += info.Size
	}

	tables := make([]string, 0, len(staged))
	for table := range staged {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	loads := make([]TableLoad, 0, len(tables))
	for _, table := range tables {
		if err := l.warehouse.RegisterParquetView(ctx, table, staged[table]); err != nil {
			return nil, fmt.Errorf("register table %q: %w", table, err)
		}
		load := TableLoad{Table: table, Files: len(staged[table]), Bytes: sizes[table]}
		loads = append(loads, load)
		l.log.Info("registered dataset table", "table", load.Table, "files", load.Files, "bytes", load.Bytes)
	}
	return loads, nil
}

func (l *Loader) stage(ctx context.Context, table, key string) (string, error) {
	reader, err := l.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer func() { _ = reader.Close() }()

	dir := filepath.Join(l.stageDir, table)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	localPath := filepath.Join(dir, filepath.Base(key))
	if err := writeFile(localPath, reader); err != nil {
		return "", err
	}
	return localPath, nil
}

func writeFile(path string, reader io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if _, err := io.Copy(file, reader); err != nil {
		return err
	}
	return nil
}
