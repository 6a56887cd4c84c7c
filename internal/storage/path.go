package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// DatasetRoot is the key prefix under which warehouse dataset files live.
const DatasetRoot = "datasets"

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// DatasetObjectKey builds the canonical key for a single-file dataset table.
func DatasetObjectKey(tableName string) (string, error) {
	if !tableNamePattern.MatchString(tableName) {
		return "", fmt.Errorf("invalid table name: %q", tableName)
	}
	return path.Join(DatasetRoot, tableName+".parquet"), nil
}

// TableNameFromKey derives the warehouse table name from a dataset object
// key. Both flat layouts (datasets/cities.parquet) and partitioned layouts
// (datasets/cities/part-00001.parquet) are supported.
func TableNameFromKey(key string) (string, bool) {
	key = path.Clean(strings.TrimPrefix(key, "/"))
	if !strings.HasPrefix(key, DatasetRoot+"/") {
		return "", false
	}
	key = strings.TrimPrefix(key, DatasetRoot+"/")
	if !strings.HasSuffix(key, ".parquet") {
		return "", false
	}

	name := key
	if idx := strings.IndexByte(key, '/'); idx >= 0 {
		name = key[:idx]
	} else {
		name = strings.TrimSuffix(name, ".parquet")
	}
	if !tableNamePattern.MatchString(name) {
		return "", false
	}
	return name, true
}
