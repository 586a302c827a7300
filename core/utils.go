package core

import (
	"fmt"
	"path/filepath"
	"runtime"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
	Tera = 1 << 40
)

// NumCPU is the number of cores available to this process for parallel kernels.
var NumCPU = runtime.NumCPU()

// ConvertToAbsolute returns an absolute path for the given path, resolving a
// relative path against the given base directory.
func ConvertToAbsolute(path, baseDir string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("cannot convert empty path to absolute path")
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(filepath.Join(baseDir, path))
}
