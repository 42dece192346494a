// Package regnet stores and queries the ProTReND regulatory network.
package regnet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var errWrongArgCount = errors.New("need exactly one argument")

// FindSource finds the N-Quads file to import from the given path.
// The path may point to the file itself, or to a directory containing exactly one '*.nq' file.
// FindSource does not guarantee that contents are loadable.
func FindSource(argv ...string) (nq string, err error) {
	if len(argv) != 1 {
		return "", errWrongArgCount
	}

	isDir, err := isDirectory(argv[0])
	if err != nil {
		return "", err
	}

	if !isDir {
		nq = argv[0]
	} else {
		nqs, err := filepath.Glob(filepath.Join(argv[0], "*.nq"))
		if err != nil {
			return "", err
		}
		if len(nqs) != 1 {
			return "", fmt.Errorf("need exactly one '*.nq' in %q, but got %d", argv[0], len(nqs))
		}
		nq = nqs[0]
	}

	ok, err := isFile(nq)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%q is not a regular file", nq)
	}
	return nq, nil
}

func isDirectory(path string) (ok bool, err error) {
	stats, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return stats.Mode().IsDir(), nil
}

// isFile checks if path is a regular file.
func isFile(path string) (ok bool, err error) {
	stats, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return stats.Mode().IsRegular(), nil
}
