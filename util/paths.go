package util

import (
	"path"
	"strings"
)

// CleanVirtualPath validates p as an absolute slash-separated path and returns
// its lexically cleaned form.
func CleanVirtualPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", ErrEmptyPath
	}
	if !strings.HasPrefix(p, "/") {
		return "", ErrRelativePath
	}
	return path.Clean(p), nil
}

// CleanOriginalPath is CleanVirtualPath for the original side of a
// translation. The root must stay the directory the overlay is mounted on.
func CleanOriginalPath(p string) (string, error) {
	clean, err := CleanVirtualPath(p)
	if err != nil {
		return "", err
	}
	if clean == "/" {
		return "", ErrRootPath
	}
	return clean, nil
}

// JoinVirtual joins a directory and a child name into a virtual path.
func JoinVirtual(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// ParentAndBase splits a cleaned virtual path into its parent directory and
// base name. The root has itself as parent and an empty base.
func ParentAndBase(p string) (string, string) {
	if p == "/" {
		return "/", ""
	}
	return path.Dir(p), path.Base(p)
}

// Ancestors returns every proper ancestor directory of p, nearest first,
// ending with "/".
func Ancestors(p string) []string {
	var out []string
	for p != "/" {
		p = path.Dir(p)
		out = append(out, p)
	}
	return out
}
