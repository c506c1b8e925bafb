package pathing

import "strings"

// IsContained checks if an absolute, canonical path lies inside of an
// absolute, canonical root. The comparison is done element by element, so a
// root of "/srv/data" does not contain "/srv/data-other". Paths that still
// hold "." or ".." elements are never considered contained.
func IsContained(root, path string) bool {
	if !isAbs(root) || !isAbs(path) {
		return false
	}

	rootElems := splitElems(root)
	pathElems := splitElems(path)

	for _, elem := range pathElems {
		if elem == "." || elem == ".." {
			return false
		}
	}

	if len(pathElems) < len(rootElems) {
		return false
	}

	for i, elem := range rootElems {
		if pathElems[i] != elem {
			return false
		}
	}

	return true
}

// splitElems splits a path into its non-empty elements.
func splitElems(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '/'
	})
}

// joinRoot joins a canonical root and an unsafe relative path with exactly
// one separator in between. The relative path is not cleaned, as cleaning
// ".." elements before resolution would change the meaning of a path that
// runs through a symbolic link.
func joinRoot(root, rel string) string {
	rel = trimLeadingSlash(rel)

	switch {
	case rel == "":
		return root
	case root == "/":
		return "/" + rel
	default:
		return root + "/" + rel
	}
}

// splitBase separates the final element of an unsafe relative path from its
// parent. Trailing slashes are ignored, so "a/b/" yields "a/" and "b".
func splitBase(rel string) (dir, base string) {
	rel = trimTrailingSlash(rel)

	i := strings.LastIndexByte(rel, '/')
	if i < 0 {
		return "", rel
	}

	return rel[:i+1], rel[i+1:]
}

func trimLeadingSlash(s string) string {
	i := 0
	for i < len(s) && s[i] == '/' {
		i++
	}

	return s[i:]
}

func trimTrailingSlash(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == '/' {
		i--
	}

	return s[:i]
}

func isAbs(path string) bool {
	return len(path) > 0 && path[0] == '/'
}
