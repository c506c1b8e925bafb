package canonical

import "strings"

// walkPath separates the next element from the rest of the path. The rest
// keeps its leading slash, so a trailing slash remains observable; an empty
// element means that the path is exhausted.
func walkPath(path string) (elem, rest string) {
	path = trimLeadingSlash(path)
	if path == "" {
		return "", ""
	}
	i := strings.IndexByte(path, '/')
	if i < 0 {
		return path, ""
	}

	return path[:i], path[i:]
}

// joinElem appends a single element to an absolute, clean directory path.
func joinElem(dir, elem string) string {
	if dir == "/" {
		return "/" + elem
	}

	return dir + "/" + elem
}

// parentDir returns the parent of an absolute, clean path. The parent of the
// root "/" is the root itself.
func parentDir(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "/"
	}

	return path[:i]
}

func trimLeadingSlash(s string) string {
	i := 0
	for i < len(s) && s[i] == '/' {
		i++
	}

	return s[i:]
}

func isAbs(path string) bool {
	return len(path) > 0 && path[0] == '/'
}
