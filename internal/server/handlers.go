package server

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/desertwitch/filebox/internal/schema"
	"github.com/desertwitch/filebox/internal/search"
	"github.com/gin-gonic/gin"
	"golang.org/x/sys/unix"
)

func (s *Server) handleList(c *gin.Context) {
	path := c.Query("path")

	entries, err := s.fsHandler.List(path)
	if err != nil {
		s.respondError(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"path":    displayPath(path),
		"entries": entries,
	})
}

func (s *Server) handleStat(c *gin.Context) {
	path := c.Query("path")

	attrs, err := s.fsHandler.Attributes(path)
	if err != nil {
		s.respondError(c, err)

		return
	}

	c.JSON(http.StatusOK, attrs)
}

func (s *Server) handleFind(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing pattern"})

		return
	}

	entries, err := s.searchHandler.Find(c.Request.Context(), c.Query("path"), pattern)
	if err != nil {
		s.respondError(c, err)

		return
	}

	if entries == nil {
		entries = []schema.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"pattern": pattern,
		"entries": entries,
	})
}

// handleFile serves the content of a regular file. The open goes through an
// [os.Root] of the root, so a path swapped for a symbolic link after it was
// resolved is not followed outside of the root either. It does not block, and
// the type is checked on the opened file, so a named pipe is refused instead
// of stalling the request.
func (s *Server) handleFile(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")

	resolved, err := s.guard.Resolve(path)
	if err != nil {
		s.respondError(c, err)

		return
	}

	root, err := s.guard.OpenRoot()
	if err != nil {
		s.respondError(c, err)

		return
	}
	defer root.Close()

	file, err := root.OpenFile(s.guard.RootRelative(resolved), os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		s.respondError(c, schema.NewResolveError(path, errnoOf(err)))

		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		s.respondError(c, schema.NewResolveError(path, errnoOf(err)))

		return
	}
	if info.IsDir() {
		s.respondError(c, schema.NewResolveError(path, unix.EISDIR))

		return
	}
	if !info.Mode().IsRegular() {
		s.respondError(c, schema.NewResolveError(path, unix.EINVAL))

		return
	}

	if mtype, err := s.fsHandler.MimeType(path); err == nil {
		c.Header("Content-Type", mtype)
	} else {
		slog.Debug("Failed to detect media type", "path", path, "err", err)
	}

	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}

// respondError answers with the message of a resolution error, which never
// contains the host location of the root. Other errors are logged and
// answered generically.
func (s *Server) respondError(c *gin.Context, err error) {
	var rerr *schema.ResolveError
	if errors.As(err, &rerr) {
		c.AbortWithStatusJSON(statusOf(rerr.Errno), gin.H{"error": rerr.Error()})

		return
	}

	if errors.Is(err, search.ErrBadPattern) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": search.ErrBadPattern.Error()})

		return
	}

	slog.Error("Request failed", "path", c.Request.URL.Path, "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
