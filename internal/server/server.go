// Package server implements the development file server behind molt serve.
// It exposes an update repository directory over HTTP the same way a real
// CDN or file host would, so a client can be pointed at
// http://localhost:8000 instead of a production URL.
package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
)

// Options configures the file server.
type Options struct {
	// Dir is the update repository directory: versions.gz, keys.gz and
	// the release artifacts.
	Dir string

	// Addr is the listen address, e.g. ":8000".
	Addr string

	Logger hclog.Logger
}

// Server serves a release repository directory.
type Server struct {
	opts   Options
	engine *gin.Engine
}

// New creates a Server for the given repository directory.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{opts: opts, engine: engine}
	engine.Use(s.logRequests())
	engine.GET("/", s.listRepository)
	engine.GET("/:name", s.serveArtifact)
	engine.HEAD("/:name", s.serveArtifact)

	return s
}

// Handler returns the underlying HTTP handler (for tests and embedding).
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	s.opts.Logger.Info("serving update repository", "dir", s.opts.Dir, "addr", s.opts.Addr)
	return s.engine.Run(s.opts.Addr)
}

// listRepository returns a JSON index of the repository contents.
func (s *Server) listRepository(c *gin.Context) {
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read repository: " + err.Error()})
		return
	}

	var files []gin.H
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, gin.H{
			"name": entry.Name(),
			"size": info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i]["name"].(string) < files[j]["name"].(string)
	})

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// serveArtifact serves a single repository file by name.
func (s *Server) serveArtifact(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid artifact name"})
		return
	}

	path := filepath.Join(s.opts.Dir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file: " + err.Error()})
		return
	}

	c.File(path)
}

// logRequests logs each request at debug level.
func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.opts.Logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
