// Package content serves an in-memory HTML document and its auxiliary files
// over a local ephemeral port for the lifetime of a single page load.
package content

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// IndexName is the path the document itself is served at.
const IndexName = "index.html"

// Server is a scoped file server. Each Serve call creates a fresh instance;
// instances are never reused across loads.
type Server struct {
	dir     string
	baseURL string
	httpSrv *http.Server
	group   *errgroup.Group

	mu     sync.Mutex
	closed bool
}

// Serve materializes the document and auxiliary files into a scoped temporary
// directory and starts serving them on an ephemeral local port.
func Serve(html string, files map[string][]byte) (*Server, error) {
	for name := range files {
		if err := validateRelativePath(name); err != nil {
			return nil, err
		}
	}

	dir, err := os.MkdirTemp("", "genstudio-doc-")
	if err != nil {
		return nil, fmt.Errorf("create document directory: %w", err)
	}

	cleanup := func() { _ = os.RemoveAll(dir) }

	if err := os.WriteFile(filepath.Join(dir, IndexName), []byte(html), 0644); err != nil {
		cleanup()
		return nil, fmt.Errorf("write document: %w", err)
	}
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			cleanup()
			return nil, fmt.Errorf("create asset directory for %s: %w", name, err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			cleanup()
			return nil, fmt.Errorf("write asset %s: %w", name, err)
		}
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("bind content server: %w", err)
	}

	router := chi.NewRouter()
	router.Handle("/*", http.FileServer(http.Dir(dir)))

	httpSrv := &http.Server{Handler: router}
	group := new(errgroup.Group)
	group.Go(func() error {
		if err := httpSrv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return &Server{
		dir:     dir,
		baseURL: "http://" + listener.Addr().String(),
		httpSrv: httpSrv,
		group:   group,
	}, nil
}

// BaseURL returns the origin the document tree is served from.
func (s *Server) BaseURL() string {
	return s.baseURL
}

// Dir returns the temporary directory backing the served tree.
func (s *Server) Dir() string {
	return s.dir
}

// Shutdown stops the server, joins its serve goroutine and removes the
// temporary directory. It is idempotent.
func (s *Server) Shutdown() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	shutdownErr := s.httpSrv.Shutdown(context.Background())
	serveErr := s.group.Wait()
	removeErr := os.RemoveAll(s.dir)

	if shutdownErr != nil {
		return fmt.Errorf("shutdown content server: %w", shutdownErr)
	}
	if serveErr != nil {
		return fmt.Errorf("content server exited: %w", serveErr)
	}
	if removeErr != nil {
		return fmt.Errorf("remove document directory: %w", removeErr)
	}
	return nil
}

func validateRelativePath(name string) error {
	if name == "" {
		return errors.New("asset name must not be empty")
	}
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return fmt.Errorf("asset name must be relative: %s", name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("asset name escapes document root: %s", name)
	}
	if clean == IndexName {
		return fmt.Errorf("asset name %s is reserved for the document", IndexName)
	}
	return nil
}
