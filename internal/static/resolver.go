package static

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
)

const indexFile = "index.html"

var errIsDir = errors.New("is a directory")

var mimeTypes = map[string]string{
	".html":  "text/html",
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".css":   "text/css",
	".json":  "application/json",
	".map":   "application/json",
	".txt":   "text/plain",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".webp":  "image/webp",
	".wav":   "audio/wav",
	".mp4":   "video/mp4",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".eot":   "application/vnd.ms-fontobject",
	".wasm":  "application/wasm",
}

// ContentType returns the MIME type for a file name, falling back to
// application/octet-stream for unknown extensions.
func ContentType(name string) string {
	if ct, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Resolver serves files from a single-page application build directory.
// Paths that match no file get the root index.html so client-side routing
// can take over.
type Resolver struct {
	root   string
	logger *log.Logger
}

// NewResolver creates a resolver rooted at dir
func NewResolver(dir string, logger *log.Logger) (*Resolver, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Resolver{root: root, logger: logger}, nil
}

// Root returns the absolute asset directory
func (res *Resolver) Root() string {
	return res.root
}

func (res *Resolver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqPath := r.URL.Path
	if reqPath == "" || reqPath == "/" {
		reqPath = "/" + indexFile
	}

	filePath, ok := res.resolve(reqPath)
	if !ok {
		res.logger.Warn("blocked path outside asset root", "path", r.URL.Path)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	data, err := readFile(filePath)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", ContentType(filePath))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR), errors.Is(err, errIsDir):
		res.serveIndex(w)
	default:
		res.logger.Error("failed to read asset", "path", filePath, "err", err)
		http.Error(w, "Server Error", http.StatusInternalServerError)
	}
}

// resolve joins the request path onto the root and reports whether the
// result stays inside it.
func (res *Resolver) resolve(reqPath string) (string, bool) {
	candidate := filepath.Join(res.root, filepath.FromSlash(reqPath))

	rel, err := filepath.Rel(res.root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return candidate, true
}

func (res *Resolver) serveIndex(w http.ResponseWriter) {
	data, err := readFile(filepath.Join(res.root, indexFile))
	if err != nil {
		res.logger.Warn("fallback index unavailable", "root", res.root, "err", err)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mimeTypes[".html"])
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errIsDir
	}

	return io.ReadAll(f)
}
