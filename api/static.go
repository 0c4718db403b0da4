package api

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// handleStatic serves the game client files. File errors are plain
// text; a wrong method still gets the JSON envelope.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		respondError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "Method Not Allowed")
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, "/")
	target := filepath.Join(s.wwwRoot, filepath.FromSlash(rel))
	if !s.insideRoot(target) {
		plainText(w, http.StatusBadRequest, "Invalid path outside of the static files directory.")
		return
	}

	info, err := os.Stat(target)
	if err != nil {
		plainText(w, http.StatusNotFound, "File not found.")
		return
	}
	if info.IsDir() {
		target = filepath.Join(target, "index.html")
		if info, err = os.Stat(target); err != nil {
			plainText(w, http.StatusNotFound, "Directory does not contain an index.html file.")
			return
		}
	}

	f, err := os.Open(target)
	if err != nil {
		plainText(w, http.StatusInternalServerError, "Failed to read requested file.")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", mimeType(target))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		io.Copy(w, f)
	}
}

// insideRoot reports whether target, already cleaned by filepath.Join,
// is the www root or below it.
func (s *Server) insideRoot(target string) bool {
	if target == s.wwwRoot {
		return true
	}
	return strings.HasPrefix(target, s.wwwRoot+string(filepath.Separator))
}

func mimeType(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func plainText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
