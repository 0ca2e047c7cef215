package sources

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sqltavern/askdb/pkg/utils"
)

// maxUploadBytes caps a data source upload at 64 MiB.
const maxUploadBytes = 64 << 20

// Handler manages the SQLite files questions can be asked against.
type Handler struct {
	root string
}

// New creates the sources handler over the configured data root.
func New(root string) *Handler {
	return &Handler{root: root}
}

// RegisterRoutes mounts the data source routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sources", h.handleList)
	r.Post("/sources", h.handleUpload)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.root)
	if err != nil {
		log.Printf("[sources] failed to read data root %s: %v", h.root, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to list data sources")
		return
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isSQLiteName(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	utils.RespondJSON(w, http.StatusOK, names)
}

// handleUpload stores an uploaded SQLite file under a timestamp-prefixed base
// name, so repeated uploads of the same file never collide.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	base := filepath.Base(header.Filename)
	if !isSQLiteName(base) {
		utils.RespondError(w, http.StatusBadRequest, "only .db, .sqlite and .sqlite3 files are accepted")
		return
	}

	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), base)
	destination, err := os.Create(filepath.Join(h.root, name))
	if err != nil {
		log.Printf("[sources] failed to create %s: %v", name, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to store data source")
		return
	}
	defer destination.Close()

	if _, err := io.Copy(destination, file); err != nil {
		log.Printf("[sources] failed to write %s: %v", name, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to store data source")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{"name": name})
}

func isSQLiteName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}
