package api

import (
	"net/http"
	"path/filepath"

	"github.com/Lmdudester/Garcon/internal/filestore"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// configResponse echoes the resolved environment configuration, minus
// the Docker socket path (a local operational detail, not something a
// UI client needs) and anything that could be considered a secret —
// there is none today, but the shape is kept separate from
// config.Config so adding one later doesn't leak it by default.
type configResponse struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	DataDir           string `json:"dataDir"`
	ImportDir         string `json:"importDir,omitempty"`
	MaxBackupsPerType int    `json:"maxBackupsPerType"`
	AutoBackupOnStop  bool   `json:"autoBackupOnStop"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{
		Host:              s.cfg.Host,
		Port:              s.cfg.Port,
		DataDir:           s.cfg.DataDir,
		ImportDir:         s.cfg.ImportDir,
		MaxBackupsPerType: s.cfg.MaxBackupsPerType,
		AutoBackupOnStop:  s.cfg.AutoBackupOnStop,
	})
}

// handleImportFolders lists the immediate subdirectories of the
// configured import directory, letting the operator browse candidate
// source paths for POST /servers without shelling out to the host
// filesystem from the client.
func (s *Server) handleImportFolders(w http.ResponseWriter, r *http.Request) {
	if s.cfg.ImportDir == "" {
		writeJSON(w, http.StatusOK, []string{})
		return
	}

	store := filestore.New()
	names, err := store.ListDir(s.cfg.ImportDir, "")
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	folders := make([]string, 0, len(names))
	for _, name := range names {
		if store.IsDir(filepath.Join(s.cfg.ImportDir, name)) {
			folders = append(folders, name)
		}
	}
	writeJSON(w, http.StatusOK, folders)
}
