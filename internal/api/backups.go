package api

import (
	"net/http"

	"github.com/Lmdudester/Garcon/internal/apperr"
	"github.com/Lmdudester/Garcon/internal/backup"
	"github.com/Lmdudester/Garcon/internal/domain"
)

type backupResponse struct {
	ServerID    string             `json:"serverId"`
	Timestamp   string             `json:"timestamp"`
	Type        domain.BackupType  `json:"type"`
	SizeBytes   int64              `json:"sizeBytes"`
	Description string             `json:"description,omitempty"`
	Filename    string             `json:"filename"`
}

func toBackupResponse(r domain.BackupRecord) backupResponse {
	return backupResponse{
		ServerID:    r.ServerID,
		Timestamp:   backup.FormatTimestampParam(r.Timestamp),
		Type:        r.Type,
		SizeBytes:   r.SizeBytes,
		Description: r.Description,
		Filename:    r.Filename,
	}
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	records, err := s.backups.List(r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]backupResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toBackupResponse(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

type createBackupRequest struct {
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	var req createBackupRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, s.log, err)
			return
		}
	}

	view, err := s.orch.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if view.Status != domain.StatusStopped && view.Status != domain.StatusUpdating {
		writeError(w, s.log, apperr.State("cannot back up server %q while %s", view.Config.ID, view.Status))
		return
	}

	record, err := s.backups.Create(r.Context(), r.PathValue("id"), domain.BackupTypeManual, req.Description)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBackupResponse(record))
}

func (s *Server) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	ts, err := backup.ParseTimestampParam(r.PathValue("timestamp"))
	if err != nil {
		writeError(w, s.log, apperr.Wrap(apperr.KindValidation, "parse backup timestamp", err))
		return
	}
	if err := s.backups.Delete(r.PathValue("id"), ts); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeNoContent(w)
}

type restoreResponse struct {
	ServerID         string          `json:"serverId"`
	RestoredFrom     string          `json:"restoredFrom"`
	PreRestoreBackup backupResponse  `json:"preRestoreBackup"`
}

func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	ts, err := backup.ParseTimestampParam(r.PathValue("timestamp"))
	if err != nil {
		writeError(w, s.log, apperr.Wrap(apperr.KindValidation, "parse backup timestamp", err))
		return
	}

	result, err := s.orch.Restore(r.Context(), r.PathValue("id"), ts)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	writeJSON(w, http.StatusOK, restoreResponse{
		ServerID:         result.ServerID,
		RestoredFrom:     backup.FormatTimestampParam(result.RestoredFrom),
		PreRestoreBackup: toBackupResponse(result.PreRestoreBackup),
	})
}
