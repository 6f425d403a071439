package api

import (
	"net/http"

	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/orchestrator"
)

// serverResponse is the wire shape for a server list/detail row: the
// persisted configuration layered with the current runtime status.
type serverResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	TemplateID  string               `json:"templateId"`
	Status      domain.Status        `json:"status"`
	StartedAt   *string              `json:"startedAt,omitempty"`
	UpdateStage domain.UpdateStage   `json:"updateStage"`
	Ports       []domain.PortMapping `json:"ports,omitempty"`
	Env         map[string]string    `json:"env,omitempty"`
	MemoryLimit string               `json:"memoryLimit,omitempty"`
	CPUQuota    float64              `json:"cpuQuota,omitempty"`
	AutoRestartAfterMaintenance bool `json:"autoRestartAfterMaintenance"`
	Order       int                  `json:"order"`
}

func toServerResponse(v orchestrator.ServerView) serverResponse {
	resp := serverResponse{
		ID:                          v.Config.ID,
		Name:                        v.Config.Name,
		TemplateID:                  v.Config.TemplateID,
		Status:                      v.Status,
		UpdateStage:                 v.UpdateStage,
		Ports:                       v.Config.Ports,
		Env:                         v.Config.Env,
		MemoryLimit:                 v.Config.MemoryLimit,
		CPUQuota:                    v.Config.CPUQuota,
		AutoRestartAfterMaintenance: v.Config.AutoRestartAfterMaintenance,
		Order:                       v.Config.Order,
	}
	if v.StartedAt != nil {
		s := v.StartedAt.Format(timestampWireFormat)
		resp.StartedAt = &s
	}
	return resp
}

const timestampWireFormat = "2006-01-02T15:04:05.000Z07:00"

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	views := s.orch.List()
	out := make([]serverResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toServerResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	view, err := s.orch.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toServerResponse(view))
}

type importRequest struct {
	Name        string               `json:"name"`
	TemplateID  string               `json:"templateId"`
	SourcePath  string               `json:"sourcePath"`
	Ports       []domain.PortMapping `json:"ports,omitempty"`
	Env         map[string]string    `json:"env,omitempty"`
	MemoryLimit string               `json:"memoryLimit,omitempty"`
	CPUQuota    float64              `json:"cpuQuota,omitempty"`
}

func (s *Server) handleImportServer(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}

	view, err := s.orch.Import(r.Context(), orchestrator.ImportRequest{
		Name:        req.Name,
		TemplateID:  req.TemplateID,
		SourcePath:  req.SourcePath,
		Ports:       req.Ports,
		Env:         req.Env,
		MemoryLimit: req.MemoryLimit,
		CPUQuota:    req.CPUQuota,
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toServerResponse(view))
}

type patchServerRequest struct {
	Name                        *string              `json:"name,omitempty"`
	Env                         map[string]string    `json:"env,omitempty"`
	Ports                       []domain.PortMapping `json:"ports,omitempty"`
	MemoryLimit                 *string              `json:"memoryLimit,omitempty"`
	CPUQuota                    *float64             `json:"cpuQuota,omitempty"`
	AutoRestartAfterMaintenance *bool                `json:"autoRestartAfterMaintenance,omitempty"`
}

func (s *Server) handlePatchServer(w http.ResponseWriter, r *http.Request) {
	var req patchServerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}

	view, err := s.orch.UpdateConfig(r.PathValue("id"), orchestrator.ConfigPatch{
		Name:                        req.Name,
		Env:                         req.Env,
		Ports:                       req.Ports,
		MemoryLimit:                 req.MemoryLimit,
		CPUQuota:                    req.CPUQuota,
		AutoRestartAfterMaintenance: req.AutoRestartAfterMaintenance,
	})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toServerResponse(view))
}

func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeNoContent(w)
}

type setOrderRequest struct {
	Order []string `json:"order"`
}

func (s *Server) handleSetOrder(w http.ResponseWriter, r *http.Request) {
	var req setOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.orch.SetOrder(req.Order); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Start(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Stop(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Restart(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleAcknowledgeCrash(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.AcknowledgeCrash(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeNoContent(w)
}

type initiateUpdateResponse struct {
	SourcePath      string `json:"sourcePath"`
	BackupTimestamp string `json:"backupTimestamp"`
	BackupPath      string `json:"backupPath"`
}

func (s *Server) handleUpdateInitiate(w http.ResponseWriter, r *http.Request) {
	result, err := s.orch.InitiateUpdate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, initiateUpdateResponse{
		SourcePath:      result.SourcePath,
		BackupTimestamp: result.BackupTimestamp.Format(timestampWireFormat),
		BackupPath:      result.BackupPath,
	})
}

func (s *Server) handleUpdateApply(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.ApplyUpdate(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleUpdateCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.CancelUpdate(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeNoContent(w)
}
