package api

import "net/http"

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.templates.List())
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.templates.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	// Trim the same secrets/internal fields List() omits. Those fields are
	// already tagged json:"-" and never encoded; clearing them on a copy
	// keeps the registry's own immutable Template untouched.
	trimmed := *tmpl
	trimmed.Command = ""
	trimmed.Args = nil
	trimmed.RCON.Password = ""
	writeJSON(w, http.StatusOK, trimmed)
}
