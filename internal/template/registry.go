// Package template implements the template registry: it seeds built-in
// template documents on first boot, loads and validates every YAML
// document in the template directory, and serves immutable Template
// values to the rest of the control plane.
//
// Grounded on the loader factory/contract shape in the teacher's
// internal/loader package, generalized from "pick a Minecraft loader
// implementation" to "load a directory of immutable template documents".
package template

import (
	"embed"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/Lmdudester/Garcon/internal/apperr"
	"github.com/Lmdudester/Garcon/internal/domain"
	"github.com/Lmdudester/Garcon/internal/filestore"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// CredentialHook is the "pre-stop credential override" template hook
// described in the design notes: an optional per-template function that
// reads a game-specific settings file to override the RCON port/password
// the template declares, keyed by template id at registry-load time. It
// is never hard-coded into the native execution backend.
type CredentialHook func(dataDir string) (port int, password string, ok bool)

// Registry loads, validates, and serves immutable templates.
type Registry struct {
	dir   string
	store *filestore.Store
	log   zerolog.Logger

	mu        sync.RWMutex
	templates map[string]*domain.Template
	hooks     map[string]CredentialHook
}

// New constructs a Registry rooted at dir (<data>/templates).
func New(dir string, store *filestore.Store, log zerolog.Logger) *Registry {
	return &Registry{
		dir:       dir,
		store:     store,
		log:       log.With().Str("component", "template-registry").Logger(),
		templates: make(map[string]*domain.Template),
		hooks:     make(map[string]CredentialHook),
	}
}

// RegisterCredentialHook attaches a pre-stop credential override hook to
// the named template id.
func (r *Registry) RegisterCredentialHook(templateID string, hook CredentialHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[templateID] = hook
}

// CredentialHookFor returns the hook registered for templateID, if any.
func (r *Registry) CredentialHookFor(templateID string) (CredentialHook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hook, ok := r.hooks[templateID]
	return hook, ok
}

// Load seeds built-in templates (only those not already present) and
// then loads every YAML document in the template directory. A single
// invalid document is logged and skipped, never aborting startup.
func (r *Registry) Load() error {
	if err := r.store.EnsureDir(r.dir); err != nil {
		return err
	}
	if err := r.seedBuiltins(); err != nil {
		return err
	}

	names, err := r.store.ListDir(r.dir, ".yaml")
	if err != nil {
		return err
	}

	loaded := make(map[string]*domain.Template, len(names))
	for _, name := range names {
		path := filepath.Join(r.dir, name)
		var t domain.Template
		if err := r.store.ReadYAML(path, &t); err != nil {
			r.log.Warn().Err(err).Str("file", name).Msg("skipping unreadable template document")
			continue
		}
		if err := t.Validate(); err != nil {
			r.log.Warn().Err(err).Str("file", name).Msg("skipping invalid template document")
			continue
		}
		loaded[t.ID] = &t
	}

	r.mu.Lock()
	r.templates = loaded
	r.mu.Unlock()
	return nil
}

func (r *Registry) seedBuiltins() error {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "read embedded templates", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		dest := filepath.Join(r.dir, e.Name())
		if r.store.Exists(dest) {
			continue
		}
		data, err := builtinFS.ReadFile(filepath.Join("builtin", e.Name()))
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "read embedded template "+e.Name(), err)
		}
		var t domain.Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return apperr.Wrap(apperr.KindInternal, "parse embedded template "+e.Name(), err)
		}
		if err := r.store.WriteYAML(dest, &t); err != nil {
			return err
		}
	}
	return nil
}

// List returns a trimmed response view of every loaded template,
// omitting secrets (RCON password) and internal command strings, sorted
// by id for stable output.
func (r *Registry) List() []domain.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Template, 0, len(r.templates))
	for _, t := range r.templates {
		trimmed := *t
		trimmed.Command = ""
		trimmed.Args = nil
		trimmed.RCON.Password = ""
		out = append(out, trimmed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get fetches a template by id, failing with not-found when absent.
func (r *Registry) Get(id string) (*domain.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return nil, apperr.NotFound("template %q not found", id)
	}
	return t, nil
}

// Lookup is the non-erroring variant for best-effort display on cached
// server rows: it returns nil rather than an error when absent.
func (r *Registry) Lookup(id string) *domain.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates[id]
}
