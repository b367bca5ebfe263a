package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sitecraft-ai/sitecraft-backend/internal/logging"
	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/filestore"
	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/repository"
)

const (
	defaultProjectName = "My Website"
	maxNameLength      = 255
)

const starterHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>My Website</title>
</head>
<body>
  <h1>Hello, world!</h1>
</body>
</html>
`

// Persister is the local persistence the workspace writes through to.
type Persister interface {
	Load(ctx context.Context, uid string) (*repository.Snapshot, error)
	SaveProjects(ctx context.Context, uid string, projects []domain.Project, activeID string) error
	SaveSettings(ctx context.Context, uid string, s domain.PersistedSettings) error
}

// Options configure a workspace.
type Options struct {
	DefaultModel string
	Now          func() time.Time
}

// Workspace is one user's projects, active file store, history and
// settings. All methods are safe for concurrent use; every mutation is
// persisted before the lock is released.
type Workspace struct {
	uid   string
	store Persister
	now   func() time.Time

	mu       sync.Mutex
	projects []*domain.Project
	files    *filestore.Store
	settings domain.Settings
}

// Snapshot is the read-only view a generation request starts from.
type Snapshot struct {
	ProjectID string
	Files     []domain.File
	History   []domain.Message
	Settings  domain.Settings
}

// Open loads a user's workspace, creating a starter project when none
// is stored.
func Open(ctx context.Context, uid string, store Persister, opt Options) (*Workspace, error) {
	if opt.Now == nil {
		opt.Now = time.Now
	}

	snap, err := store.Load(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}

	w := &Workspace{
		uid:      uid,
		store:    store,
		now:      opt.Now,
		settings: domain.DefaultSettings(opt.DefaultModel),
	}
	if snap.Settings != nil {
		w.settings = domain.FromPersisted(*snap.Settings, opt.DefaultModel)
	}

	for i := range snap.Projects {
		p := snap.Projects[i]
		w.projects = append(w.projects, &p)
	}

	if len(w.projects) == 0 {
		p := w.newProject(defaultProjectName)
		w.projects = append(w.projects, p)
		w.files = w.storeFor(p)
		w.persistProjects(ctx)
		return w, nil
	}

	active := w.find(snap.ActiveID)
	if active == nil {
		active = w.projects[0]
	}
	w.files = w.storeFor(active)
	return w, nil
}

func (w *Workspace) UID() string { return w.uid }

// ---- projects ----

func (w *Workspace) Projects() []domain.ProjectSummary {
	w.mu.Lock()
	defer w.mu.Unlock()

	activeID := w.files.Project().ID
	out := make([]domain.ProjectSummary, 0, len(w.projects))
	for _, p := range w.projects {
		out = append(out, domain.ProjectSummary{
			ID:           p.ID,
			Name:         p.Name,
			FileCount:    len(p.Files),
			LastModified: p.LastModified,
			IsPublic:     p.IsPublic,
			Active:       p.ID == activeID,
		})
	}
	return out
}

func (w *Workspace) ActiveProject() domain.Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneProject(w.files.Project())
}

// CreateProject adds a starter project and makes it active.
func (w *Workspace) CreateProject(ctx context.Context, name string) (domain.Project, error) {
	name, err := cleanName(name)
	if err != nil {
		return domain.Project{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.newProject(name)
	w.projects = append(w.projects, p)
	w.files = w.storeFor(p)
	w.persistProjects(ctx)
	return cloneProject(p), nil
}

// ImportProject adds a project with the given files and makes it active.
func (w *Workspace) ImportProject(ctx context.Context, name string, files []domain.File, tags []string) (domain.Project, error) {
	name, err := cleanName(name)
	if err != nil {
		return domain.Project{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	p := &domain.Project{
		ID:           uuid.NewString(),
		Name:         name,
		Tags:         append([]string(nil), tags...),
		LastModified: w.now().UTC(),
	}
	for _, f := range files {
		p.Files = append(p.Files, domain.File{Name: f.Name, Content: f.Content, Language: domain.LanguageFor(f.Name)})
	}
	w.projects = append(w.projects, p)
	w.files = w.storeFor(p)
	w.persistProjects(ctx)
	return cloneProject(p), nil
}

func (w *Workspace) ActivateProject(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.find(id)
	if p == nil {
		return domain.ErrProjectNotFound
	}
	if p != w.files.Project() {
		w.files = w.storeFor(p)
		w.persistProjects(ctx)
	}
	return nil
}

func (w *Workspace) RenameProject(ctx context.Context, id, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.find(id)
	if p == nil {
		return domain.ErrProjectNotFound
	}
	p.Name = name
	p.LastModified = w.now().UTC()
	w.persistProjects(ctx)
	return nil
}

// DeleteProject removes a project. Deleting the active project activates
// the first remaining one, or a fresh starter project.
func (w *Workspace) DeleteProject(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := -1
	for i, p := range w.projects {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ErrProjectNotFound
	}

	wasActive := w.projects[idx] == w.files.Project()
	w.projects = append(w.projects[:idx], w.projects[idx+1:]...)

	if len(w.projects) == 0 {
		w.projects = append(w.projects, w.newProject(defaultProjectName))
		wasActive = true
	}
	if wasActive {
		w.files = w.storeFor(w.projects[0])
	}
	w.persistProjects(ctx)
	return nil
}

// MarkPublished flags a project as public with the given tags.
func (w *Workspace) MarkPublished(ctx context.Context, id string, tags []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.find(id)
	if p == nil {
		return domain.ErrProjectNotFound
	}
	p.IsPublic = true
	p.Tags = append([]string(nil), tags...)
	w.persistProjects(ctx)
	return nil
}

// ---- files of the active project ----

func (w *Workspace) Files() []domain.File {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files.Files()
}

func (w *Workspace) GetFile(name string) (domain.File, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files.GetFile(name)
}

func (w *Workspace) SelectedFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files.Selected()
}

func (w *Workspace) SelectFile(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files.Select(name) {
		return domain.ErrFileNotFound
	}
	return nil
}

func (w *Workspace) CreateFile(ctx context.Context, name, content string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.files.CreateFile(name, content) {
		return domain.ErrFileExists
	}
	w.persistProjects(ctx)
	return nil
}

// SaveFile writes content through the same merge rule the model's edits
// use. Reports whether a file was created.
func (w *Workspace) SaveFile(ctx context.Context, name, content string) (bool, error) {
	name, err := cleanName(name)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	created := w.files.ApplyEdit(name, content)
	w.persistProjects(ctx)
	return created, nil
}

func (w *Workspace) DeleteFile(ctx context.Context, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.files.DeleteFile(name) {
		return domain.ErrFileNotFound
	}
	w.persistProjects(ctx)
	return nil
}

func (w *Workspace) RenameFile(ctx context.Context, oldName, newName string) error {
	newName, err := cleanName(newName)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files.GetFile(oldName); !ok {
		return domain.ErrFileNotFound
	}
	if !w.files.RenameFile(oldName, newName) {
		return domain.ErrFileExists
	}
	w.persistProjects(ctx)
	return nil
}

// ---- history ----

func (w *Workspace) Messages() []domain.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneMessages(w.files.Project().Messages)
}

// AppendMessage appends to the given project's history. Staged files get
// their language and diff stats filled in against the project's files.
func (w *Workspace) AppendMessage(ctx context.Context, projectID string, msg domain.Message) (domain.Message, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.find(projectID)
	if p == nil {
		return domain.Message{}, domain.ErrProjectNotFound
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = w.now().UTC()
	}
	if msg.State == "" {
		msg.State = domain.StateCommitted
	}
	for i := range msg.Files {
		gf := &msg.Files[i]
		gf.Language = domain.LanguageFor(gf.Name)
		gf.Added, gf.Removed = lineDelta(currentContent(p, gf.Name), gf.Content)
	}

	p.Messages = append(p.Messages, msg)
	w.persistProjects(ctx)
	return cloneMessage(msg), nil
}

// CommitMessage confirms a provisional message.
func (w *Workspace) CommitMessage(ctx context.Context, projectID, messageID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	m, err := w.message(projectID, messageID)
	if err != nil {
		return err
	}
	if m.State != domain.StateCommitted {
		m.State = domain.StateCommitted
		w.persistProjects(ctx)
	}
	return nil
}

// RollbackMessage removes a message that is still provisional.
// Committed messages are never removed.
func (w *Workspace) RollbackMessage(ctx context.Context, projectID, messageID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.find(projectID)
	if p == nil {
		return domain.ErrProjectNotFound
	}
	for i := range p.Messages {
		if p.Messages[i].ID != messageID {
			continue
		}
		if p.Messages[i].State != domain.StateProvisional {
			return nil
		}
		p.Messages = append(p.Messages[:i], p.Messages[i+1:]...)
		w.persistProjects(ctx)
		return nil
	}
	return domain.ErrMessageNotFound
}

// ClearHistory drops every message of the active project.
func (w *Workspace) ClearHistory(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.files.Project().Messages = nil
	w.persistProjects(ctx)
}

// ApplyGenerated copies one staged file of a model message into the
// active project. A second apply of the same file does nothing and
// reports ApplyAlreadyApplied.
func (w *Workspace) ApplyGenerated(ctx context.Context, messageID, fileName string) (domain.ApplyResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	m, err := w.message(w.files.Project().ID, messageID)
	if err != nil {
		return domain.ApplyResult{}, err
	}
	for i := range m.Files {
		if m.Files[i].Name == fileName {
			res := w.applyOne(&m.Files[i])
			if res.Status == domain.ApplyApplied {
				w.persistProjects(ctx)
			}
			return res, nil
		}
	}
	return domain.ApplyResult{}, domain.ErrFileNotFound
}

// ApplyAllGenerated applies every staged file of a model message.
func (w *Workspace) ApplyAllGenerated(ctx context.Context, messageID string) ([]domain.ApplyResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	m, err := w.message(w.files.Project().ID, messageID)
	if err != nil {
		return nil, err
	}
	if len(m.Files) == 0 {
		return nil, domain.ErrNoGeneratedFiles
	}

	out := make([]domain.ApplyResult, 0, len(m.Files))
	changed := false
	for i := range m.Files {
		res := w.applyOne(&m.Files[i])
		changed = changed || res.Status == domain.ApplyApplied
		out = append(out, res)
	}
	if changed {
		w.persistProjects(ctx)
	}
	return out, nil
}

func (w *Workspace) applyOne(gf *domain.GeneratedFile) domain.ApplyResult {
	if gf.Applied {
		return domain.ApplyResult{Name: gf.Name, Status: domain.ApplyAlreadyApplied}
	}
	created := w.files.ApplyEdit(gf.Name, gf.Content)
	gf.Applied = true
	return domain.ApplyResult{Name: gf.Name, Status: domain.ApplyApplied, Created: created}
}

// ---- settings ----

func (w *Workspace) Settings() domain.Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.settings.Clone()
}

// UpdateSettings applies a patch. Turning a feature on requires allowed
// to accept it; turning one off is always permitted.
func (w *Workspace) UpdateSettings(ctx context.Context, patch domain.SettingsPatch, allowed func(feature string) bool) (domain.Settings, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for feature, on := range patch.Features {
		if on && allowed != nil && !allowed(feature) {
			return domain.Settings{}, fmt.Errorf("%w: %s", domain.ErrFeatureLocked, feature)
		}
	}

	next := w.settings.Clone()
	for feature, on := range patch.Features {
		next.Features[feature] = on
	}
	if patch.SelectedModel != nil && strings.TrimSpace(*patch.SelectedModel) != "" {
		next.SelectedModel = strings.TrimSpace(*patch.SelectedModel)
	}
	for provider, key := range patch.ModelKeys {
		if strings.TrimSpace(key) == "" {
			delete(next.ModelKeys, provider)
			continue
		}
		next.ModelKeys[provider] = strings.TrimSpace(key)
	}
	if patch.HostingAPIKey != nil {
		next.HostingAPIKey = strings.TrimSpace(*patch.HostingAPIKey)
	}
	if patch.CursorEffect != nil {
		next.CursorEffect = *patch.CursorEffect
	}

	persistedBefore := w.settings.Persisted()
	w.settings = next
	if !samePersisted(persistedBefore, next.Persisted()) {
		if err := w.store.SaveSettings(ctx, w.uid, next.Persisted()); err != nil {
			logging.NewLogger(ctx).LogError("workspace.save_settings", err, "uid", w.uid)
		}
	}
	return next.Clone(), nil
}

// RevokeFeatures switches off every toggle allowed rejects. Used after
// an entitlement change shrinks the feature set.
func (w *Workspace) RevokeFeatures(allowed func(feature string) bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for feature, on := range w.settings.Features {
		if on && !allowed(feature) {
			w.settings.Features[feature] = false
		}
	}
}

// GenerationSnapshot captures the state a generation request reads.
func (w *Workspace) GenerationSnapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.files.Project()
	return Snapshot{
		ProjectID: p.ID,
		Files:     w.files.Files(),
		History:   cloneMessages(p.Messages),
		Settings:  w.settings.Clone(),
	}
}

// ---- helpers (callers hold w.mu) ----

func (w *Workspace) newProject(name string) *domain.Project {
	return &domain.Project{
		ID:   uuid.NewString(),
		Name: name,
		Files: []domain.File{
			{Name: "index.html", Content: starterHTML, Language: domain.LanguageHTML},
		},
		LastModified: w.now().UTC(),
	}
}

func (w *Workspace) storeFor(p *domain.Project) *filestore.Store {
	return filestore.New(p).WithClock(w.now)
}

func (w *Workspace) find(id string) *domain.Project {
	for _, p := range w.projects {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (w *Workspace) message(projectID, messageID string) (*domain.Message, error) {
	p := w.find(projectID)
	if p == nil {
		return nil, domain.ErrProjectNotFound
	}
	for i := range p.Messages {
		if p.Messages[i].ID == messageID {
			return &p.Messages[i], nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (w *Workspace) persistProjects(ctx context.Context) {
	projects := make([]domain.Project, 0, len(w.projects))
	for _, p := range w.projects {
		projects = append(projects, *p)
	}
	if err := w.store.SaveProjects(ctx, w.uid, projects, w.files.Project().ID); err != nil {
		logging.NewLogger(ctx).LogError("workspace.save_projects", err, "uid", w.uid)
	}
}

func currentContent(p *domain.Project, name string) string {
	for _, f := range p.Files {
		if f.Name == name {
			return f.Content
		}
	}
	for _, f := range p.Files {
		if strings.EqualFold(f.Name, name) {
			return f.Content
		}
	}
	return ""
}

// ValidateName reports domain.ErrInvalidName for a name that no project
// or file may carry.
func ValidateName(name string) error {
	_, err := cleanName(name)
	return err
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength || strings.Contains(name, "..") {
		return "", domain.ErrInvalidName
	}
	return name, nil
}

func samePersisted(a, b domain.PersistedSettings) bool {
	if a.CursorEffect != b.CursorEffect || a.SelectedModel != b.SelectedModel || a.HostingAPIKey != b.HostingAPIKey {
		return false
	}
	if len(a.ModelKeys) != len(b.ModelKeys) {
		return false
	}
	for k, v := range a.ModelKeys {
		if b.ModelKeys[k] != v {
			return false
		}
	}
	return true
}

func cloneProject(p *domain.Project) domain.Project {
	out := *p
	out.Files = append([]domain.File(nil), p.Files...)
	out.Messages = cloneMessages(p.Messages)
	out.Tags = append([]string(nil), p.Tags...)
	return out
}

func cloneMessages(in []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(in))
	for _, m := range in {
		out = append(out, cloneMessage(m))
	}
	return out
}

func cloneMessage(m domain.Message) domain.Message {
	m.Files = append([]domain.GeneratedFile(nil), m.Files...)
	return m
}
