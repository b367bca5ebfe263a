// Package filestore is the authoritative in-memory file tree of one
// project. It does no locking and no I/O; callers serialise access and
// persist after mutations.
package filestore

import (
	"strings"
	"time"

	"github.com/sitecraft-ai/sitecraft-backend/internal/workspace/domain"
)

type Store struct {
	project  *domain.Project
	selected string
	now      func() time.Time
}

// New wraps a project. The first file, if any, starts selected.
func New(p *domain.Project) *Store {
	s := &Store{project: p, now: time.Now}
	if len(p.Files) > 0 {
		s.selected = p.Files[0].Name
	}
	return s
}

// WithClock replaces the time source used for last-modified stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Project() *domain.Project { return s.project }

// Selected returns the selected file name, "" when nothing is selected.
func (s *Store) Selected() string { return s.selected }

// Select marks an existing file as selected.
func (s *Store) Select(name string) bool {
	if s.indexExact(name) < 0 {
		return false
	}
	s.selected = name
	return true
}

// Files returns a copy of the file list in display order.
func (s *Store) Files() []domain.File {
	out := make([]domain.File, len(s.project.Files))
	copy(out, s.project.Files)
	return out
}

// GetFile is a case-sensitive exact lookup.
func (s *Store) GetFile(name string) (domain.File, bool) {
	i := s.indexExact(name)
	if i < 0 {
		return domain.File{}, false
	}
	return s.project.Files[i], true
}

// ApplyEdit writes content to the file matching name case-insensitively,
// keeping its position and stored name. Without a match a new file is
// appended. Reports whether a file was created.
func (s *Store) ApplyEdit(name, content string) bool {
	if i := s.indexFold(name); i >= 0 {
		s.project.Files[i].Content = content
		s.touch()
		return false
	}

	s.project.Files = append(s.project.Files, domain.File{
		Name:     name,
		Content:  content,
		Language: domain.LanguageFor(name),
	})
	s.touch()
	return true
}

// CreateFile appends a new file and selects it. It is a no-op when the
// exact name already exists.
func (s *Store) CreateFile(name, content string) bool {
	if s.indexExact(name) >= 0 {
		return false
	}

	s.project.Files = append(s.project.Files, domain.File{
		Name:     name,
		Content:  content,
		Language: domain.LanguageFor(name),
	})
	s.selected = name
	s.touch()
	return true
}

// DeleteFile removes the exact name. A deleted selection moves to the
// new first file, or to none.
func (s *Store) DeleteFile(name string) bool {
	i := s.indexExact(name)
	if i < 0 {
		return false
	}

	s.project.Files = append(s.project.Files[:i], s.project.Files[i+1:]...)
	if s.selected == name {
		s.selected = ""
		if len(s.project.Files) > 0 {
			s.selected = s.project.Files[0].Name
		}
	}
	s.touch()
	return true
}

// RenameFile relabels a file in place. It is a no-op when newName
// already exists (exact match) or oldName does not.
func (s *Store) RenameFile(oldName, newName string) bool {
	if s.indexExact(newName) >= 0 {
		return false
	}
	i := s.indexExact(oldName)
	if i < 0 {
		return false
	}

	s.project.Files[i].Name = newName
	s.project.Files[i].Language = domain.LanguageFor(newName)
	if s.selected == oldName {
		s.selected = newName
	}
	s.touch()
	return true
}

func (s *Store) indexExact(name string) int {
	for i, f := range s.project.Files {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// indexFold prefers an exact match so that a project holding both
// "Index.html" and "index.html" still resolves deterministically.
func (s *Store) indexFold(name string) int {
	if i := s.indexExact(name); i >= 0 {
		return i
	}
	for i, f := range s.project.Files {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

func (s *Store) touch() {
	s.project.LastModified = s.now().UTC()
}
