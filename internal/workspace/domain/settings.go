package domain

import "strings"

// Settings are per-session editor settings. Only PersistedSettings
// crosses the session boundary.
type Settings struct {
	Features      map[string]bool   `json:"features"`
	SelectedModel string            `json:"selected_model"`
	ModelKeys     map[string]string `json:"-"`
	HostingAPIKey string            `json:"-"`
	CursorEffect  bool              `json:"cursor_effect"`
}

// PersistedSettings is the reduced subset written to local persistence.
// Feature toggles are deliberately absent.
type PersistedSettings struct {
	CursorEffect  bool              `json:"cursor_effect"`
	SelectedModel string            `json:"selected_model"`
	HostingAPIKey string            `json:"hosting_api_key,omitempty"`
	ModelKeys     map[string]string `json:"model_keys,omitempty"`
}

// SettingsPatch carries an explicit settings update. Nil fields are left
// untouched; an empty model key removes it.
type SettingsPatch struct {
	Features      map[string]bool   `json:"features,omitempty"`
	SelectedModel *string           `json:"selected_model,omitempty"`
	ModelKeys     map[string]string `json:"model_keys,omitempty"`
	HostingAPIKey *string           `json:"hosting_api_key,omitempty"`
	CursorEffect  *bool             `json:"cursor_effect,omitempty"`
}

// SettingsView is what the API returns: secrets reduced to presence flags.
type SettingsView struct {
	Features      map[string]bool `json:"features"`
	SelectedModel string          `json:"selected_model"`
	CursorEffect  bool            `json:"cursor_effect"`
	ModelKeys     []string        `json:"model_keys"`
	HasHostingKey bool            `json:"has_hosting_key"`
}

func DefaultSettings(model string) Settings {
	return Settings{
		Features:      map[string]bool{},
		SelectedModel: model,
		ModelKeys:     map[string]string{},
	}
}

func (s Settings) Persisted() PersistedSettings {
	keys := make(map[string]string, len(s.ModelKeys))
	for k, v := range s.ModelKeys {
		keys[k] = v
	}
	return PersistedSettings{
		CursorEffect:  s.CursorEffect,
		SelectedModel: s.SelectedModel,
		HostingAPIKey: s.HostingAPIKey,
		ModelKeys:     keys,
	}
}

// FromPersisted rebuilds session settings; feature toggles start empty.
func FromPersisted(p PersistedSettings, defaultModel string) Settings {
	s := DefaultSettings(defaultModel)
	s.CursorEffect = p.CursorEffect
	if strings.TrimSpace(p.SelectedModel) != "" {
		s.SelectedModel = p.SelectedModel
	}
	s.HostingAPIKey = p.HostingAPIKey
	for k, v := range p.ModelKeys {
		s.ModelKeys[k] = v
	}
	return s
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s Settings) Clone() Settings {
	out := s
	out.Features = make(map[string]bool, len(s.Features))
	for k, v := range s.Features {
		out.Features[k] = v
	}
	out.ModelKeys = make(map[string]string, len(s.ModelKeys))
	for k, v := range s.ModelKeys {
		out.ModelKeys[k] = v
	}
	return out
}

// EnabledFeatures lists the toggles that are switched on.
func (s Settings) EnabledFeatures() []string {
	out := make([]string, 0, len(s.Features))
	for k, on := range s.Features {
		if on {
			out = append(out, k)
		}
	}
	return out
}

func (s Settings) View() SettingsView {
	keys := make([]string, 0, len(s.ModelKeys))
	for k := range s.ModelKeys {
		keys = append(keys, k)
	}
	features := make(map[string]bool, len(s.Features))
	for k, v := range s.Features {
		features[k] = v
	}
	return SettingsView{
		Features:      features,
		SelectedModel: s.SelectedModel,
		CursorEffect:  s.CursorEffect,
		ModelKeys:     keys,
		HasHostingKey: s.HostingAPIKey != "",
	}
}
