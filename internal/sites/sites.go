// Package sites loads and validates the monitored-site configuration.
//
// The configuration is a JSON array of site entries. It is read once at the
// start of a run and treated as immutable for the remainder of the run.
package sites

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// ErrSiteNotFound is returned when a site filter names no configured site.
var ErrSiteNotFound = errors.New("site not found")

// Site describes one monitored target.
type Site struct {
	// Name is the unique identifier used as the log and report key.
	Name string `json:"name"`
	// URL is the fully qualified address to visit.
	URL string `json:"url"`
	// Selector overrides the element used to detect and operate the
	// wake-up control. Empty means the platform default.
	Selector string `json:"selector,omitempty"`
	// MustContain is the substring whose presence in rendered content
	// signals the site is up.
	MustContain string `json:"must_contain"`
	// IsStreamlit enables the platform dormant/recovery handling.
	IsStreamlit bool `json:"is_streamlit"`
	// LogRaw requests the raw rendered markup be persisted for this site.
	LogRaw bool `json:"log_raw,omitempty"`
}

// Validate checks a single entry.
func (s Site) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("site name must not be empty")
	}
	if s.MustContain == "" {
		return fmt.Errorf("site %q: must_contain must not be empty", s.Name)
	}
	if err := validateURL(s.URL); err != nil {
		return fmt.Errorf("site %q: %w", s.Name, err)
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}

// Load reads the site list from path and validates every entry.
// Any invalid entry fails the whole load; a run never starts with a
// partially valid fleet.
func Load(path string) ([]Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites config %s: %w", path, err)
	}
	var list []Site
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse sites config %s: %w", path, err)
	}
	if err := ValidateAll(list); err != nil {
		return nil, err
	}
	return list, nil
}

// ValidateAll validates every entry and enforces name uniqueness.
func ValidateAll(list []Site) error {
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("duplicate site name %q", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// Filter returns the sites matching name, or all sites when name is empty.
// An unknown name is a configuration error; no browser work should follow.
func Filter(list []Site, name string) ([]Site, error) {
	if name == "" {
		return list, nil
	}
	for _, s := range list {
		if s.Name == name {
			return []Site{s}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (configured: %s)", ErrSiteNotFound, name, namesOf(list))
}

func namesOf(list []Site) string {
	out := ""
	for i, s := range list {
		if i > 0 {
			out += ", "
		}
		out += s.Name
	}
	return out
}

// Save writes the site list back to path. An existing file is backed up
// first; on write failure the backup is restored so a broken config is
// never left behind.
func Save(path string, list []Site) error {
	if err := ValidateAll(list); err != nil {
		return err
	}
	backup, err := backupConfig(path)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sites config: %w", err)
	}
	payload = append(payload, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		if backup != "" {
			restoreConfig(path, backup)
		}
		return fmt.Errorf("write sites config %s: %w", path, err)
	}
	return nil
}

func backupConfig(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read existing config %s: %w", path, err)
	}
	backup := fmt.Sprintf("%s.backup_%s", path, time.Now().Format("20060102_150405"))
	if err := os.WriteFile(backup, data, 0o600); err != nil {
		return "", fmt.Errorf("write config backup %s: %w", backup, err)
	}
	return backup, nil
}

func restoreConfig(path, backup string) {
	data, err := os.ReadFile(backup)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o600)
}

// Add appends a site to the config at path, rejecting duplicate names.
func Add(path string, s Site) error {
	list, err := loadForEdit(path)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing.Name == s.Name {
			return fmt.Errorf("site %q already exists", s.Name)
		}
	}
	return Save(path, append(list, s))
}

// Remove deletes the named site from the config at path.
func Remove(path, name string) error {
	list, err := loadForEdit(path)
	if err != nil {
		return err
	}
	kept := make([]Site, 0, len(list))
	for _, s := range list {
		if s.Name != name {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(list) {
		return fmt.Errorf("%w: %q", ErrSiteNotFound, name)
	}
	return Save(path, kept)
}

// loadForEdit tolerates a missing file so the first add creates it.
func loadForEdit(path string) ([]Site, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sites config %s: %w", path, err)
	}
	var list []Site
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse sites config %s: %w", path, err)
	}
	return list, nil
}
