package api

import "time"

// DependencyStatus describes one language toolchain on the host.
type DependencyStatus struct {
	Language          Language `json:"language"`
	Name              string   `json:"name"`
	Available         bool     `json:"available"`
	Version           string   `json:"version,omitempty"`
	Error             string   `json:"error,omitempty"`
	InstallationGuide string   `json:"installation_guide,omitempty"`

	// Command is the resolved executable that answered the version query.
	Command string `json:"command,omitempty"`
}

// SystemDependencies is a point-in-time snapshot of every toolchain.
// Snapshots are immutable once published; use Clone before modifying.
type SystemDependencies struct {
	Toolchains   []DependencyStatus `json:"toolchains"`
	AllAvailable bool               `json:"all_available"`
	CheckedAt    time.Time          `json:"checked_at"`
}

// NewSystemDependencies builds a snapshot and derives AllAvailable.
func NewSystemDependencies(statuses []DependencyStatus, checkedAt time.Time) *SystemDependencies {
	all := len(statuses) > 0
	for _, s := range statuses {
		all = all && s.Available
	}
	return &SystemDependencies{
		Toolchains:   statuses,
		AllAvailable: all,
		CheckedAt:    checkedAt,
	}
}

// Lookup returns the status for a language.
func (d *SystemDependencies) Lookup(lang Language) (DependencyStatus, bool) {
	if d == nil {
		return DependencyStatus{}, false
	}
	for _, s := range d.Toolchains {
		if s.Language == lang {
			return s, true
		}
	}
	return DependencyStatus{}, false
}

// Clone returns a deep copy of the snapshot.
func (d *SystemDependencies) Clone() *SystemDependencies {
	if d == nil {
		return nil
	}
	out := *d
	out.Toolchains = append([]DependencyStatus(nil), d.Toolchains...)
	return &out
}
