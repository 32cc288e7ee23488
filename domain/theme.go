package domain

// ThemeMode is the persisted appearance preference.
type ThemeMode string

const (
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
	ThemeSystem ThemeMode = "system"
)

func (m ThemeMode) Valid() bool {
	switch m {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// Resolve returns the concrete theme for the mode given the platform preference.
func (m ThemeMode) Resolve(systemDark bool) ThemeMode {
	if m == ThemeSystem || !m.Valid() {
		if systemDark {
			return ThemeDark
		}
		return ThemeLight
	}
	return m
}
