package config

// Config is the fully resolved, validated configuration for one crawler
// process: built-in defaults merged with the user's crawler.yaml.
// This is the primary object returned by Initialize() and used throughout
// the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	LogLevel string

	Fetch    *FetchConfig
	Site     *SiteConfig
	Planning *PlanningConfig
	Session  *SessionConfig
	Retry    *RetryConfig
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}
