package persist

import "fmt"

// Driver selects the recorder backend.
type Driver string

const (
	// DriverNone disables transcript and lead recording.
	DriverNone Driver = "none"

	// DriverSQLite records into a local SQLite database.
	DriverSQLite Driver = "sqlite"

	// DriverSupabase records into hosted Postgres via Supabase.
	DriverSupabase Driver = "supabase"
)

// Config holds recorder settings.
type Config struct {
	// Driver selects the backend. Defaults to "none".
	Driver Driver `json:"driver"`

	// SQLitePath is the database file location for the sqlite driver.
	SQLitePath string `json:"sqlite_path,omitempty"`

	// Supabase holds connection parameters for the supabase driver.
	Supabase SupabaseConfig `json:"supabase,omitempty"`
}

// DefaultConfig returns the recorder defaults.
func DefaultConfig() Config {
	return Config{Driver: DriverNone}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Driver != "" {
		c.Driver = source.Driver
	}
	if source.SQLitePath != "" {
		c.SQLitePath = source.SQLitePath
	}
	if source.Supabase.URL != "" {
		c.Supabase.URL = source.Supabase.URL
	}
	if source.Supabase.APIKey != "" {
		c.Supabase.APIKey = source.Supabase.APIKey
	}
}

// New creates a Recorder from configuration.
func New(cfg *Config) (Recorder, error) {
	switch cfg.Driver {
	case DriverNone, "":
		return NopRecorder{}, nil
	case DriverSQLite:
		return NewSQLite(cfg.SQLitePath)
	case DriverSupabase:
		return NewSupabase(cfg.Supabase)
	default:
		return nil, fmt.Errorf("unknown persist driver %q", cfg.Driver)
	}
}
