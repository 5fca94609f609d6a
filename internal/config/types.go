package config

import "time"

// Config is the top-level configuration for a harness run.
type Config struct {
	Target   TargetConfig    `yaml:"target"`
	Services []ServiceConfig `yaml:"services"`
	Cleanup  CleanupConfig   `yaml:"cleanup"`
	Report   ReportConfig    `yaml:"report"`
	Run      RunConfig       `yaml:"run"`
}

// TargetConfig describes the system under test from the client's side.
type TargetConfig struct {
	// BaseURL is where the backend API listens.
	BaseURL string `yaml:"baseUrl,omitempty"`
	// AdminEmail and AdminPassword are the credentials auth-requiring
	// groups log in with.
	AdminEmail    string `yaml:"adminEmail,omitempty"`
	AdminPassword string `yaml:"adminPassword,omitempty"`
	// RequestTimeout bounds every API call the groups make.
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty"`
}

// ServiceConfig describes one process the supervisor launches.
type ServiceConfig struct {
	Name      string        `yaml:"name"`
	Command   []string      `yaml:"command"`
	Dir       string        `yaml:"dir,omitempty"`
	Env       []string      `yaml:"env,omitempty"`
	Port      int           `yaml:"port,omitempty"`
	HealthURL string        `yaml:"healthUrl,omitempty"`
	Grace     time.Duration `yaml:"grace,omitempty"`
}

// CleanupConfig lists the on-disk state reset before and after a run.
type CleanupConfig struct {
	// Database is the backend's database file; its -wal and -shm
	// siblings are removed with it.
	Database string `yaml:"database,omitempty"`
	// BackupsDir is emptied and recreated.
	BackupsDir string `yaml:"backupsDir,omitempty"`
	// Extra paths are removed as plain files.
	Extra []string `yaml:"extra,omitempty"`
	// StalePattern matches leftover service processes from earlier runs
	// (pgrep -f syntax).
	StalePattern string `yaml:"stalePattern,omitempty"`
}

// ReportConfig controls where run artifacts land.
type ReportConfig struct {
	Dir string `yaml:"dir,omitempty"`
	// Transcript writes each service's captured output next to the
	// report.
	Transcript bool `yaml:"transcript,omitempty"`
}

// RunConfig holds execution knobs, all overridable from the command line.
type RunConfig struct {
	Verbose            bool `yaml:"verbose,omitempty"`
	KeepData           bool `yaml:"keepData,omitempty"`
	StopOnFirstFailure bool `yaml:"stopOnFirstFailure,omitempty"`
	// StrictCleanAfter escalates leftover-file warnings to a hard error
	// once that many consecutive cleanup passes saw leftovers. Zero
	// disables escalation.
	StrictCleanAfter int `yaml:"strictCleanAfter,omitempty"`
}

// GetDefaultConfig returns the configuration used when no config file is
// present: a node backend on 3000, a frontend dev server on 3001, and the
// conventional data layout under ./data.
func GetDefaultConfig() Config {
	return Config{
		Target: TargetConfig{
			BaseURL:        "http://localhost:3000",
			AdminEmail:     "admin@example.com",
			AdminPassword:  "admin",
			RequestTimeout: 30 * time.Second,
		},
		Services: []ServiceConfig{
			{
				Name:      "backend",
				Command:   []string{"npm", "run", "start"},
				Dir:       "backend",
				Port:      3000,
				HealthURL: "http://localhost:3000/api/health",
				// The backend owns the database and needs time to
				// flush and close it.
				Grace: 10 * time.Second,
			},
			{
				Name:      "frontend",
				Command:   []string{"npm", "run", "dev"},
				Dir:       "frontend",
				Port:      3001,
				HealthURL: "http://localhost:3001/",
				Grace:     3 * time.Second,
			},
		},
		Cleanup: CleanupConfig{
			Database:     "data/data.db",
			BackupsDir:   "data/backups",
			StalePattern: "node.*(backend|frontend)",
		},
		Report: ReportConfig{
			Dir:        "reports",
			Transcript: false,
		},
		Run: RunConfig{},
	}
}
