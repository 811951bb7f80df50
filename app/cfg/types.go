package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	SourcesDir         string
	Port               string
	WorkerCount        int
	SweepInterval      int
	SessionIdleTimeout int

	// Authentication
	TokenKey  string
	TokenTTL  int
	ResetTTL  int
	AuthRate  float64
	AuthBurst int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
