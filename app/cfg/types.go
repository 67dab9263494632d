package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Cache configuration
	RedisAddr string
	CacheTTL  int // seconds

	// Application configuration
	SourcesFile     string
	Port            string
	RefreshInterval int // seconds, 0 disables the background refresher
	FetchTimeout    int // seconds

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
