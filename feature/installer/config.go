package installer

// Config holds configuration for the dependency installer.
type Config struct {
	// Manifest is the requirements file path.
	Manifest string `mapstructure:"manifest" default:"requirements.txt"`
	// SiteDir is where packages are extracted.
	SiteDir string `mapstructure:"site_dir" default:".boot/site"`
	// Index selects the package index: http, storage or none.
	Index string `mapstructure:"index" default:"http"`
	// IndexURL is the base URL of the http index.
	IndexURL string `mapstructure:"index_url" default:"http://localhost:8081/packages"`
	// TimeoutSeconds bounds each http index request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"60"`
	// Skip bypasses installation entirely.
	Skip bool `mapstructure:"skip" default:"false"`
}

const (
	IndexHTTP    = "http"
	IndexStorage = "storage"
	IndexNone    = "none"
)
