package config

// Default values.
const (
	DefaultBackend       = "gogit"
	DefaultRevision      = "HEAD"
	DefaultWorkers       = 1
	DefaultCacheStrict   = true
	DefaultReportFormat  = "text"
	DefaultLogLevel      = "info"
	DefaultSampleRatio   = 0.0
	DefaultCaseSensitive = false
)
