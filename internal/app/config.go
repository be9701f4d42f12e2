package app

// Config holds everything an App instance needs to run, independent of
// which CLI subcommand invoked it.
type Config struct {
	PluginsRoot     string
	HealthcheckPort int
	LogFormat       string
	LogLevel        string
}
