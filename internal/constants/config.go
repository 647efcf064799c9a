package constants

// ConfigDirName is the name of the configuration directory in the user's home directory.
const ConfigDirName = "." + ProjectName

// ConfigFileName is the name of the global configuration file.
const ConfigFileName = "config.yaml"

// ThemeFileName is the name of the optional viewer theme file, next to the config file.
const ThemeFileName = "theme.toml"

// ConfigDirPath returns the full path to the global configuration directory.
func ConfigDirPath(homeDir string) string {
	return homeDir + "/" + ConfigDirName
}

// ConfigFilePath returns the full path to the global configuration file.
func ConfigFilePath(homeDir string) string {
	return ConfigDirPath(homeDir) + "/" + ConfigFileName
}

// ConfigDirPermissions is the file system permissions for config directory (0750).
const ConfigDirPermissions = 0o750

// ConfigFilePermissions is the file system permissions for config file (0600).
const ConfigFilePermissions = 0o600

// ExportFilePermissions is the file system permissions for exported log files (0644).
const ExportFilePermissions = 0o644

// DefaultStreamURL is the log endpoint served by a local relay.
const DefaultStreamURL = "ws://localhost:8000/ws/logs"

// DefaultRelayListen is the listen address of the relay server.
const DefaultRelayListen = ":8000"

// DefaultRelayReplay is the number of recent lines the relay replays to new subscribers.
const DefaultRelayReplay = 200

// DefaultExportDir is the directory exported log files are written to.
const DefaultExportDir = "."

// DefaultLogLevel is the slog level used when none is configured.
const DefaultLogLevel = "INFO"
