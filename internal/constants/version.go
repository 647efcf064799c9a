package constants

// UserAgent returns the User-Agent sent on websocket handshakes.
func UserAgent() string {
	return ProjectName + "/" + *GetVersion()
}
