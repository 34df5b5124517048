package config

// APIConfig configures the read-only HTTP API over stored runs.
type APIConfig struct {
	Addr string `json:"addr"`
	// Token is required as a bearer token when non-empty.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
