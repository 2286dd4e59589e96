package monday

// Config holds the monday.com API connection settings.
type Config struct {
	Enabled      bool   `json:"enabled"`
	APIURL       string `json:"api_url"`
	APIToken     string `json:"api_token"`
	BoardID      int64  `json:"board_id"`
	DateColumnID string `json:"date_column_id"`
	TimeColumnID string `json:"time_column_id"`
	MaxRetries   int    `json:"max_retries"`
}

// SetDefaults fills in the public API endpoint and the column identifiers
// used by the scheduling board.
func (c *Config) SetDefaults() {
	if c.APIURL == "" {
		c.APIURL = "https://api.monday.com/v2"
	}
	if c.DateColumnID == "" {
		c.DateColumnID = "date0"
	}
	if c.TimeColumnID == "" {
		c.TimeColumnID = "hour__1"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}

// Validate checks that the config is usable when the sync is enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.APIToken == "" {
		return errMissingToken
	}
	if c.BoardID == 0 {
		return errMissingBoard
	}
	return nil
}
