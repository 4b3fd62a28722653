package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete server configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Tables []TableConfig  `hcl:"table,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// TableConfig defines one table
type TableConfig struct {
	Name          string `hcl:"name,label"`
	MaxPlayers    int    `hcl:"max_players,optional"`
	SmallBlind    int64  `hcl:"small_blind"`
	BigBlind      int64  `hcl:"big_blind"`
	BuyInMin      int64  `hcl:"buy_in_min,optional"`
	BuyInMax      int64  `hcl:"buy_in_max,optional"`
	ActionSeconds int    `hcl:"action_seconds,optional"`
	AutoStart     bool   `hcl:"auto_start,optional"`

	TimeBank *TimeBankConfig `hcl:"time_bank,block"`
	BombPot  *BombPotConfig  `hcl:"bomb_pot,block"`
}

// TimeBankConfig configures the per-player overflow clock
type TimeBankConfig struct {
	Enabled bool `hcl:"enabled,optional"`
	Seconds int  `hcl:"seconds,optional"`
}

// BombPotConfig schedules recurring bomb pots at a table
type BombPotConfig struct {
	EveryHands  int   `hcl:"every_hands"`
	Ante        int64 `hcl:"ante"`
	DoubleBoard bool  `hcl:"double_board,optional"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Tables: []TableConfig{
			{
				Name:          "main",
				MaxPlayers:    6,
				SmallBlind:    1,
				BigBlind:      2,
				BuyInMin:      100,
				BuyInMax:      1000,
				ActionSeconds: 30,
				AutoStart:     true,
			},
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to
// defaults when the file does not exist
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}

	for i := range config.Tables {
		t := &config.Tables[i]
		if t.MaxPlayers == 0 {
			t.MaxPlayers = 6
		}
		if t.BuyInMin == 0 {
			t.BuyInMin = t.BigBlind * 50
		}
		if t.BuyInMax == 0 {
			t.BuyInMax = t.BigBlind * 500
		}
		if t.ActionSeconds == 0 {
			t.ActionSeconds = 30
		}
		if t.TimeBank != nil && t.TimeBank.Enabled && t.TimeBank.Seconds == 0 {
			t.TimeBank.Seconds = 60
		}
	}

	return &config, nil
}

// Validate checks the configuration for contradictions
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}

	for _, table := range c.Tables {
		if table.SmallBlind <= 0 {
			return fmt.Errorf("table %s: small blind must be positive", table.Name)
		}
		if table.BigBlind <= table.SmallBlind {
			return fmt.Errorf("table %s: big blind must be greater than small blind", table.Name)
		}
		if table.MaxPlayers < 2 || table.MaxPlayers > 10 {
			return fmt.Errorf("table %s: max players must be between 2 and 10", table.Name)
		}
		if table.BuyInMin >= table.BuyInMax {
			return fmt.Errorf("table %s: buy-in minimum must be less than maximum", table.Name)
		}
		if table.ActionSeconds < 0 {
			return fmt.Errorf("table %s: action seconds cannot be negative", table.Name)
		}
		if bp := table.BombPot; bp != nil {
			if bp.EveryHands <= 0 {
				return fmt.Errorf("table %s: bomb pot cadence must be positive", table.Name)
			}
			if bp.Ante <= 0 {
				return fmt.Errorf("table %s: bomb pot ante must be positive", table.Name)
			}
		}
	}

	return nil
}

// GetServerAddress returns the full listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GetTableByName returns a table configuration by name
func (c *Config) GetTableByName(name string) *TableConfig {
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			return &c.Tables[i]
		}
	}
	return nil
}
