package app

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/hankai/housecup/internal/models"
)

type HouseConfig struct {
	Name   string `toml:"name"`
	Points int    `toml:"points"`
	Colour string `toml:"colour"`
	Img    string `toml:"img"`
}

type RosterConfig struct {
	House    string   `toml:"house"`
	Teachers []string `toml:"teachers"`
}

type Config struct {
	Server struct {
		Port           string `toml:"port"`
		EnableSessions bool   `toml:"enable_sessions"`
	} `toml:"server"`

	Sessions struct {
		RedisURL    string `toml:"redis_url"`
		TokenHeader string `toml:"token_header"`
		TTLMinutes  int    `toml:"ttl_minutes"`
		RoleHeader  string `toml:"role_header"`
		UserHeader  string `toml:"user_header"`
		HouseHeader string `toml:"house_header"`
	} `toml:"sessions"`

	Auth struct {
		AdminUsername   string `toml:"admin_username"`
		AdminPassword   string `toml:"admin_password"`
		TeacherPassword string `toml:"teacher_password"`
	} `toml:"auth"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Quota struct {
		Mode             string `toml:"mode"`
		DailyPointsCap   int    `toml:"daily_points_cap"`
		DailyActionsCap  int    `toml:"daily_actions_cap"`
		RestrictOwnHouse bool   `toml:"restrict_own_house"`
	} `toml:"quota"`

	Display struct {
		HistoryLimit    int    `toml:"history_limit"`
		TimestampFormat string `toml:"timestamp_format"`
	} `toml:"display"`

	Export struct {
		SpreadsheetID   string `toml:"spreadsheet_id"`
		CredentialsPath string `toml:"credentials_path"`
		Range           string `toml:"range"`
		IntervalMinutes int    `toml:"interval_minutes"`
	} `toml:"export"`

	Houses []HouseConfig  `toml:"houses"`
	Roster []RosterConfig `toml:"roster"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :8080")
	}
	if len(config.Houses) == 0 {
		return nil, fmt.Errorf("No houses configured, at least one [[houses]] table is required")
	}

	houses := config.DefaultHouses()
	for _, group := range config.Roster {
		if _, ok := houses[group.House]; !ok {
			return nil, fmt.Errorf("Roster references unknown house: %s", group.House)
		}
	}

	logger.Debug.Printf("Loaded quota config: %+v", config.Quota)

	return &config, nil
}

// DefaultHouses builds the fixed house table from config. This is the
// closed set of valid houses; nothing is created or deleted at runtime.
func (c *Config) DefaultHouses() map[string]models.House {
	houses := make(map[string]models.House, len(c.Houses))
	for _, h := range c.Houses {
		houses[h.Name] = models.House{
			Points: h.Points,
			Colour: h.Colour,
			Img:    h.Img,
		}
	}
	return houses
}

// HomeHouse looks up a teacher's home house by normalized username.
func (c *Config) HomeHouse(username string) (string, bool) {
	id := models.NormalizeActor(username)
	for _, group := range c.Roster {
		for _, teacher := range group.Teachers {
			if models.NormalizeActor(teacher) == id {
				return group.House, true
			}
		}
	}
	return "", false
}
