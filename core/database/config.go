package database

// Config holds configuration for the ledger database connection.
type Config struct {
	// Driver is the database driver (sqlite, mysql).
	Driver string `mapstructure:"driver" default:"sqlite"`
	// Host is the database host (mysql).
	Host string `mapstructure:"host" default:"localhost"`
	// Port is the database port (mysql).
	Port int `mapstructure:"port" default:"3306"`
	// User is the database user (mysql).
	User string `mapstructure:"user" default:"root"`
	// Password is the database password (mysql).
	Password string `mapstructure:"password" default:""`
	// Name is the database name, or the file path for sqlite.
	Name string `mapstructure:"name" default:".boot/ledger.db"`
	// TimeoutSeconds bounds connection setup and the initial ping.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
