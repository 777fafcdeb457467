package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"cohort-bank/models"
)

// Config is the root configuration struct
type Config struct {
	Customer CustomerConfig `mapstructure:"customer"`
	Network  NetworkConfig  `mapstructure:"network"`
	Bank     BankConfig     `mapstructure:"bank"`
	Cohort   []PeerConfig   `mapstructure:"cohort"`
	LevelDB  LevelDBConfig  `mapstructure:"leveldb"`
	Log      LogConfig      `mapstructure:"log"`
}

// CustomerConfig names the account this process serves
type CustomerConfig struct {
	Name    string `mapstructure:"name"`
	Balance int64  `mapstructure:"balance"`
}

// NetworkConfig holds the local endpoints and the per-request bound
type NetworkConfig struct {
	IP       string        `mapstructure:"ip"`
	Port     int           `mapstructure:"port"`
	PeerPort int           `mapstructure:"peerPort"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// BankConfig points at the coordinator. An empty address means the cohort
// below is used as is.
type BankConfig struct {
	Address string `mapstructure:"address"`
}

// PeerConfig is one entry of a static cohort
type PeerConfig struct {
	Name     string `mapstructure:"name"`
	IP       string `mapstructure:"ip"`
	Port     int    `mapstructure:"port"`
	PeerPort int    `mapstructure:"peerPort"`
}

type LevelDBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	AppLogFile string `mapstructure:"app_log_file"`
	Level      string `mapstructure:"level"`
}

// Self describes this customer as a cohort peer.
func (c *Config) Self() models.Peer {
	return models.Peer{
		Name:     c.Customer.Name,
		Address:  c.Network.IP,
		Port:     c.Network.Port,
		PeerPort: c.Network.PeerPort,
	}
}

// StaticEnrollment builds the enrollment from the configured cohort, adding
// this customer when the list leaves it out.
func (c *Config) StaticEnrollment() models.Enrollment {
	e := models.Enrollment{Name: c.Customer.Name, Balance: c.Customer.Balance}
	found := false
	for _, p := range c.Cohort {
		if p.Name == c.Customer.Name {
			found = true
		}
		e.Cohort = append(e.Cohort, models.Peer{Name: p.Name, Address: p.IP, Port: p.Port, PeerPort: p.PeerPort})
	}
	if !found {
		e.Cohort = append(e.Cohort, c.Self())
	}
	return e
}

// Load reads configuration from file and environment. Environment variables
// use the COHORT prefix, e.g. COHORT_CUSTOMER_NAME.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("customer.balance", 0)
	v.SetDefault("network.ip", "127.0.0.1")
	v.SetDefault("network.port", 8080)
	v.SetDefault("network.peerPort", 9090)
	v.SetDefault("network.timeout", 5*time.Second)
	v.SetDefault("bank.address", "")
	v.SetDefault("leveldb.path", "data/checkpoints")
	v.SetDefault("log.app_log_file", "")
	v.SetDefault("log.level", "info")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("COHORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only sees keys viper already knows about
	_ = v.BindEnv("customer.name")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
