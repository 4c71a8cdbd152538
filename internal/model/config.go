package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/nhle/sms-messenger/internal/gateway"
)

// AccountConfig holds the mail account the gateway sends and reads through.
type AccountConfig struct {
	Email      string `mapstructure:"email" yaml:"email"`
	SMTPHost   string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort   int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	IMAPHost   string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort   int    `mapstructure:"imap_port" yaml:"imap_port"`
	Inbox      string `mapstructure:"inbox" yaml:"inbox"`
	SentFolder string `mapstructure:"sent_folder" yaml:"sent_folder"`
	Subject    string `mapstructure:"subject" yaml:"subject"`
}

// Contact is a named phone number on a known carrier.
type Contact struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Number  string `mapstructure:"number" yaml:"number"`
	Carrier string `mapstructure:"carrier" yaml:"carrier"`
}

// Address resolves the contact to its email-to-SMS gateway address.
func (c Contact) Address() (string, error) {
	addr, err := gateway.Address(c.Number, c.Carrier)
	if err != nil {
		return "", fmt.Errorf("contact %q: %w", c.Name, err)
	}
	return addr, nil
}

// JournalConfig controls the local message journal.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig holds log output preferences.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// TUIConfig holds interactive inbox preferences.
type TUIConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Account  AccountConfig `mapstructure:"account" yaml:"account"`
	Contacts []Contact     `mapstructure:"contacts" yaml:"contacts"`
	Journal  JournalConfig `mapstructure:"journal" yaml:"journal"`
	Logging  LoggingConfig `mapstructure:"logging" yaml:"logging"`
	TUI      TUIConfig     `mapstructure:"tui" yaml:"tui"`
}

// ErrContactNotFound is returned when no contact has the requested name.
var ErrContactNotFound = errors.New("contact not found")

// Contact looks up a contact by case-insensitive name.
func (c *AppConfig) Contact(name string) (Contact, error) {
	for _, ct := range c.Contacts {
		if strings.EqualFold(ct.Name, strings.TrimSpace(name)) {
			return ct, nil
		}
	}
	return Contact{}, fmt.Errorf("%w: %s", ErrContactNotFound, name)
}

// SortedContacts returns the contacts ordered by name.
func (c *AppConfig) SortedContacts() []Contact {
	out := append([]Contact(nil), c.Contacts...)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// configDir returns ~/.config/smsgw, or the working directory when the home
// directory cannot be determined.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "smsgw")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/smsgw/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultJournalPath returns the default SQLite journal location.
func DefaultJournalPath() string {
	return filepath.Join(configDir(), "journal.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Account: AccountConfig{
			SMTPHost:   "smtp.gmail.com",
			SMTPPort:   587,
			IMAPHost:   "imap.gmail.com",
			IMAPPort:   993,
			Inbox:      "INBOX",
			SentFolder: "[Gmail]/Sent Mail",
			Subject:    "I am a bot. Beep Boop.",
		},
		Contacts: []Contact{},
		Journal: JournalConfig{
			Enabled: true,
			Path:    DefaultJournalPath(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		TUI: TUIConfig{
			PollIntervalSec: 60,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("account.smtp_host", def.Account.SMTPHost)
	v.SetDefault("account.smtp_port", def.Account.SMTPPort)
	v.SetDefault("account.imap_host", def.Account.IMAPHost)
	v.SetDefault("account.imap_port", def.Account.IMAPPort)
	v.SetDefault("account.inbox", def.Account.Inbox)
	v.SetDefault("account.sent_folder", def.Account.SentFolder)
	v.SetDefault("account.subject", def.Account.Subject)
	v.SetDefault("journal.enabled", def.Journal.Enabled)
	v.SetDefault("journal.path", def.Journal.Path)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("tui.poll_interval_sec", def.TUI.PollIntervalSec)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return def, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for i, ct := range cfg.Contacts {
		if _, err := ct.Address(); err != nil {
			return nil, fmt.Errorf("parsing config %s: contacts[%d]: %w", path, i, err)
		}
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("account", cfg.Account)
	v.Set("contacts", cfg.Contacts)
	v.Set("journal", cfg.Journal)
	v.Set("logging", cfg.Logging)
	v.Set("tui", cfg.TUI)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
