package cmd

import (
	"fmt"
	"strings"

	"github.com/turbocompute/gpulogs/internal/client/output"
	"github.com/turbocompute/gpulogs/internal/config"
	"github.com/turbocompute/gpulogs/internal/constants"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configSave      bool
	configShowToken bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: fmt.Sprintf(`Show the configuration after defaults, ~/%s/%s and GPULOGS_* environment
variables are applied. With --save the effective configuration is written back
to the configuration file.`, constants.ConfigDirName, constants.ConfigFileName),
	Args: cobra.NoArgs,
	RunE: configRun,
}

func init() {
	configCmd.Flags().BoolVar(&configSave, "save", false, "Write the effective configuration to the configuration file")
	configCmd.Flags().BoolVar(&configShowToken, "show-token", false, "Print the token instead of masking it")
	rootCmd.AddCommand(configCmd)
}

func configRun(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfigFromContext(cmd)
	if err != nil {
		output.Errorf("failed to load configuration: %v", err)
		return err
	}
	printHeader(cmd)

	service := NewConfigService(NewOutputWrapper(), NewConfigSaver(), NewConfigPathGetter())
	if err = service.Show(cfg, configShowToken); err != nil {
		output.Errorf(err.Error())
		return err
	}
	if !configSave {
		return nil
	}
	if err = service.Save(cfg); err != nil {
		output.Errorf(err.Error())
		return err
	}
	return nil
}

// ConfigSaver defines an interface for saving configuration
type ConfigSaver interface {
	Save(*config.Config) error
}

// ConfigPathGetter defines an interface for retrieving the configuration path
type ConfigPathGetter interface {
	GetConfigPath() (string, error)
}

// ConfigSaverFunc adapts a function to the ConfigSaver interface
type ConfigSaverFunc func(*config.Config) error

// Save executes the underlying function to persist configuration
func (f ConfigSaverFunc) Save(cfg *config.Config) error {
	return f(cfg)
}

// ConfigPathGetterFunc adapts a function to the ConfigPathGetter interface
type ConfigPathGetterFunc func() (string, error)

// GetConfigPath executes the underlying function to retrieve the config path
func (f ConfigPathGetterFunc) GetConfigPath() (string, error) {
	return f()
}

// NewConfigSaver creates a ConfigSaver using the global config.Save function
func NewConfigSaver() ConfigSaver {
	return ConfigSaverFunc(config.Save)
}

// NewConfigPathGetter creates a ConfigPathGetter using the global config.GetConfigPath function
func NewConfigPathGetter() ConfigPathGetter {
	return ConfigPathGetterFunc(config.GetConfigPath)
}

// ConfigService shows and persists configuration
type ConfigService struct {
	output           OutputInterface
	configSaver      ConfigSaver
	configPathGetter ConfigPathGetter
}

// NewConfigService creates a new ConfigService with the provided dependencies
func NewConfigService(
	outputter OutputInterface,
	configSaver ConfigSaver,
	configPathGetter ConfigPathGetter,
) *ConfigService {
	return &ConfigService{
		output:           outputter,
		configSaver:      configSaver,
		configPathGetter: configPathGetter,
	}
}

// Show prints cfg as YAML. The token is masked unless showToken is set.
func (s *ConfigService) Show(cfg *config.Config, showToken bool) error {
	shown := *cfg
	if !showToken && shown.Token != "" {
		shown.Token = maskToken(shown.Token)
	}

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	if path, pathErr := s.configPathGetter.GetConfigPath(); pathErr == nil {
		s.output.KeyValue("Configuration file", path)
		s.output.Blank()
	}
	s.output.Println(strings.TrimRight(string(data), "\n"))
	return nil
}

// Save writes cfg to the configuration file.
func (s *ConfigService) Save(cfg *config.Config) error {
	if err := s.configSaver.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	if path, err := s.configPathGetter.GetConfigPath(); err == nil {
		s.output.Successf("Configuration saved to %s", s.output.Bold(path))
		return nil
	}
	s.output.Successf("Configuration saved")
	return nil
}

// maskToken keeps the last four characters of tokens longer than eight.
func maskToken(token string) string {
	const visible = 4
	if len(token) <= 2*visible {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-visible) + token[len(token)-visible:]
}
