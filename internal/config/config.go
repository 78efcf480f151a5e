// ABOUTME: Viper-backed settings for the chanmix command
// ABOUTME: Merges defaults, chanmix.toml, CHANMIX_ env vars and bound flags
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/chanmix/internal/version"
	"github.com/Resonate-Protocol/chanmix/pkg/audio"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Setting keys
const (
	Frequency          = "frequency"
	Format             = "format"
	Channels           = "channels"
	ChunkSize          = "chunk_size"
	MixChannels        = "mix_channels"
	Workers            = "workers"
	ReserveLastChannel = "reserve_last_channel"
	Headless           = "headless"

	ServerPort = "server.port"
	ServerName = "server.name"
	ServerMDNS = "server.mdns"
	ServerTUI  = "server.tui"

	LogLevel = "log.level"
	LogJSON  = "log.json"
	LogFile  = "log.file"
)

// FileName is the config file looked up in the search paths, without extension
const FileName = version.Product

// EnvKeyReplacer maps nested keys to environment names
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Default holds the value of every known key
var Default = map[string]any{
	Frequency:          audio.DefaultFrequency,
	Format:             "s16",
	Channels:           audio.DefaultChannels,
	ChunkSize:          audio.DefaultChunkSize,
	MixChannels:        32,
	Workers:            1,
	ReserveLastChannel: false,
	Headless:           false,

	ServerPort: 8937,
	ServerName: "",
	ServerMDNS: true,
	ServerTUI:  false,

	LogLevel: "info",
	LogJSON:  false,
	LogFile:  "",
}

var formats = map[string]uint16{
	"u8":  audio.FormatU8,
	"s16": audio.FormatS16LE,
	"s32": audio.FormatS32LE,
	"f32": audio.FormatF32LE,
}

// Setup prepares viper with defaults, environment binding and the optional
// config file found in paths. A missing file is not an error.
func Setup(fs afero.Fs, paths ...string) error {
	viper.SetConfigName(FileName)
	viper.SetConfigType("toml")
	viper.SetFs(fs)
	for _, p := range paths {
		viper.AddConfigPath(p)
	}

	viper.SetEnvPrefix(version.Product)
	viper.SetEnvKeyReplacer(EnvKeyReplacer)
	viper.AutomaticEnv()

	for key, value := range Default {
		viper.SetDefault(key, value)
		lo.Must0(viper.BindEnv(key))
	}
	viper.SetTypeByDefaultValue(true)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Config is the resolved set of settings
type Config struct {
	Frequency          int
	Format             uint16
	Channels           int
	ChunkSize          int
	MixChannels        int
	Workers            int
	ReserveLastChannel bool
	Headless           bool

	Port int
	Name string
	MDNS bool
	TUI  bool

	LogLevel string
	LogJSON  bool
	LogFile  string
}

// Load reads the current viper state. Unknown format names are rejected.
func Load() (Config, error) {
	format, err := ParseFormat(viper.GetString(Format))
	if err != nil {
		return Config{}, err
	}

	return Config{
		Frequency:          viper.GetInt(Frequency),
		Format:             format,
		Channels:           viper.GetInt(Channels),
		ChunkSize:          viper.GetInt(ChunkSize),
		MixChannels:        viper.GetInt(MixChannels),
		Workers:            viper.GetInt(Workers),
		ReserveLastChannel: viper.GetBool(ReserveLastChannel),
		Headless:           viper.GetBool(Headless),

		Port: viper.GetInt(ServerPort),
		Name: viper.GetString(ServerName),
		MDNS: viper.GetBool(ServerMDNS),
		TUI:  viper.GetBool(ServerTUI),

		LogLevel: viper.GetString(LogLevel),
		LogJSON:  viper.GetBool(LogJSON),
		LogFile:  viper.GetString(LogFile),
	}, nil
}

// ParseFormat maps a sample format name to its format word
func ParseFormat(name string) (uint16, error) {
	format, ok := formats[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown sample format %q (want one of %s)", name,
			strings.Join(FormatNames(), ", "))
	}
	return format, nil
}

// FormatNames lists the accepted format names
func FormatNames() []string {
	return []string{"u8", "s16", "s32", "f32"}
}
