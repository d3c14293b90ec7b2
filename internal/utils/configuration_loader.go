package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configurationReadErrorTemplateConstant      = "failed to read configuration: %w"
	configurationUnmarshalErrorTemplateConstant = "failed to parse configuration: %w"
	configurationDirectoryErrorTemplateConstant = "configuration path %s is a directory"
	configurationNotFoundMessageConstant        = "configuration file not found"
)

// ErrConfigurationFileNotFound indicates that an optional configuration file does not exist.
var ErrConfigurationFileNotFound = errors.New(configurationNotFoundMessageConstant)

// ConfigurationLoader wraps Viper to decode individual configuration sources into structs.
type ConfigurationLoader struct {
	configurationType string
	decodeHooks       []mapstructure.DecodeHookFunc
}

// LoadedConfiguration surfaces metadata about a decoded configuration source.
type LoadedConfiguration struct {
	ConfigFileUsed string
	Keys           []string
}

// NewConfigurationLoader creates a loader for the supplied configuration type. Additional decode hooks run before the defaults.
func NewConfigurationLoader(configurationType string, decodeHooks ...mapstructure.DecodeHookFunc) *ConfigurationLoader {
	duplicatedHooks := make([]mapstructure.DecodeHookFunc, len(decodeHooks))
	copy(duplicatedHooks, decodeHooks)

	return &ConfigurationLoader{
		configurationType: configurationType,
		decodeHooks:       duplicatedHooks,
	}
}

// LoadFile decodes the configuration file at configurationFilePath into targetConfiguration.
// A missing file yields ErrConfigurationFileNotFound and leaves the target untouched.
func (loader *ConfigurationLoader) LoadFile(configurationFilePath string, targetConfiguration any) (LoadedConfiguration, error) {
	fileInfo, statError := os.Stat(configurationFilePath)
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return LoadedConfiguration{}, ErrConfigurationFileNotFound
		}
		return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, statError)
	}
	if fileInfo.IsDir() {
		return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, fmt.Errorf(configurationDirectoryErrorTemplateConstant, configurationFilePath))
	}

	viperInstance := viper.New()
	viperInstance.SetConfigType(loader.configurationType)
	viperInstance.SetConfigFile(configurationFilePath)

	if readError := viperInstance.ReadInConfig(); readError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
	}

	return loader.decode(viperInstance, viperInstance.ConfigFileUsed(), targetConfiguration)
}

// LoadEmbedded decodes configuration bytes shipped with the binary into targetConfiguration.
func (loader *ConfigurationLoader) LoadEmbedded(configurationData []byte, targetConfiguration any) (LoadedConfiguration, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigType(loader.configurationType)

	if readError := viperInstance.ReadConfig(bytes.NewReader(configurationData)); readError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationReadErrorTemplateConstant, readError)
	}

	return loader.decode(viperInstance, "", targetConfiguration)
}

func (loader *ConfigurationLoader) decode(viperInstance *viper.Viper, configFileUsed string, targetConfiguration any) (LoadedConfiguration, error) {
	hooks := append([]mapstructure.DecodeHookFunc{}, loader.decodeHooks...)
	hooks = append(hooks,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	unmarshalError := viperInstance.Unmarshal(targetConfiguration, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(hooks...)))
	if unmarshalError != nil {
		return LoadedConfiguration{}, fmt.Errorf(configurationUnmarshalErrorTemplateConstant, unmarshalError)
	}

	return LoadedConfiguration{ConfigFileUsed: configFileUsed, Keys: viperInstance.AllKeys()}, nil
}

// NumericSecondsToDurationHookFunc decodes bare numbers into durations measured in seconds.
func NumericSecondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(sourceType reflect.Type, targetType reflect.Type, data any) (any, error) {
		if targetType != durationType {
			return data, nil
		}
		switch sourceType.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(reflect.ValueOf(data).Uint()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
		case reflect.String:
			trimmed := strings.TrimSpace(data.(string))
			if isDigitsOnly(trimmed) {
				return trimmed + "s", nil
			}
			return data, nil
		default:
			return data, nil
		}
	}
}

func isDigitsOnly(value string) bool {
	if len(value) == 0 {
		return false
	}
	for _, character := range value {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}
