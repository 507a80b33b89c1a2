// pkg/configloader/configloader.go
package configloader

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Options описывает источник конфигурации.
type Options struct {
	Path      string                 // YAML-файл (может быть пустым)
	EnvPrefix string                 // префикс ENV, например "QUOTE_RELAY"
	EnvFile   string                 // .env файл; отсутствие файла не ошибка
	Defaults  map[string]interface{} // ключи в нотации "feed.ws_url"
}

// Load заполняет cfgPtr, затем decode и Validate.
// Приоритет по возрастанию: defaults, YAML-файл, ENV (.env лишь дополняет ENV
// и не перетирает уже заданные переменные).
func Load(opts Options, cfgPtr interface{}) error {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("configloader: load env file %q: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()

	// Шаг 1: defaults
	for key, val := range opts.Defaults {
		v.SetDefault(key, val)
	}

	// Шаг 2: ENV, перекрывает и defaults, и файл
	v.SetEnvPrefix(opts.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Шаг 3: read file (if provided), перекрывает только defaults
	if opts.Path != "" {
		v.SetConfigFile(opts.Path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("configloader: read config %q: %w", opts.Path, err)
		}
	}

	// Шаг 4: decode
	if err := decode(v.AllSettings(), cfgPtr); err != nil {
		return fmt.Errorf("configloader: decode failed: %w", err)
	}

	// Шаг 5: validate if possible
	if vv, ok := cfgPtr.(interface{ Validate() error }); ok {
		if err := vv.Validate(); err != nil {
			return fmt.Errorf("configloader: validation failed: %w", err)
		}
	}
	return nil
}
