package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading from environment variables and YAML,
// then enforces `validate` tags.
// Priority: Env Vars > YAML file > `default` tags.
type Loader[T any] struct {
	envPrefix  string
	configPath string
	validate   *validator.Validate
}

func NewLoader[T any](envPrefix, configPath string) *Loader[T] {
	return &Loader[T]{
		envPrefix:  envPrefix,
		configPath: configPath,
		validate:   validator.New(),
	}
}

// Load reads the configuration. Overrides run after all sources and before
// validation, e.g. to apply CLI flags.
func (l *Loader[T]) Load(overrides ...func(*T)) (*T, error) {
	// 1. Defaults + Environment Variables
	var fromEnv T
	if err := envconfig.Process(l.envPrefix, &fromEnv); err != nil {
		return nil, fmt.Errorf("config: failed to process env vars: %w", err)
	}
	cfg := fromEnv

	// 2. YAML, if a path was given. A missing file is an error only when named explicitly.
	if l.configPath != "" {
		file, err := os.Open(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("config: failed to open config file: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: failed to decode config file: %w", err)
		}

		// envconfig fills unset variables with defaults, so only the
		// variables actually present may win over the file.
		overlaySetEnv(reflect.ValueOf(&cfg).Elem(), reflect.ValueOf(&fromEnv).Elem(), l.envPrefix)
	}

	for _, o := range overrides {
		if o != nil {
			o(&cfg)
		}
	}

	// 3. Validate Constraints (required, min, max...)
	if err := l.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// overlaySetEnv copies from src into dst every field whose environment
// variable is set, using the same key rules as envconfig.
func overlaySetEnv(dst, src reflect.Value, prefix string) {
	if dst.Kind() != reflect.Struct {
		return
	}
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Tag.Get("ignored") == "true" {
			continue
		}

		name := field.Tag.Get("envconfig")
		if name == "" {
			name = field.Name
		}
		key := name
		if prefix != "" {
			key = prefix + "_" + name
		}
		key = strings.ToUpper(key)

		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			nested := key
			if field.Anonymous && field.Tag.Get("envconfig") == "" {
				nested = prefix
			}
			overlaySetEnv(dst.Field(i), src.Field(i), nested)
			continue
		}

		_, ok := os.LookupEnv(key)
		if !ok && field.Tag.Get("envconfig") != "" {
			_, ok = os.LookupEnv(strings.ToUpper(name))
		}
		if ok {
			dst.Field(i).Set(src.Field(i))
		}
	}
}
