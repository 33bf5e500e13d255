// Package config는 viper 기반의 공통 설정 로더를 제공합니다.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 인터페이스는 설정 값에 액세스하기 위한 메서드를 정의합니다.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetStringMap(key string) map[string]interface{}
	IsSet(key string) bool
	// Unmarshal은 전체 설정을 mapstructure 태그가 붙은 구조체로 디코딩합니다.
	Unmarshal(out interface{}) error
	// ConfigFileUsed는 실제로 읽은 설정 파일 경로를 반환합니다. 파일 없이 로드된 경우 빈 문자열입니다.
	ConfigFileUsed() string
}

type viperConfig struct {
	v *viper.Viper
}

func (c *viperConfig) GetString(key string) string { return c.v.GetString(key) }

func (c *viperConfig) GetInt(key string) int { return c.v.GetInt(key) }

func (c *viperConfig) GetBool(key string) bool { return c.v.GetBool(key) }

func (c *viperConfig) GetStringMap(key string) map[string]interface{} {
	return c.v.GetStringMap(key)
}

func (c *viperConfig) IsSet(key string) bool { return c.v.IsSet(key) }

func (c *viperConfig) Unmarshal(out interface{}) error {
	if err := c.v.Unmarshal(out); err != nil {
		return fmt.Errorf("설정 디코딩 실패: %w", err)
	}
	return nil
}

func (c *viperConfig) ConfigFileUsed() string { return c.v.ConfigFileUsed() }

// 설정 디렉토리 경로
const configDir = "configs"

type options struct {
	envPrefix   string
	configFile  string
	defaults    map[string]interface{}
	requireFile bool
}

// Option은 Load 동작을 조정합니다.
type Option func(*options)

// WithEnvPrefix는 환경 변수 접두사를 지정합니다. 기본값은 서비스 이름의 대문자입니다.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) { o.envPrefix = prefix }
}

// WithConfigFile은 탐색 대신 특정 설정 파일을 사용합니다.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configFile = path }
}

// WithDefaults는 키별 기본값을 등록합니다.
// 환경 변수만으로 설정을 주입하려면 모든 키가 기본값으로 등록되어 있어야 합니다.
func WithDefaults(defaults map[string]interface{}) Option {
	return func(o *options) { o.defaults = defaults }
}

// RequireFile은 설정 파일이 없을 때 에러를 반환하도록 합니다.
func RequireFile() Option {
	return func(o *options) { o.requireFile = true }
}

// Load는 지정된 서비스 이름에 해당하는 설정을 로드합니다.
// 탐색 순서: CONFIG_PATH(파일 또는 디렉토리) → configs/{APP_ENV}/{service}.yaml → configs/example/{service}.yaml.
// 파일이 없으면 기본값과 환경 변수만으로 구성됩니다.
func Load(serviceName string, opts ...Option) (Config, error) {
	o := &options{envPrefix: strings.ToUpper(serviceName)}
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range o.defaults {
		v.SetDefault(key, value)
	}

	// 환경 변수 바인딩 설정
	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, serviceName, o.configFile); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("설정 파일 로드 실패: %w", err)
		}
		if o.requireFile {
			return nil, fmt.Errorf("설정 파일을 찾을 수 없음: %w", err)
		}
	}

	return &viperConfig{v: v}, nil
}

func readConfigFile(v *viper.Viper, serviceName, explicit string) error {
	if explicit == "" {
		explicit = os.Getenv("CONFIG_PATH")
	}

	if explicit != "" {
		info, err := os.Stat(explicit)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			v.SetConfigFile(explicit)
			return v.ReadInConfig()
		}
		v.AddConfigPath(explicit)
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	v.SetConfigName(serviceName)
	v.AddConfigPath(filepath.Join(configDir, env))
	v.AddConfigPath(configDir)
	v.AddConfigPath(filepath.Join(configDir, "example"))

	return v.ReadInConfig()
}
