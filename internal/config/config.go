package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jobchat/internal/logger"
)

// Config содержит настройки клиента.
// Приоритет: переменные окружения > YAML-файл > значения по умолчанию.
type Config struct {
	// Удалённый API
	APIBaseURL  string        `yaml:"api_base_url"`
	WSURL       string        `yaml:"ws_url"`
	HTTPTimeout time.Duration `yaml:"-"`

	// AuthToken — bearer-токен; только из окружения, в YAML не хранится.
	AuthToken string `yaml:"-"`

	// CachePath — путь к файлу SQLite-кеша. Пустой — кеш только в памяти.
	CachePath string `yaml:"cache_path"`

	// Списки
	PageSize int `yaml:"page_size"`

	// Логирование
	LogLevel string `yaml:"log_level"`
}

// yamlConfig — промежуточная структура для парсинга YAML.
type yamlConfig struct {
	APIBaseURL  string `yaml:"api_base_url"`
	WSURL       string `yaml:"ws_url"`
	HTTPTimeout int    `yaml:"http_timeout"`
	CachePath   string `yaml:"cache_path"`
	PageSize    int    `yaml:"page_size"`
	LogLevel    string `yaml:"log_level"`
}

// Load загружает конфигурацию.
// Сначала подгружается .env (вне production), затем YAML и env (env имеет приоритет).
func Load() *Config {
	if os.Getenv("APP_ENV") != "production" {
		// godotenv не трогает уже выставленные переменные.
		_ = godotenv.Load()
	}

	// Значения по умолчанию
	yc := yamlConfig{
		APIBaseURL:  "http://localhost:8080/api",
		WSURL:       "ws://localhost:8080/ws",
		HTTPTimeout: 15,
		PageSize:    20,
		LogLevel:    "info",
	}

	// Загрузка YAML: CONFIG_PATH → config/client.yaml
	paths := []string{os.Getenv("CONFIG_PATH"), "config/client.yaml"}
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &yc); err != nil {
			logger.Errorf("config: ошибка парсинга %s: %v (используются значения по умолчанию)", path, err)
		} else {
			logger.Infof("config: загружен %s", path)
		}
		break
	}

	cfg := &Config{
		APIBaseURL:  envStr("API_BASE_URL", yc.APIBaseURL),
		WSURL:       envStr("WS_URL", yc.WSURL),
		HTTPTimeout: time.Duration(envInt("HTTP_TIMEOUT", yc.HTTPTimeout)) * time.Second,
		AuthToken:   os.Getenv("AUTH_TOKEN"),
		CachePath:   envStr("CACHE_PATH", yc.CachePath),
		PageSize:    envInt("PAGE_SIZE", yc.PageSize),
		LogLevel:    envStr("LOG_LEVEL", yc.LogLevel),
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	return cfg
}

// envStr возвращает значение переменной окружения или fallback.
func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt возвращает числовое значение переменной окружения или fallback.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
