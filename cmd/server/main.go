package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/watchroom/server/internal/app"
	"github.com/watchroom/server/internal/domain"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	defaultVideoId = configVar[string]{
		envKey:       "SERVER_DEFAULT_VIDEO_ID",
		flagKey:      "default-video-id",
		defaultValue: domain.DefaultVideoId,
	}
	usernameMaxLength = configVar[int]{
		envKey:       "SERVER_USERNAME_MAX_LENGTH",
		flagKey:      "username-max-length",
		defaultValue: 20,
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(defaultVideoId.flagKey, defaultVideoId.defaultValue, "Video id new rooms start with")
	pflag.Int(usernameMaxLength.flagKey, usernameMaxLength.defaultValue, "Maximum username length in runes")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(defaultVideoId.flagKey, defaultVideoId.envKey)
	viper.BindEnv(usernameMaxLength.flagKey, usernameMaxLength.envKey)

	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(defaultVideoId.flagKey, defaultVideoId.defaultValue)
	viper.SetDefault(usernameMaxLength.flagKey, usernameMaxLength.defaultValue)

	config := &app.AppConfig{
		Host:              viper.GetString(host.flagKey),
		Port:              viper.GetInt(port.flagKey),
		LogLevel:          viper.GetString(logLevel.flagKey),
		DefaultVideoId:    viper.GetString(defaultVideoId.flagKey),
		UsernameMaxLength: viper.GetInt(usernameMaxLength.flagKey),
	}

	return config
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
