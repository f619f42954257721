package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host     string `env:"HOST,required=true"`
	Port     int    `env:"PORT,required=true"`
	LogLevel string `env:"LOG_LEVEL,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	SendBufferSize    int           `env:"SEND_BUFFER_SIZE,required=true"`
	MaxContentLength  int           `env:"MAX_CONTENT_LENGTH,required=true"`
	HistoryPageSize   *int          `env:"HISTORY_PAGE_SIZE"`
	TypingQuietPeriod time.Duration `env:"TYPING_QUIET_PERIOD,required=true"`
	CharReplacement   string        `env:"CHARACTER_REPLACEMENT,required=true"`

	MetricInterval  time.Duration `env:"METRIC_INTERVAL,required=true"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,required=true"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,required=true"`

	DebugPort int `env:"DEBUG_PORT"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
