package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/caffeineduck/scriptexec/dispatch"
	"github.com/caffeineduck/scriptexec/logger"
	"github.com/joho/godotenv"
)

// config is read once at startup from the environment, after the optional
// env file has been loaded into it.
type config struct {
	executePath     string
	paramsPath      string
	messages        dispatch.Messages
	functionMessage string
	moduleMessage   string
	log             logger.Config
}

// loadConfig loads envFile, if it exists, without overriding variables that
// are already set.
func loadConfig(envFile string) (config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config{}, err
		}
	}

	return config{
		executePath: os.Getenv("EXECUTE"),
		paramsPath:  os.Getenv("PARAMS"),
		messages: dispatch.Messages{
			MissingInput:   os.Getenv("MISSING_INPUT"),
			ResultNotFound: os.Getenv("RESULT_NOT_FOUND"),
			ScriptNotFound: os.Getenv("SCRIPT_NOT_FOUND"),
			ParamsNotFound: os.Getenv("PARAMS_NOT_FOUND"),
		},
		functionMessage: os.Getenv("DANGEROUS_FUNCTION"),
		moduleMessage:   os.Getenv("DANGEROUS_MODULE"),
		log: logger.Config{
			Level:  os.Getenv("LOG_LEVEL"),
			Format: os.Getenv("LOG_FORMAT"),
		},
	}, nil
}
