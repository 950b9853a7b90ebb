package config

import "errors"

var (
	errConfigFileNotFound = errors.New("config file not found")
	errConfigFileRead     = errors.New("cannot read config file")
	errConfigInvalid      = errors.New("invalid config file")
	errPrefixEmpty        = errors.New("prefix cannot be empty")
	errMaxDataItemsZero   = errors.New("max_data_items cannot be zero")
)
