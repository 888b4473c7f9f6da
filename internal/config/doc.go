// Package config loads the validator service configuration and watches the
// rules file for changes.
//
// # Configuration Sources
//
// Configuration is resolved in three layers, later layers winning:
//
//	1. Built-in defaults (Default)
//	2. A YAML file named by TRINITY_CONFIG, or config/trinity.yaml when present
//	3. Environment variables prefixed with TRINITY_
//
// # Environment Variables
//
// Variables follow the struct layout, upper-cased and joined with underscores:
//
//	TRINITY_SERVER_PORT=8080
//	TRINITY_LOGGING_LEVEL=debug
//	TRINITY_SECURITY_ALLOWED_ORIGINS=http://localhost:3000,https://trinity.example
//	TRINITY_UPLOAD_MAX_FILE_SIZE=52428800
//	TRINITY_RULES_FILE=/etc/trinity/rules.yaml
//
// # Rules Hot Reload
//
// RulesWatcher follows the rules file with fsnotify and hands every successfully
// parsed revision to a callback, typically validation.Dispatcher.SetRules. A
// revision that fails to parse is logged and the previous rules stay active.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
