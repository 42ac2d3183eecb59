package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "wagated":
		return wagatedTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const wagatedTemplate = `listen_addr = ":3001"
engine = "loopback"
sessions_dir = "sessions"
media_dir = "media"
cors_origins = ["*"]

# Optional shared bearer token for the command endpoints. Empty disables
# authentication.
auth_token = ""

# 0 keeps reconnecting forever; a positive value errors the session
# once that many consecutive attempts fail.
reconnect_max_attempts = 0
backoff_initial_ms = 500
backoff_multiplier = 2.0
backoff_max_ms = 30000
backoff_jitter = true
`
