package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/okibee/mangalens/internal/logger"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR}, ${VAR:-default}, ${VAR:?error} and $VAR.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?(:\?([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Load reads a YAML config file, expands environment references, and
// overlays it on the defaults. Files named in .env next to the config file
// (and in the working directory) are loaded into the environment first so
// keys can live outside the config.
func Load(path string) (Config, error) {
	loadEnvFiles(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	checkFilePermissions(path)

	return Parse(data)
}

// Parse expands env references in data and unmarshals it over the defaults.
func Parse(data []byte) (Config, error) {
	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles loads .env files without clobbering variables already set.
func loadEnvFiles(dirs ...string) {
	seen := map[string]bool{}
	for _, dir := range append(dirs, ".") {
		path := filepath.Join(dir, ".env")
		if seen[path] {
			continue
		}
		seen[path] = true
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Warn("could not load env file", "path", path, "error", err)
		}
	}
}

// expandEnvVars substitutes environment references in the raw config text.
// ${VAR:?message} fails loading when VAR is unset, which is how required
// API keys are expressed in config files.
func expandEnvVars(s string) (string, error) {
	var expandErr error
	out := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[6]
		}
		if val, ok := os.LookupEnv(name); ok && val != "" {
			return val
		}
		if groups[2] != "" {
			return groups[3]
		}
		if groups[4] != "" {
			msg := groups[5]
			if msg == "" {
				msg = "required variable is not set"
			}
			if expandErr == nil {
				expandErr = fmt.Errorf("config references $%s: %s", name, msg)
			}
			return ""
		}
		return ""
	})
	return out, expandErr
}

// checkFilePermissions warns when a config file that may hold keys is
// readable by other users. Informational only.
func checkFilePermissions(path string) {
	if runtime.GOOS == "windows" {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.Mode().Perm()&0o044 != 0 && containsSecrets(path) {
		logger.Warn("config file with API keys is readable by other users",
			"path", path, "mode", fmt.Sprintf("%04o", info.Mode().Perm()))
	}
}

// containsSecrets reports whether the file appears to carry literal keys
// rather than ${VAR} references.
func containsSecrets(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "api_key:") && !strings.Contains(trimmed, "${") {
			val := strings.TrimSpace(strings.TrimPrefix(trimmed, "api_key:"))
			if val != "" && val != `""` {
				return true
			}
		}
	}
	return false
}
