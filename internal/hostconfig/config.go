// Package hostconfig loads the host-supplied configuration front-ends
// (kakectl, the HTTP demo server) need to construct a pkg/kake.Engine. The
// engine itself never reads environment state directly; only these
// external collaborators do, keeping the core embeddable and testable in
// isolation the way the teacher's core/dag packages are.
package hostconfig

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"kake/internal/kakepath"
)

// Config is the full set of host-tunable knobs a front-end needs to
// construct an engine.
type Config struct {
	ProjectRoot    string
	GenfilesPrefix string
	CacheWorkers   int
	SidecarSuffix  string
}

const (
	envProjectRoot    = "KAKE_PROJECT_ROOT"
	envGenfilesPrefix = "KAKE_GENFILES_PREFIX"
	envCacheWorkers   = "KAKE_CACHE_WORKERS"
	envSidecarSuffix  = "KAKE_SIDECAR_SUFFIX"
)

// Default returns the built-in defaults, used when neither a .env file nor
// an explicit override supplies a value.
func Default() Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Config{
		ProjectRoot:    cwd,
		GenfilesPrefix: kakepath.DefaultGenfilesPrefix,
		CacheWorkers:   0, // 0 means "let internal/build.New pick runtime.NumCPU()"
		SidecarSuffix:  ".__meta__",
	}
}

// Load reads envFile (if it exists; a missing file is not an error, per
// godotenv's own convention of layering .env over an already-populated
// environment) and merges it into the process environment, then builds a
// Config from Default() overridden by whatever KAKE_* variables ended up
// set. envFile may be empty to skip loading a file entirely.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, err
			}
		}
	}

	cfg := Default()
	if v := os.Getenv(envProjectRoot); v != "" {
		cfg.ProjectRoot = v
	}
	if v := os.Getenv(envGenfilesPrefix); v != "" {
		cfg.GenfilesPrefix = v
	}
	if v := os.Getenv(envCacheWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheWorkers = n
		}
	}
	if v := os.Getenv(envSidecarSuffix); v != "" {
		cfg.SidecarSuffix = v
	}
	return cfg, nil
}
