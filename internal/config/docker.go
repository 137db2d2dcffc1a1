package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// DockerDataPath is the volume the image mounts for the database and audit log
	DockerDataPath = "/data"
	// DockerSecretsPath is where container secrets are mounted
	DockerSecretsPath = "/run/secrets"
)

// IsRunningInDocker checks if the application is running inside a Docker container
func IsRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	if cgroup, err := os.ReadFile("/proc/1/cgroup"); err == nil { // #nosec G304 - well-known proc path
		if strings.Contains(string(cgroup), "docker") {
			return true
		}
	}

	if _, err := os.Stat(DockerSecretsPath); err == nil {
		return true
	}

	return false
}

// ApplyDockerDefaults adjusts a config for running in a container: no
// interactive prompts, and data kept on the mounted volume when present.
func (c *Config) ApplyDockerDefaults() {
	c.applyContainerDefaults(DockerDataPath)
}

func (c *Config) applyContainerDefaults(dataDir string) {
	c.Security.BatchMode = true
	c.Security.AutoApprove = true

	if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
		return
	}
	if c.Storage.Database == "" || strings.HasPrefix(c.Storage.Database, getConfigDir()) {
		c.Storage.Database = filepath.Join(dataDir, "content.db")
	}
	if c.Logging.File == "" || strings.HasPrefix(c.Logging.File, getConfigDir()) {
		c.Logging.File = filepath.Join(dataDir, "audit.log")
	}
}
