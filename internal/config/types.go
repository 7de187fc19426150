package config

// Config represents the complete gpubridge configuration
type Config struct {
	Host        HostConfig        `yaml:"host"`
	Containers  ContainersConfig  `yaml:"containers"`
	Passthrough PassthroughConfig `yaml:"passthrough"`
	Verify      VerifyConfig      `yaml:"verify"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// HostConfig describes where GPU artifacts live on the host
type HostConfig struct {
	DeviceDir  string `yaml:"device_dir"`
	LibraryDir string `yaml:"library_dir"`
}

// ContainersConfig describes where container configuration documents live
type ContainersConfig struct {
	ConfDir   string `yaml:"conf_dir"`
	BackupDir string `yaml:"backup_dir"`
}

// PassthroughConfig describes what gets bound into a container
type PassthroughConfig struct {
	BridgeBinary string   `yaml:"bridge_binary"`
	Libraries    []string `yaml:"libraries"`
}

// VerifyConfig describes the functional-probe and remediation behavior
type VerifyConfig struct {
	ProbeTimeoutSeconds int    `yaml:"probe_timeout_seconds"`
	DeviceWaitSeconds   int    `yaml:"device_wait_seconds"`
	RemediationPackage  string `yaml:"remediation_package"`
}

// LoggingConfig represents logging configuration. File is optional; when
// empty, events go to stderr.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}
