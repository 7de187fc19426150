package config

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Host: HostConfig{
			DeviceDir:  "/dev",
			LibraryDir: "/usr/lib/x86_64-linux-gnu",
		},
		Containers: ContainersConfig{
			ConfDir:   "/etc/pve/lxc",
			BackupDir: "/var/lib/gpubridge/backups",
		},
		Passthrough: PassthroughConfig{
			BridgeBinary: "/usr/bin/nvidia-smi",
			Libraries: []string{
				"libnvidia-ml.so.1",
				"libcuda.so.1",
				"libnvidia-ptxjitcompiler.so.1",
				"libnvidia-encode.so.1",
				"libnvidia-decode.so.1",
			},
		},
		Verify: VerifyConfig{
			ProbeTimeoutSeconds: 10,
			DeviceWaitSeconds:   10,
			RemediationPackage:  "libnvidia-compute-575",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
