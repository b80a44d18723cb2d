// Package host implements the host side of the handshake: building the
// program bundle, spawning the child with the fd-prefixed argument layout
// it expects, and driving it over the framed transport. Config follows the
// teacher's envOr/intOr/durationOr environment-variable idiom rather than
// a flags or viper layer.
package host

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the launcher's tunables, sourced from the environment the
// same way cmd/server/config.go does.
type Config struct {
	ChildBinary   string
	WorkDir       string
	StartTimeout  time.Duration
	CallTimeout   time.Duration
	VMKernelPath  string
	VMRootfsPath  string
	VMSSHKeyPath  string
	VMVsockCID    uint32
	VMVsockPort   uint32
}

// LoadConfig reads JUMPGO_* environment variables, falling back to
// reasonable local defaults.
func LoadConfig() Config {
	return Config{
		ChildBinary:  envOr("JUMPGO_CHILD_BIN", "jumpgo-child"),
		WorkDir:      envOr("JUMPGO_WORK_DIR", ".jumpgo-work"),
		StartTimeout: durationOr("JUMPGO_START_TIMEOUT", 10*time.Second),
		CallTimeout:  durationOr("JUMPGO_CALL_TIMEOUT", 20*time.Second),
		VMKernelPath: envOr("JUMPGO_VM_KERNEL_PATH", "./guest-artifacts/vmlinux"),
		VMRootfsPath: envOr("JUMPGO_VM_ROOTFS_PATH", "./guest-artifacts/rootfs.ext4"),
		VMSSHKeyPath: envOr("JUMPGO_VM_SSH_KEY_PATH", "./guest-artifacts/child_key"),
		VMVsockCID:   uint32(intOr("JUMPGO_VM_VSOCK_CID", 3)),
		VMVsockPort:  uint32(intOr("JUMPGO_VM_VSOCK_PORT", 7171)),
	}
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func intOr(name string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func durationOr(name string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}
