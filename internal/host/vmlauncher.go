package host

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/mdlayher/vsock"
	"github.com/vishvananda/netlink"
	"golang.org/x/crypto/ssh"

	"jumpgo/internal/bundle"
	"jumpgo/internal/rpcserver"
	"jumpgo/internal/wire"
)

// VMLauncher boots the child inside an isolated microVM (any hypervisor
// that exposes an AF_VSOCK device to the guest) instead of as a bare local
// subprocess, speaking the same framed protocol over vsock instead of
// local pipes. Adapted directly from the teacher's dialAgent /
// waitForAgentReady / configureNetwork pattern (cmd/server/agent.go,
// cmd/agent/main.go), generalized from manta's bespoke agent RPC to this
// module's wire/rpcserver protocol.
//
// VMLauncher does not itself boot the hypervisor process; it assumes the
// guest is already running (started by whatever VMM the deployment uses)
// and handles only the vsock handshake; guest network configuration
// (ConfigureGuestNetwork) and the SSH debug-exec fallback (DebugExecSSH)
// are separate functions in this package, matching this spec's non-goal of
// owning host-side VM orchestration (left to the operator's own tooling).
type VMLauncher struct {
	Config Config

	// GuestNetwork holds a guest interface configuration for the caller.
	// Launch and WaitReady do not read it and apply no network settings;
	// ConfigureGuestNetwork applies such a configuration from inside the
	// guest.
	GuestNetwork *GuestNetworkConfig
}

// GuestNetworkConfig mirrors the teacher's agentrpc.NetRequest shape: a
// single interface/address/gateway/dns tuple applied to the guest.
type GuestNetworkConfig struct {
	Interface string
	Address   string
	Gateway   string
	DNS       string
}

// Launch dials the guest's vsock listener (CID/port from Config), expects
// the child to already be running inside the guest and listening, and
// wraps the resulting connection in the same wire.Queue/rpcserver.Server
// pair LocalLauncher produces. The bundle is delivered over the same
// vsock connection as a single newline-terminated JSON line (no length
// prefix) before the framed RPC protocol takes over, since there is no
// separate one-shot descriptor across a vsock boundary.
func (l VMLauncher) Launch(b bundle.Bundle, userArgv []string) (*ChildProcess, error) {
	conn, err := vsock.Dial(l.Config.VMVsockCID, l.Config.VMVsockPort, nil)
	if err != nil {
		return nil, fmt.Errorf("host: vmlauncher: dial vsock cid=%d port=%d: %w", l.Config.VMVsockCID, l.Config.VMVsockPort, err)
	}

	raw, err := MarshalBundle(b)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("host: vmlauncher: marshal bundle: %w", err)
	}
	raw = append(raw, '\n')
	if _, err := conn.Write(raw); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("host: vmlauncher: write bundle: %w", err)
	}

	q := wire.New(conn, conn, conn)
	srv := rpcserver.New(q)
	return &ChildProcess{Server: srv, status: nil}, nil
}

// WaitReady polls the guest's vsock listener until a dial succeeds or
// timeout elapses, the same bounded-retry shape as the teacher's
// waitForAgentReady. It sends no request over the connection, so it
// confirms only that the listener accepts connections.
func (l VMLauncher) WaitReady(timeout time.Duration) error {
	return waitStartTimeout(func() error {
		conn, err := vsock.Dial(l.Config.VMVsockCID, l.Config.VMVsockPort, nil)
		if err != nil {
			return err
		}
		defer conn.Close()
		return nil
	}, timeout)
}

// ConfigureGuestNetwork brings up the guest's interface and default route
// using vishvananda/netlink, adapted from cmd/agent/main.go's
// configureNetwork. This must run inside the guest (it manipulates the
// calling process's own network namespace), so it is exported for use by
// a guest-side init helper, not by the host process itself.
func ConfigureGuestNetwork(cfg GuestNetworkConfig) error {
	iface := strings.TrimSpace(cfg.Interface)
	if iface == "" {
		iface = "eth0"
	}
	addr := strings.TrimSpace(cfg.Address)
	gw := strings.TrimSpace(cfg.Gateway)
	if addr == "" || gw == "" {
		return fmt.Errorf("host: configure guest network: address and gateway are required")
	}
	gateway := net.ParseIP(gw)
	if gateway == nil {
		return fmt.Errorf("host: configure guest network: invalid gateway ip %q", gw)
	}

	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("host: configure guest network: lookup interface %q: %w", iface, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("host: configure guest network: set interface %q up: %w", iface, err)
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return fmt.Errorf("host: configure guest network: list addresses on %q: %w", iface, err)
	}
	for _, existing := range addrs {
		if err := netlink.AddrDel(link, &existing); err != nil {
			return fmt.Errorf("host: configure guest network: remove address %q on %q: %w", existing.String(), iface, err)
		}
	}
	parsedAddr, err := netlink.ParseAddr(addr)
	if err != nil {
		return fmt.Errorf("host: configure guest network: parse address %q: %w", addr, err)
	}
	if err := netlink.AddrAdd(link, parsedAddr); err != nil {
		return fmt.Errorf("host: configure guest network: assign address %q to %q: %w", addr, iface, err)
	}
	if err := netlink.RouteReplace(&netlink.Route{
		LinkIndex: link.Attrs().Index,
		Dst:       nil,
		Gw:        gateway,
	}); err != nil {
		return fmt.Errorf("host: configure guest network: set default route via %q dev %q: %w", gw, iface, err)
	}
	if dns := strings.TrimSpace(cfg.DNS); dns != "" {
		_ = os.WriteFile("/etc/resolv.conf", []byte("nameserver "+dns+"\n"), 0o644)
	}
	return nil
}

// DebugExecSSH opens a one-off SSH session into the guest for operator
// debugging outside the RPC channel, mirroring the teacher's
// ExecTransport="ssh" fallback (cmd/server/sshutil.go).
func DebugExecSSH(addr, keyPath, command string, dialTimeout time.Duration) (string, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return "", fmt.Errorf("host: debug ssh: read key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("host: debug ssh: parse key: %w", err)
	}
	cfg := &ssh.ClientConfig{
		User:            "root",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return "", fmt.Errorf("host: debug ssh: dial %s: %w", addr, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("host: debug ssh: new session: %w", err)
	}
	defer session.Close()

	out, err := session.CombinedOutput(command)
	if err != nil {
		return string(out), fmt.Errorf("host: debug ssh: run %q: %w", command, err)
	}
	return string(out), nil
}
