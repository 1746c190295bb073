// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package ssh establishes and pools SSH connections to publish targets and
// streams artifacts to them.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"ccos/internal/config"
	"ccos/internal/logger"
	"ccos/internal/util"
)

const dialTimeout = 10 * time.Second

// Manager pools one SSH client per publish target name. It is safe for
// concurrent use.
type Manager struct {
	mu      sync.Mutex
	clients map[string]*ssh.Client

	// HostKeyCallback overrides known_hosts verification when set.
	HostKeyCallback ssh.HostKeyCallback
}

// NewManager returns an empty pool.
func NewManager() *Manager {
	return &Manager{clients: make(map[string]*ssh.Client)}
}

// cached returns the pooled client for name if it still answers a keepalive.
func (m *Manager) cached(name string) *ssh.Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[name]
	if !ok {
		return nil
	}
	if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err == nil {
		return client
	}
	if err := client.Close(); err != nil {
		logger.Debug("Error closing stale SSH client", "target", name, "error", err)
	}
	delete(m.clients, name)
	return nil
}

// Client returns a connected client for target, dialing when the pool has
// none. The dial honours ctx.
func (m *Manager) Client(ctx context.Context, target config.PublishTarget) (*ssh.Client, error) {
	if client := m.cached(target.Name); client != nil {
		return client, nil
	}

	clientConfig, err := m.clientConfig(target)
	if err != nil {
		return nil, err
	}

	port := target.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(target.Hostname, strconv.Itoa(port))

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s (%s): %w", target.Name, addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s (%s) failed: %w", target.Name, addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent upload to the same target may have won the race.
	if existing, ok := m.clients[target.Name]; ok {
		client.Close()
		return existing, nil
	}
	m.clients[target.Name] = client
	return client, nil
}

func (m *Manager) clientConfig(target config.PublishTarget) (*ssh.ClientConfig, error) {
	auth, err := authMethods(target)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare auth methods for %s: %w", target.Name, err)
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no suitable authentication method found for %s (key, agent, or password required)", target.Name)
	}

	hostKeys := m.HostKeyCallback
	if hostKeys == nil {
		if hostKeys, err = knownHostsCallback(); err != nil {
			logger.Warn("Could not load known_hosts, host key will not be verified", "target", target.Name, "error", err)
			hostKeys = ssh.InsecureIgnoreHostKey()
		}
	}

	return &ssh.ClientConfig{
		User:            target.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         dialTimeout,
	}, nil
}

// authMethods offers, in order: the key file, the ssh agent and the password.
func authMethods(target config.PublishTarget) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if target.KeyPath != "" {
		keyPath, err := config.ResolvePath(target.KeyPath)
		if err != nil {
			keyPath = target.KeyPath
		}
		pem, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key file %s: %w", keyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		var passphrase *ssh.PassphraseMissingError
		switch {
		case err == nil:
			methods = append(methods, ssh.PublicKeys(signer))
		case errors.As(err, &passphrase):
			logger.Warn("Private key is encrypted; relying on the ssh agent instead", "path", keyPath)
		default:
			return nil, fmt.Errorf("failed to parse private key file %s: %w", keyPath, err)
		}
	}

	if socket := os.Getenv("SSH_AUTH_SOCK"); socket != "" {
		if conn, err := net.Dial("unix", socket); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if target.Password != "" {
		methods = append(methods, ssh.Password(target.Password))
	}
	return methods, nil
}

// Upload streams r to <RemoteDir>/<name> on the target and returns the remote
// path. Cancelling ctx closes the session.
func (m *Manager) Upload(ctx context.Context, target config.PublishTarget, name string, r io.Reader) (string, error) {
	client, err := m.Client(ctx, target)
	if err != nil {
		return "", err
	}

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open ssh session on %s: %w", target.Name, err)
	}
	defer session.Close()
	session.Stdin = r

	done := make(chan error, 1)
	go func() {
		out, err := session.CombinedOutput(util.UploadCommand(target.RemoteDir, name))
		if err != nil && len(out) > 0 {
			err = fmt.Errorf("%w: %s", err, out)
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		session.Close()
		<-done
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("remote upload to %s failed: %w", target.Name, err)
		}
	}

	dir := target.RemoteDir
	if dir == "" {
		dir = "."
	}
	return path.Join(dir, path.Base(name)), nil
}

// CloseAll closes every pooled connection.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, client := range m.clients {
		if err := client.Close(); err != nil {
			logger.Debug("Error closing SSH client", "target", name, "error", err)
		}
		delete(m.clients, name)
	}
}

// knownHostsCallback verifies against ~/.ssh/known_hosts. A missing file
// accepts any host key.
func knownHostsCallback() (ssh.HostKeyCallback, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory for known_hosts: %w", err)
	}
	file := filepath.Join(home, ".ssh", "known_hosts")

	callback, err := knownhosts.New(file)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("known_hosts file not found, host key will not be verified", "path", file)
		return ssh.InsecureIgnoreHostKey(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load or parse known_hosts file %s: %w", file, err)
	}
	return callback, nil
}
