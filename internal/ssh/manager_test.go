// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"ccos/internal/config"
)

type upload struct {
	command string
	data    []byte
}

// startServer runs a password-authenticated SSH server that answers exec
// requests by reading stdin to EOF.
func startServer(t *testing.T, password string) (string, int, chan upload) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == password {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	uploads := make(chan upload, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(conn, cfg, uploads)
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return host, port, uploads
}

func serveConn(conn net.Conn, cfg *ssh.ServerConfig, uploads chan upload) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "only sessions")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func() {
			defer ch.Close()
			for req := range chReqs {
				if req.Type != "exec" {
					req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				ssh.Unmarshal(req.Payload, &payload)
				req.Reply(true, nil)

				data, _ := io.ReadAll(ch)
				uploads <- upload{command: payload.Command, data: data}
				ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
				return
			}
		}()
	}
}

func TestUploadStreamsFile(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	host, port, uploads := startServer(t, "hunter2")

	m := NewManager()
	m.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	defer m.CloseAll()

	target := config.PublishTarget{Name: "media", Hostname: host, Port: port, User: "deploy", Password: "hunter2", RemoteDir: "/srv/media"}
	remote, err := m.Upload(context.Background(), target, "/tmp/ccos/clip.mp4", strings.NewReader("video-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/media/clip.mp4", remote)

	got := <-uploads
	assert.Equal(t, `mkdir -p '/srv/media' && cat > '/srv/media/clip.mp4'`, got.command)
	assert.Equal(t, "video-bytes", string(got.data))

	// The second upload reuses the pooled client.
	client, err := m.Client(context.Background(), target)
	require.NoError(t, err)
	_, err = m.Upload(context.Background(), target, "b.png", strings.NewReader("png"))
	require.NoError(t, err)
	again, err := m.Client(context.Background(), target)
	require.NoError(t, err)
	assert.Same(t, client, again)
	<-uploads
}

func TestWrongPasswordFails(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	host, port, _ := startServer(t, "right")

	m := NewManager()
	m.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	_, err := m.Client(context.Background(), config.PublishTarget{Name: "x", Hostname: host, Port: port, User: "u", Password: "wrong"})
	assert.Error(t, err)
}

func TestNoAuthMethods(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	m := NewManager()
	_, err := m.Client(context.Background(), config.PublishTarget{Name: "x", Hostname: "127.0.0.1", User: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suitable authentication method")
}
