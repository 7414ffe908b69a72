package feed

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
)

// TransportConfig holds the supplier file-server connection settings.
type TransportConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Timeout   time.Duration
	Dir       string
	Extension string
}

// SFTPTransport downloads the product feed from the supplier's SFTP
// server.
type SFTPTransport struct {
	cfg TransportConfig
	log *zap.Logger
}

// NewSFTPTransport returns a transport for the given server settings,
// filling in the defaults the supplier documents (port 22, 30s
// timeout, .csv feeds in the login directory).
func NewSFTPTransport(cfg TransportConfig, log *zap.Logger) *SFTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Extension == "" {
		cfg.Extension = ".csv"
	}
	// Entry names are lower-cased before matching, so the extension
	// must be too.
	cfg.Extension = strings.ToLower(cfg.Extension)
	return &SFTPTransport{cfg: cfg, log: log}
}

// FetchFeedText connects, locates the feed file and reads it fully
// into memory. The connection is closed on every path out.
func (t *SFTPTransport) FetchFeedText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errs.NewTransportError(errs.TransportConnectFailed, err)
	}

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	sshConfig := &ssh.ClientConfig{
		User:            t.cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(t.cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         t.cfg.Timeout,
	}

	conn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		reason := errs.TransportConnectFailed
		if strings.Contains(err.Error(), "unable to authenticate") {
			reason = errs.TransportAuthFailed
		}
		return "", errs.NewTransportError(reason, err)
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return "", errs.NewTransportError(errs.TransportConnectFailed, err)
	}
	defer client.Close()

	t.log.Info("connected to feed server", zap.String("host", t.cfg.Host))

	name, err := t.selectFeedFile(client)
	if err != nil {
		return "", err
	}
	t.log.Info("downloading product feed", zap.String("file", name))

	remote, err := client.Open(client.Join(t.cfg.Dir, name))
	if err != nil {
		return "", errs.NewTransportError(errs.TransportReadFailed, err)
	}
	defer remote.Close()

	content, err := io.ReadAll(remote)
	if err != nil {
		return "", errs.NewTransportError(errs.TransportReadFailed, err)
	}

	return string(content), nil
}

// selectFeedFile lists the feed directory and picks a candidate.
// Listing order is server-dependent, so candidates are sorted and the
// lexicographically first is taken to keep the choice deterministic.
func (t *SFTPTransport) selectFeedFile(client *sftp.Client) (string, error) {
	entries, err := client.ReadDir(t.cfg.Dir)
	if err != nil {
		return "", errs.NewTransportError(errs.TransportReadFailed, err)
	}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), t.cfg.Extension) {
			candidates = append(candidates, entry.Name())
		}
	}
	if len(candidates) == 0 {
		return "", errs.NewTransportError(errs.TransportNoFeedFile,
			fmt.Errorf("no %s files in %s", t.cfg.Extension, t.cfg.Dir))
	}

	sort.Strings(candidates)
	return candidates[0], nil
}
