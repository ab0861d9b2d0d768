package pc

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/saascore/saas-cloud/util"
	"golang.org/x/crypto/ssh"
)

const ClientVersion = "SSH-2.0-saas-ssh-client-1.0"

var DefaultConnectTimeout = 30 * time.Second

type SSHConfig struct {
	Host string
	Port int
	User string
	// PEM or OpenSSH encoded private key (rsa, dsa, ecdsa, ed25519)
	PrivateKey     []byte
	ConnectTimeout time.Duration
}

// SSHClient is an Executor over a single SSH connection. Each command
// runs in its own session on that connection.
type SSHClient struct {
	client *ssh.Client
	addr   string
}

func NewSSHClient(cfg SSHConfig) (*SSHClient, error) {
	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key, %v", err)
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	sshConfig := &ssh.ClientConfig{
		User:          cfg.User,
		Auth:          []ssh.AuthMethod{ssh.PublicKeys(signer)},
		ClientVersion: ClientVersion,
		Timeout:       cfg.ConnectTimeout,
		// hosts are accepted on first use
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	client, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, fmt.Errorf("ssh connect to %s failed, %v", addr, err)
	}
	return &SSHClient{
		client: client,
		addr:   addr,
	}, nil
}

func (s *SSHClient) Execute(command string, timeout time.Duration) (int, string, string, error) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	session, err := s.client.NewSession()
	if err != nil {
		return -1, "", "", fmt.Errorf("ssh session to %s failed, %v", s.addr, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if err := session.Start(command); err != nil {
		return -1, "", "", err
	}
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()
	select {
	case err = <-done:
	case <-time.After(timeout):
		session.Signal(ssh.SIGKILL)
		session.Close()
		return -1, "", "", fmt.Errorf("command timed out after %s", timeout)
	}
	if err == nil {
		return 0, stdout.String(), stderr.String(), nil
	}
	if exitErr, ok := err.(*ssh.ExitError); ok {
		return exitErr.ExitStatus(), stdout.String(), stderr.String(), nil
	}
	return -1, stdout.String(), stderr.String(), err
}

func (s *SSHClient) WriteFile(path, content string) error {
	session, err := s.client.NewSession()
	if err != nil {
		return fmt.Errorf("ssh session to %s failed, %v", s.addr, err)
	}
	defer session.Close()

	var stderr bytes.Buffer
	session.Stdin = strings.NewReader(content)
	session.Stderr = &stderr
	if err := session.Run("cat > " + util.ShellQuote(path)); err != nil {
		return fmt.Errorf("%v, %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (s *SSHClient) Close() error {
	return s.client.Close()
}
