package util

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const ssh2PublicKey = `---- BEGIN SSH2 PUBLIC KEY ----
Comment: "2048-bit RSA, converted by test@example.com from OpenSSH"
AAAAB3NzaC1yc2EAAAADAQABAAABAQCrHlOJOJUqvd4nEOXQbdL8ODKzWaUxKVY94pF7J3
---- END SSH2 PUBLIC KEY ----`

func TestSSHKeyInfo(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.Nil(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	typ, pub, err := SSHKeyInfo(privPEM)
	require.Nil(t, err)
	require.Equal(t, "rsa", typ)
	require.True(t, strings.HasPrefix(pub, "ssh-rsa "), pub)
	require.Nil(t, ValidatePublicKey(pub))

	_, _, err = SSHKeyInfo([]byte("not a key"))
	require.NotNil(t, err)

	require.NotNil(t, ValidatePublicKey(ssh2PublicKey))
	require.NotNil(t, ValidatePublicKey("ssh-rsa garbage"))

	require.Equal(t, "ecdsa", SSHKeyTypeName("ecdsa-sha2-nistp256"))
	require.Equal(t, "ed25519", SSHKeyTypeName("ssh-ed25519"))
	require.Equal(t, "dsa", SSHKeyTypeName("ssh-dss"))
}
