package util

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// SSHKeyInfo parses a PEM or OpenSSH encoded private key and returns
// its short type name (rsa, dsa, ecdsa, ed25519) and the public key
// in authorized_keys format.
func SSHKeyInfo(privateKey []byte) (string, string, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse private key: %v", err)
	}
	pub := signer.PublicKey()
	return SSHKeyTypeName(pub.Type()), strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub))), nil
}

func SSHKeyTypeName(algo string) string {
	switch {
	case algo == ssh.KeyAlgoRSA:
		return "rsa"
	case algo == ssh.KeyAlgoDSA:
		return "dsa"
	case strings.HasPrefix(algo, "ecdsa-"):
		return "ecdsa"
	case algo == ssh.KeyAlgoED25519:
		return "ed25519"
	}
	return algo
}

// ValidatePublicKey checks an authorized_keys formatted public key.
func ValidatePublicKey(pubKey string) error {
	if strings.HasPrefix(pubKey, "---- BEGIN SSH2 PUBLIC KEY") {
		// ssh-keygen -m RFC4716
		return fmt.Errorf("ssh2 key format not supported")
	}
	_, _, _, _, err := ssh.ParseAuthorizedKey([]byte(pubKey))
	if err != nil {
		return fmt.Errorf("failed to parse public key: %v", err)
	}
	return nil
}
