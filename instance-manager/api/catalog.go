package api

import (
	"encoding/base64"
	"strings"

	"github.com/labstack/echo"
	"github.com/saascore/saas-cloud/saasproto"
	"github.com/saascore/saas-cloud/util"
	"github.com/saascore/saas-cloud/vault"
)

// Catalog objects: versions, modules, bundles, base domains and ssh
// key pairs.

func (s *Server) CreateVersion(c echo.Context) error {
	in := saasproto.OdooVersion{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	if err := in.Validate(); err != nil {
		return setReply(c, err, nil)
	}
	err := s.mgr.Store().CreateOdooVersion(c.Request().Context(), &in)
	return setReply(c, err, &in)
}

func (s *Server) UpdateVersion(c echo.Context) error {
	in := saasproto.OdooVersion{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	if err := in.Validate(); err != nil {
		return setReply(c, err, nil)
	}
	err := s.mgr.Store().UpdateOdooVersion(c.Request().Context(), &in)
	return setReply(c, err, &in)
}

func (s *Server) DeleteVersion(c echo.Context) error {
	key := saasproto.VersionKey{}
	if err := c.Bind(&key); err != nil {
		return bindErr(c)
	}
	err := s.mgr.Store().DeleteOdooVersion(c.Request().Context(), key)
	return setReply(c, err, nil)
}

func (s *Server) ShowVersion(c echo.Context) error {
	list, err := s.mgr.Store().ListOdooVersions(c.Request().Context())
	return setReply(c, err, list)
}

func (s *Server) CreateModule(c echo.Context) error {
	in := saasproto.Module{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	if err := in.Validate(); err != nil {
		return setReply(c, err, nil)
	}
	err := s.mgr.Store().CreateModule(c.Request().Context(), &in)
	return setReply(c, err, &in)
}

func (s *Server) UpdateModule(c echo.Context) error {
	in := saasproto.Module{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	if err := in.Validate(); err != nil {
		return setReply(c, err, nil)
	}
	err := s.mgr.Store().UpdateModule(c.Request().Context(), &in)
	return setReply(c, err, &in)
}

func (s *Server) DeleteModule(c echo.Context) error {
	key := saasproto.ModuleKey{}
	if err := c.Bind(&key); err != nil {
		return bindErr(c)
	}
	err := s.mgr.Store().DeleteModule(c.Request().Context(), key)
	return setReply(c, err, nil)
}

func (s *Server) ShowModule(c echo.Context) error {
	list, err := s.mgr.Store().ListModules(c.Request().Context())
	return setReply(c, err, list)
}

func (s *Server) CreateBundle(c echo.Context) error {
	in := saasproto.Bundle{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	if err := in.Validate(); err != nil {
		return setReply(c, err, nil)
	}
	err := s.mgr.Store().CreateBundle(c.Request().Context(), &in)
	return setReply(c, err, &in)
}

func (s *Server) UpdateBundle(c echo.Context) error {
	in := saasproto.Bundle{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	if err := in.Validate(); err != nil {
		return setReply(c, err, nil)
	}
	err := s.mgr.Store().UpdateBundle(c.Request().Context(), &in)
	return setReply(c, err, &in)
}

func (s *Server) DeleteBundle(c echo.Context) error {
	key := saasproto.BundleKey{}
	if err := c.Bind(&key); err != nil {
		return bindErr(c)
	}
	err := s.mgr.Store().DeleteBundle(c.Request().Context(), key)
	return setReply(c, err, nil)
}

func (s *Server) ShowBundle(c echo.Context) error {
	list, err := s.mgr.Store().ListBundles(c.Request().Context())
	return setReply(c, err, list)
}

func (s *Server) CreateBaseDomain(c echo.Context) error {
	in := saasproto.BaseDomain{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	if err := in.Key.Validate(); err != nil {
		return setReply(c, err, nil)
	}
	err := s.mgr.Store().PutBaseDomain(c.Request().Context(), &in)
	return setReply(c, err, &in)
}

func (s *Server) DeleteBaseDomain(c echo.Context) error {
	key := saasproto.DomainKey{}
	if err := c.Bind(&key); err != nil {
		return bindErr(c)
	}
	err := s.mgr.Store().DeleteBaseDomain(c.Request().Context(), key)
	return setReply(c, err, nil)
}

func (s *Server) ShowBaseDomain(c echo.Context) error {
	list, err := s.mgr.Store().ListBaseDomains(c.Request().Context())
	return setReply(c, err, list)
}

func (s *Server) CreateSSHKey(c echo.Context) error {
	in := saasproto.SSHKeyPair{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	if err := in.Validate(); err != nil {
		return setReply(c, err, nil)
	}
	if err := setPublicKey(&in); err != nil {
		return setReply(c, err, nil)
	}
	if s.vaultConfig != nil {
		priv, _ := base64.StdEncoding.DecodeString(in.PrivateKey)
		err := vault.PutSSHKey(s.vaultConfig, in.Key.Name, &vault.SSHKey{
			Type:       string(in.Type),
			PrivateKey: string(priv),
			PublicKey:  in.PublicKey,
		})
		if err != nil {
			return setReply(c, saasproto.WrapOperational(err, "failed to store ssh key in vault"), nil)
		}
		// the record only lists the key, vault holds the secret
		in.PrivateKey = ""
	}
	err := s.mgr.Store().PutSSHKeyPair(c.Request().Context(), &in)
	reply := in
	reply.PrivateKey = ""
	return setReply(c, err, &reply)
}

// setPublicKey derives the key type and public key from the private
// key. A public key supplied by the caller must match.
func setPublicKey(in *saasproto.SSHKeyPair) error {
	priv, err := base64.StdEncoding.DecodeString(in.PrivateKey)
	if err != nil {
		return saasproto.NewValidationError("ssh key pair %s private key is not base64", in.Key.Name)
	}
	typ, pub, err := util.SSHKeyInfo(priv)
	if err != nil {
		return saasproto.NewValidationError("ssh key pair %s: %v", in.Key.Name, err)
	}
	if in.PublicKey != "" {
		if err := util.ValidatePublicKey(in.PublicKey); err != nil {
			return saasproto.NewValidationError("ssh key pair %s: %v", in.Key.Name, err)
		}
		if !strings.HasPrefix(strings.TrimSpace(in.PublicKey), pub) {
			return saasproto.NewValidationError("ssh key pair %s public key does not match private key", in.Key.Name)
		}
	}
	in.Type = saasproto.SSHKeyType(typ)
	in.PublicKey = pub
	return nil
}

func (s *Server) DeleteSSHKey(c echo.Context) error {
	key := saasproto.SSHKeyPairKey{}
	if err := c.Bind(&key); err != nil {
		return bindErr(c)
	}
	if s.vaultConfig != nil {
		if err := vault.DeleteSSHKey(s.vaultConfig, key.Name); err != nil {
			return setReply(c, saasproto.WrapOperational(err, "failed to delete ssh key from vault"), nil)
		}
	}
	err := s.mgr.Store().DeleteSSHKeyPair(c.Request().Context(), key)
	return setReply(c, err, nil)
}

// ShowSSHKeys lists key names only.
func (s *Server) ShowSSHKeys(c echo.Context) error {
	names, err := s.mgr.Store().ListSSHKeyPairNames(c.Request().Context())
	return setReply(c, err, names)
}
