package api

import (
	"context"

	"github.com/labstack/echo"
	"github.com/saascore/saas-cloud/saasproto"
)

type AddLineRequest struct {
	Key  saasproto.InstanceKey      `json:"key"`
	Line saasproto.InstallationLine `json:"line"`
}

func (s *Server) CreateInstance(c echo.Context) error {
	in := saasproto.Instance{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	inst, err := s.mgr.CreateInstance(c.Request().Context(), &in)
	return setReply(c, err, inst)
}

func (s *Server) UpdateInstance(c echo.Context) error {
	in := saasproto.Instance{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	inst, err := s.mgr.UpdateInstance(c.Request().Context(), &in)
	return setReply(c, err, inst)
}

// ShowInstance returns one instance if a subdomain is given,
// otherwise all of them.
func (s *Server) ShowInstance(c echo.Context) error {
	key := saasproto.InstanceKey{}
	if err := c.Bind(&key); err != nil {
		return bindErr(c)
	}
	ctx := c.Request().Context()
	if key.Subdomain == "" {
		insts, err := s.mgr.ListInstances(ctx)
		return setReply(c, err, insts)
	}
	inst, err := s.mgr.GetInstance(ctx, key)
	return setReply(c, err, inst)
}

func (s *Server) AddLine(c echo.Context) error {
	in := AddLineRequest{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	line, err := s.mgr.AddLine(c.Request().Context(), in.Key, in.Line)
	return setReply(c, err, line)
}

type instanceOp func(ctx context.Context, key saasproto.InstanceKey) (*saasproto.Instance, error)

// runInstanceOp returns the instance on success. On failure the error
// kind sets the status; the instance's log holds the details.
func (s *Server) runInstanceOp(c echo.Context, op instanceOp) error {
	key := saasproto.InstanceKey{}
	if err := c.Bind(&key); err != nil {
		return bindErr(c)
	}
	inst, err := op(c.Request().Context(), key)
	return setReply(c, err, inst)
}

func (s *Server) Deploy(c echo.Context) error {
	return s.runInstanceOp(c, s.mgr.Deploy)
}

func (s *Server) StopInstance(c echo.Context) error {
	return s.runInstanceOp(c, s.mgr.Stop)
}

func (s *Server) Restart(c echo.Context) error {
	return s.runInstanceOp(c, s.mgr.Restart)
}

func (s *Server) Redeploy(c echo.Context) error {
	return s.runInstanceOp(c, s.mgr.Redeploy)
}

func (s *Server) Suspend(c echo.Context) error {
	return s.runInstanceOp(c, s.mgr.Suspend)
}

func (s *Server) Delete(c echo.Context) error {
	return s.runInstanceOp(c, s.mgr.Delete)
}

func (s *Server) Reset(c echo.Context) error {
	return s.runInstanceOp(c, s.mgr.Reset)
}

func (s *Server) RotateCredentials(c echo.Context) error {
	return s.runInstanceOp(c, s.mgr.RotateCredentials)
}

func (s *Server) InstallModules(c echo.Context) error {
	return s.runInstanceOp(c, s.mgr.InstallModules)
}

func (s *Server) PurgeInstance(c echo.Context) error {
	key := saasproto.InstanceKey{}
	if err := c.Bind(&key); err != nil {
		return bindErr(c)
	}
	err := s.mgr.PurgeInstance(c.Request().Context(), key)
	return setReply(c, err, nil)
}
