package api

import (
	"github.com/labstack/echo"
	"github.com/saascore/saas-cloud/instance-manager/dockermgmt"
	"github.com/saascore/saas-cloud/saasproto"
)

type ContainerRequest struct {
	Server    string `json:"server"`
	Container string `json:"container"`
}

type ContainersReply struct {
	Server     string                 `json:"server"`
	Containers []dockermgmt.Container `json:"containers"`
}

func (s *Server) CreateServer(c echo.Context) error {
	in := saasproto.Server{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	in.SetDefaults()
	if err := in.Validate(); err != nil {
		return setReply(c, err, nil)
	}
	err := s.mgr.Store().CreateServer(c.Request().Context(), &in)
	return setReply(c, err, &in)
}

func (s *Server) UpdateServer(c echo.Context) error {
	in := saasproto.Server{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	in.SetDefaults()
	if err := in.Validate(); err != nil {
		return setReply(c, err, nil)
	}
	err := s.mgr.Store().UpdateServer(c.Request().Context(), &in)
	return setReply(c, err, &in)
}

func (s *Server) DeleteServer(c echo.Context) error {
	key := saasproto.ServerKey{}
	if err := c.Bind(&key); err != nil {
		return bindErr(c)
	}
	err := s.mgr.Store().DeleteServer(c.Request().Context(), key)
	return setReply(c, err, nil)
}

func (s *Server) ShowServer(c echo.Context) error {
	key := saasproto.ServerKey{}
	if err := c.Bind(&key); err != nil {
		return bindErr(c)
	}
	ctx := c.Request().Context()
	if key.Name == "" {
		list, err := s.mgr.Store().ListServers(ctx)
		return setReply(c, err, list)
	}
	server := saasproto.Server{}
	err := s.mgr.Store().MustGetServer(ctx, key, &server)
	return setReply(c, err, &server)
}

func (s *Server) TestConnection(c echo.Context) error {
	key := saasproto.ServerKey{}
	if err := c.Bind(&key); err != nil {
		return bindErr(c)
	}
	host, err := s.mgr.TestConnection(c.Request().Context(), key.Name)
	if err != nil {
		return setReply(c, err, nil)
	}
	return setReply(c, nil, Msg("Connection OK, host "+host))
}

func (s *Server) ListContainers(c echo.Context) error {
	key := saasproto.ServerKey{}
	if err := c.Bind(&key); err != nil {
		return bindErr(c)
	}
	list, err := s.mgr.ListContainers(c.Request().Context(), key.Name)
	return setReply(c, err, &ContainersReply{Server: key.Name, Containers: list})
}

func (s *Server) StopContainer(c echo.Context) error {
	in := ContainerRequest{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	list, err := s.mgr.StopContainer(c.Request().Context(), in.Server, in.Container)
	return setReply(c, err, &ContainersReply{Server: in.Server, Containers: list})
}

func (s *Server) RestartContainer(c echo.Context) error {
	in := ContainerRequest{}
	if err := c.Bind(&in); err != nil {
		return bindErr(c)
	}
	list, err := s.mgr.RestartContainer(c.Request().Context(), in.Server, in.Container)
	return setReply(c, err, &ContainersReply{Server: in.Server, Containers: list})
}
