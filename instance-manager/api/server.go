// Package api is the operator REST interface of the instance manager.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo"
	"github.com/saascore/saas-cloud/instance-manager/orchestrator"
	"github.com/saascore/saas-cloud/log"
	"github.com/saascore/saas-cloud/vault"
)

const Root = "api/v1"

type Server struct {
	addr        string
	mgr         *orchestrator.Manager
	echo        *echo.Echo
	done        chan error
	vaultConfig *vault.Config
}

type Option func(s *Server)

// WithVault keeps private keys of created ssh key pairs in vault
// instead of the object store.
func WithVault(config *vault.Config) Option {
	return func(s *Server) { s.vaultConfig = config }
}

// New sets up the routes. Call Start to listen, or use ServeHTTP
// directly.
func New(addr string, mgr *orchestrator.Manager, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	server := &Server{
		addr: addr,
		mgr:  mgr,
		echo: e,
	}
	for _, opt := range opts {
		opt(server)
	}

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.Use(logger)

	g := e.Group("/" + Root)
	g.POST("/instance/create", server.CreateInstance)
	g.POST("/instance/update", server.UpdateInstance)
	g.POST("/instance/show", server.ShowInstance)
	g.POST("/instance/addline", server.AddLine)
	g.POST("/instance/deploy", server.Deploy)
	g.POST("/instance/stop", server.StopInstance)
	g.POST("/instance/restart", server.Restart)
	g.POST("/instance/redeploy", server.Redeploy)
	g.POST("/instance/suspend", server.Suspend)
	g.POST("/instance/delete", server.Delete)
	g.POST("/instance/reset", server.Reset)
	g.POST("/instance/rotatecredentials", server.RotateCredentials)
	g.POST("/instance/installmodules", server.InstallModules)
	g.POST("/instance/purge", server.PurgeInstance)

	g.POST("/server/create", server.CreateServer)
	g.POST("/server/update", server.UpdateServer)
	g.POST("/server/delete", server.DeleteServer)
	g.POST("/server/show", server.ShowServer)
	g.POST("/server/testconnection", server.TestConnection)
	g.POST("/server/containers", server.ListContainers)
	g.POST("/server/container/stop", server.StopContainer)
	g.POST("/server/container/restart", server.RestartContainer)

	g.POST("/version/create", server.CreateVersion)
	g.POST("/version/update", server.UpdateVersion)
	g.POST("/version/delete", server.DeleteVersion)
	g.POST("/version/show", server.ShowVersion)
	g.POST("/module/create", server.CreateModule)
	g.POST("/module/update", server.UpdateModule)
	g.POST("/module/delete", server.DeleteModule)
	g.POST("/module/show", server.ShowModule)
	g.POST("/bundle/create", server.CreateBundle)
	g.POST("/bundle/update", server.UpdateBundle)
	g.POST("/bundle/delete", server.DeleteBundle)
	g.POST("/bundle/show", server.ShowBundle)
	g.POST("/basedomain/create", server.CreateBaseDomain)
	g.POST("/basedomain/delete", server.DeleteBaseDomain)
	g.POST("/basedomain/show", server.ShowBaseDomain)
	g.POST("/sshkey/create", server.CreateSSHKey)
	g.POST("/sshkey/delete", server.DeleteSSHKey)
	g.POST("/sshkey/show", server.ShowSSHKeys)
	return server
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start() {
	s.done = make(chan error, 1)
	go func() {
		err := s.echo.Start(s.addr)
		if err != nil && err != http.ErrServerClosed {
			log.FatalLog("Failed to serve", "addr", s.addr, "err", err)
		}
		s.done <- err
	}()
}

func (s *Server) WaitUntilReady() error {
	for ii := 0; ii < 50; ii++ {
		resp, err := http.Get("http://" + s.addr)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("timed out waiting for server ready")
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.echo.Shutdown(ctx)
}

// logger runs each request in its own span.
func logger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.URL.Path == "/" {
			return next(c)
		}
		span := log.StartSpan(log.DebugLevelApi, strings.TrimPrefix(req.URL.Path, "/"+Root))
		defer span.Finish()
		span.SetTag("method", req.Method)
		span.SetTag("remote-ip", c.RealIP())
		ctx := log.ContextWithSpan(req.Context(), span)
		c.SetRequest(req.WithContext(ctx))

		err := next(c)
		span.SetTag("status", c.Response().Status)
		if err != nil {
			span.SetTag("error", err)
		}
		return err
	}
}
