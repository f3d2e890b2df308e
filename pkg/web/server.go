package web

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"emssimulate/cmd/simulator/config"
	"emssimulate/pkg/channel"
	"emssimulate/pkg/generic"
	"emssimulate/pkg/metrics"
	"emssimulate/pkg/station"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

type Server struct {
	*generic.Server
	*config.Config
}

func NewServer(router *gin.Engine, port string, config *config.Config) (*Server, error) {
	allowMethods := []string{http.MethodPost, http.MethodGet, http.MethodDelete, http.MethodPut, http.MethodPatch}

	s := &generic.Server{
		Router:   router,
		Port:     port,
		Methods:  allowMethods,
		CertFile: config.CertFile,
		KeyFile:  config.KeyFile,
	}

	server := &Server{
		Server: s,
		Config: config,
	}

	server.InstallHandlers()

	return server, nil
}

func (s *Server) InstallHandlers() {
	metrics.InstallHandler(s.Router)
	v1 := s.Router.Group("/api/v1")
	v1.Use(allowMethods(s.Methods))
	station.InstallHandler(v1, s.Config.StationMgr)
	channel.InstallHandler(v1, s.Config.ChannelMgr)
}

func allowMethods(methods []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, m := range methods {
			if c.Request.Method == m {
				c.Next()
				return
			}
		}
		c.AbortWithStatus(http.StatusMethodNotAllowed)
	}
}

func (s *Server) Serve() (func(ctx context.Context), error) {
	var srv *http.Server
	if len(s.Server.CertFile) != 0 && len(s.Server.KeyFile) != 0 {
		x509KeyPair, err := tls.LoadX509KeyPair(s.Server.CertFile, s.Server.KeyFile)
		if err != nil {
			return nil, err
		}
		c := &tls.Config{
			Certificates: []tls.Certificate{x509KeyPair},
		}

		srv = &http.Server{
			Addr:      fmt.Sprintf(":%s", s.Port),
			Handler:   s.Router,
			TLSConfig: c,
		}
		go func() {
			klog.Error(srv.ListenAndServeTLS("", ""))
		}()
	} else {
		srv = &http.Server{
			Addr:    fmt.Sprintf(":%s", s.Port),
			Handler: s.Router,
		}
		go func() {
			klog.Error(srv.ListenAndServe())
		}()
	}

	return func(ctx context.Context) {
		srv.SetKeepAlivesEnabled(false)
		if err := s.Config.ChannelMgr.Shutdown(ctx); err != nil {
			klog.Error(err)
		}
		if err := srv.Shutdown(ctx); err != nil {
			klog.Error(err)
		}
	}, nil
}
