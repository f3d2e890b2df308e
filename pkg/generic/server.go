package generic

import "github.com/gin-gonic/gin"

type Server struct {
	Router  *gin.Engine
	Port    string
	Methods []string
	// CertFile and KeyFile switch the listener to TLS when both are set.
	CertFile string
	KeyFile  string
}
