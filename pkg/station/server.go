package station

import (
	"errors"
	"net/http"

	"emssimulate/pkg/apis"
	"emssimulate/pkg/apis/response"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

func InstallHandler(group *gin.RouterGroup, mgr *Manager) {
	group.GET("/station", getStationMeta(mgr))
	group.PUT("/station", updateStationMeta(mgr))
	group.GET("/system", getSystem(mgr))
	group.GET("/system/cpu", getStationCpu(mgr))
	group.GET("/system/mem", getStationMem(mgr))
	group.GET("/system/disk", getStationDisk(mgr))
}

func getStationMeta(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := mgr.GetStationMeta()
		c.Header(apis.ETag, s.GetVersion())
		c.JSON(http.StatusOK, s)
	}
}

func updateStationMeta(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		eTag := c.GetHeader(apis.IfMatch)
		if len(eTag) == 0 {
			c.Status(http.StatusPreconditionRequired)
			return
		}
		var target struct {
			Name        string `json:"name" binding:"required,min=1,max=64"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&target); err != nil {
			klog.V(3).InfoS("Failed to decode", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		s, err := mgr.UpdateStationMeta(eTag, target.Name, target.Description)
		if err != nil {
			if errors.Is(err, apis.ErrMismatch) {
				c.Status(http.StatusPreconditionFailed)
			} else {
				c.Status(http.StatusInternalServerError)
			}
			return
		}
		c.Header(apis.ETag, s.GetVersion())
		c.JSON(http.StatusOK, s)
	}
}

func getSystem(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cpus, err := mgr.getStationCpu()
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		vm, err := mgr.getStationMem()
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		disks, err := mgr.getStationDisk()
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, ResponseModel{Cpus: cpus, Mem: vm, Disks: disks})
	}
}

func getStationCpu(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		cpus, err := mgr.getStationCpu()
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, ResponseModel{Cpus: cpus})
	}
}

func getStationMem(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		vm, err := mgr.getStationMem()
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, ResponseModel{Mem: vm})
	}
}

func getStationDisk(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		disks, err := mgr.getStationDisk()
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, ResponseModel{Disks: disks})
	}
}
