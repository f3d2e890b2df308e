package channel

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"emssimulate/pkg/apis"
	"emssimulate/pkg/apis/response"
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
	v1 "emssimulate/pkg/v1"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/types"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
)

func InstallHandler(group *gin.RouterGroup, mgr *Manager) {
	group.POST("/channels", createChannel(mgr))
	group.GET("/channels", listChannels(mgr))
	group.GET("/channels/:id", getChannelById(mgr))
	group.PUT("/channels/:id", updateChannelById(mgr))
	group.DELETE("/channels/:id", deleteChannelById(mgr))
	group.POST("/channels/:id/actions/:action", switchChannelById(mgr))
	group.POST("/channels/:id/poll", pollChannelById(mgr))
	group.POST("/channels/:id/reset", resetChannelById(mgr))

	group.GET("/channels/:id/points", listPoints(mgr))
	group.POST("/channels/:id/points", createPoint(mgr))
	group.PUT("/channels/:id/points", importPoints(mgr))
	group.GET("/channels/:id/points/:code", getPoint(mgr))
	group.PATCH("/channels/:id/points/:code", patchPointMetadata(mgr))
	group.DELETE("/channels/:id/points/:code", deletePoint(mgr))
	group.GET("/channels/:id/points/:code/value", readPoint(mgr))
	group.PUT("/channels/:id/points/:code/value", editPoint(mgr))
	group.PUT("/channels/:id/points/:code/limits", editPointLimits(mgr))

	group.POST("/channels/:id/slaves", addSlave(mgr))
	group.GET("/channels/:id/messages", listMessages(mgr))
	group.DELETE("/channels/:id/messages", clearMessages(mgr))
}

// writeError answers err with the status matching its cause.
func writeError(c *gin.Context, err error) {
	subject := c.Param("code")
	if len(subject) == 0 {
		subject = c.Param("id")
	}
	var agg utilerrors.Aggregate
	switch {
	case errors.Is(err, constant.ErrChannelNotFound):
		c.JSON(http.StatusNotFound, response.NewMultiError(response.ErrChannelNotFound(c.Param("id"))))
	case errors.Is(err, constant.ErrPointNotFound):
		c.JSON(http.StatusNotFound, response.NewMultiError(response.FromError(subject, err)))
	case errors.Is(err, apis.ErrMismatch):
		c.Status(http.StatusPreconditionFailed)
	case errors.Is(err, apis.ErrImmutable), errors.As(err, &agg):
		klog.V(3).InfoS("Rejected request", "err", err)
		c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrRequestBody))
	case errors.Is(err, constant.ErrHandoffTimeout), errors.Is(err, constant.ErrConnection):
		c.JSON(http.StatusServiceUnavailable, response.NewMultiError(response.FromError(subject, err)))
	default:
		c.JSON(http.StatusBadRequest, response.NewMultiError(response.FromError(subject, err)))
	}
}

func createChannel(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		object := &v1.Channel{}
		if err := c.ShouldBindJSON(object); err != nil {
			klog.V(2).InfoS("Failed to parse channel", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		if _, ok := constant.StringToProtocolType[object.ProtocolType]; !ok {
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrProtocolType(object.ProtocolType)))
			return
		}
		info, err := mgr.CreateChannel(c.Request.Context(), object)
		if err != nil {
			writeError(c, err)
			return
		}

		c.Header(apis.ETag, info.GetVersion())
		c.Header(apis.Location, fmt.Sprintf("https://%s%s/%s", c.Request.Host, c.Request.RequestURI, info.GetID()))
		c.JSON(http.StatusCreated, info)
	}
}

func listChannels(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := runtime.ChannelFilter{}
		if v := c.Query(apis.Filter); len(v) > 0 {
			if err := json.Unmarshal([]byte(v), &filter); err != nil {
				c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
				return
			}
		}
		infos := mgr.ListChannels(&filter)
		c.JSON(http.StatusOK, &runtime.ResponseModel{Channels: infos, Total: len(infos)})
	}
}

func getChannelById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		info := d.Info()
		c.Header(apis.ETag, info.GetVersion())
		c.JSON(http.StatusOK, info)
	}
}

func updateChannelById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		eTag := c.GetHeader(apis.IfMatch)
		if len(eTag) == 0 {
			c.Status(http.StatusPreconditionRequired)
			return
		}
		object := &v1.Channel{}
		if err := c.ShouldBindJSON(object); err != nil {
			klog.V(3).InfoS("Failed to decode", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		info, err := mgr.UpdateChannel(c.Request.Context(), c.Param("id"), eTag, object)
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header(apis.ETag, info.GetVersion())
		c.JSON(http.StatusOK, info)
	}
}

func deleteChannelById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		eTag := c.GetHeader(apis.IfMatch)
		if len(eTag) == 0 {
			c.Status(http.StatusPreconditionRequired)
			return
		}
		info, err := mgr.DeleteChannel(c.Request.Context(), c.Param("id"), eTag)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func switchChannelById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("action")
		action, ok := runtime.StringToChannelAction[name]
		if !ok {
			klog.V(2).InfoS("Unsupported channel action", "action", name)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrChannelOperatorUnSupported(name)))
			return
		}
		if err := mgr.Action(c.Request.Context(), c.Param("id"), action); err != nil {
			writeError(c, err)
			return
		}
		d, _ := mgr.GetDevice(c.Param("id"))
		c.JSON(http.StatusAccepted, d.Info())
	}
}

func pollChannelById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		values := d.PollOnce(c.Request.Context())
		c.JSON(http.StatusOK, &runtime.ResponseModel{Points: values, Total: len(values)})
	}
}

func resetChannelById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		d.ResetValues(c.Request.Context())
		c.Status(http.StatusNoContent)
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func listPoints(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		filter := runtime.PointFilter{}
		if v := c.Query(apis.Filter); len(v) > 0 {
			if err := json.Unmarshal([]byte(v), &filter); err != nil {
				c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
				return
			}
		}
		views, total := d.ListPoints(&filter, queryInt(c, apis.PageIndex, 1), queryInt(c, apis.PageSize, runtime.DefaultPageSize))
		c.JSON(http.StatusOK, &runtime.ResponseModel{Points: views, Total: total})
	}
}

func createPoint(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		record := &runtime.PointRecord{}
		if err := c.ShouldBindJSON(record); err != nil {
			klog.V(2).InfoS("Failed to parse point", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		created, err := d.AddPoint(c.Request.Context(), record)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func importPoints(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		object := &v1.ImportPoints{}
		if err := c.ShouldBindJSON(object); err != nil {
			klog.V(2).InfoS("Failed to parse points", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		if err = d.ImportPoints(c.Request.Context(), object.Points); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, d.Info())
	}
}

func getPoint(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		view, err := d.GetPoint(c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func deletePoint(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		if err = d.DeletePoint(c.Request.Context(), c.Param("code")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func readPoint(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		value, err := d.ReadPoint(c.Request.Context(), c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, runtime.PointData{DataPointId: c.Param("code"), Value: value})
	}
}

func editPoint(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		object := &v1.PointValue{}
		if err := c.ShouldBindJSON(object); err != nil {
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		if err = d.EditPoint(c.Request.Context(), c.Param("code"), *object.Value); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func editPointLimits(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		object := &v1.PointLimits{}
		if err := c.ShouldBindJSON(object); err != nil {
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		if err = d.EditLimits(c.Param("code"), *object.MinLimit, *object.MaxLimit); err != nil {
			writeError(c, err)
			return
		}
		view, _ := d.GetPoint(c.Param("code"))
		c.JSON(http.StatusOK, view)
	}
}

// patchPointMetadata applies a merge or JSON patch onto the point record, only the
// changed fields are handed to the device.
func patchPointMetadata(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		contentType := c.GetHeader("Content-Type")
		// Remove "; charset=" if included in header.
		if idx := strings.Index(contentType, ";"); idx > 0 {
			contentType = contentType[:idx]
		}
		if !patchTypes.Has(contentType) {
			c.Status(http.StatusUnsupportedMediaType)
			return
		}

		patchBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			klog.V(3).InfoS("Failed to read", "err", err)
			c.Status(http.StatusInternalServerError)
			return
		}

		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		old, err := d.GetPoint(c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}
		versionedJS, err := json.Marshal(old.PointRecord)
		if err != nil {
			klog.V(3).InfoS("Failed to marshal", "err", err)
			c.Status(http.StatusInternalServerError)
			return
		}

		patchedJS, err := applyJSPatch(types.PatchType(contentType), patchBytes, versionedJS)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.NewMultiError(err))
			return
		}

		fields, err := changedFields(versionedJS, patchedJS)
		if err != nil {
			writeError(c, err)
			return
		}
		if len(fields) == 0 {
			c.JSON(http.StatusOK, old)
			return
		}

		updated, err := d.EditMetadata(c.Request.Context(), c.Param("code"), fields)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// changedFields top level fields of patched differing from original. Removed fields are
// ignored, changing an immutable field is rejected.
func changedFields(original, patched []byte) (map[string]interface{}, error) {
	var before, after map[string]interface{}
	if err := json.Unmarshal(original, &before); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(patched, &after); err != nil {
		return nil, err
	}
	fields := make(map[string]interface{})
	for k, v := range after {
		if reflect.DeepEqual(before[k], v) {
			continue
		}
		if immutablePointFields.Has(k) {
			return nil, errors.Wrapf(apis.ErrImmutable, "field %s", k)
		}
		fields[k] = v
	}
	return fields, nil
}

func addSlave(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		object := &v1.Slave{}
		if err := c.ShouldBindJSON(object); err != nil {
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		if err = d.AddSlave(object.SlaveID); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, d.Info())
	}
}

func listMessages(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		limit := queryInt(c, apis.Limit, v1.DefaultMessageLimit)
		if limit <= 0 || limit > v1.MaxMessageLimit {
			limit = v1.MaxMessageLimit
		}
		msgs := d.Messages(limit)
		c.JSON(http.StatusOK, &runtime.ResponseModel{Messages: msgs, Total: len(msgs)})
	}
}

func clearMessages(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := mgr.GetDevice(c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		d.ClearMessages()
		c.Status(http.StatusNoContent)
	}
}

func applyJSPatch(patchType types.PatchType, patchBytes, versionedJS []byte) (patchedJS []byte, err error) {
	switch patchType {
	case types.JSONPatchType:
		patchObj, err := jsonpatch.DecodePatch(patchBytes)
		if err != nil {
			return nil, response.ErrMalformedJSON
		}
		if len(patchObj) > maxJSONPatchOperations {
			klog.V(3).InfoS("Too many json patch operations", "count", len(patchObj))
			return nil, response.ErrTooManyJsonPatchOperations(maxJSONPatchOperations)
		}
		patchedJS, err := patchObj.Apply(versionedJS)
		if err != nil {
			klog.V(3).InfoS("Failed to apply json patch", "err", err)
			return nil, response.ErrMalformedJSON
		}
		return patchedJS, nil
	case types.MergePatchType:
		patchedJS, err = jsonpatch.MergePatch(versionedJS, patchBytes)
		if err != nil {
			klog.V(3).InfoS("Failed to apply json merge patch", "err", err)
			return nil, response.ErrMalformedJSON
		}
		return patchedJS, err
	default:
		// gin routes only the registered content types here
		return nil, fmt.Errorf("unknown Content-Type header for patch: %v", patchType)
	}
}
