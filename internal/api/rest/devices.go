package rest

import (
	"errors"
	"net/http"

	"github.com/KevinKickass/GiraIoTCore/internal/devices"
	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/v1/devices?kind=light
func (s *Server) listDevices(c *gin.Context) {
	kind := types.DeviceKind(c.Query("kind"))
	switch kind {
	case "", types.KindLight, types.KindClimate, types.KindCover:
	default:
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeInvalidKind, "unknown device kind", string(kind)))
		return
	}

	views := s.session.DeviceManager().ListViews(kind)
	c.JSON(http.StatusOK, gin.H{
		"devices": views,
		"count":   len(views),
	})
}

// GET /api/v1/devices/:id
func (s *Server) getDevice(c *gin.Context) {
	id := c.Param("id")
	mgr := s.session.DeviceManager()

	view, exists := mgr.GetView(id)
	if !exists {
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeDeviceNotFound, "device not found", id))
		return
	}
	record, _ := mgr.GetDevice(id)

	c.JSON(http.StatusOK, gin.H{
		"view":   view,
		"record": record,
	})
}

// POST /api/v1/lights/:id/turn_on
func (s *Server) turnOnLight(c *gin.Context) {
	var req devices.TurnOnOptions
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeInvalidRequest, "invalid request body", err.Error()))
			return
		}
	}
	s.respond(c, s.session.Commander().TurnOn(c.Request.Context(), c.Param("id"), req))
}

// POST /api/v1/lights/:id/turn_off
func (s *Server) turnOffLight(c *gin.Context) {
	s.respond(c, s.session.Commander().TurnOff(c.Request.Context(), c.Param("id")))
}

// POST /api/v1/climates/:id/temperature
func (s *Server) setTemperature(c *gin.Context) {
	var req struct {
		Temperature *float64 `json:"temperature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeInvalidRequest, "temperature is required", err.Error()))
		return
	}
	s.respond(c, s.session.Commander().SetTemperature(c.Request.Context(), c.Param("id"), *req.Temperature))
}

func (s *Server) openCover(c *gin.Context) {
	s.respond(c, s.session.Commander().OpenCover(c.Request.Context(), c.Param("id")))
}

func (s *Server) closeCover(c *gin.Context) {
	s.respond(c, s.session.Commander().CloseCover(c.Request.Context(), c.Param("id")))
}

func (s *Server) stopCover(c *gin.Context) {
	s.respond(c, s.session.Commander().StopCover(c.Request.Context(), c.Param("id")))
}

// POST /api/v1/covers/:id/position
func (s *Server) setCoverPosition(c *gin.Context) {
	var req struct {
		Position *int `json:"position" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeInvalidRequest, "position is required", err.Error()))
		return
	}
	s.respond(c, s.session.Commander().SetCoverPosition(c.Request.Context(), c.Param("id"), *req.Position))
}

// POST /api/v1/covers/:id/tilt
func (s *Server) setCoverTilt(c *gin.Context) {
	var req struct {
		Tilt *int `json:"tilt" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeInvalidRequest, "tilt is required", err.Error()))
		return
	}
	s.respond(c, s.session.Commander().SetCoverTilt(c.Request.Context(), c.Param("id"), *req.Tilt))
}

// respond maps command errors onto status codes. Accepted only means the
// vendor took the write; the new state arrives through poll or push.
func (s *Server) respond(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	case errors.Is(err, devices.ErrDeviceNotFound):
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeDeviceNotFound, "device not found", c.Param("id")))
	case errors.Is(err, devices.ErrWrongKind), errors.Is(err, devices.ErrUnsupported):
		c.JSON(http.StatusUnprocessableEntity, types.NewErrorResponse(types.CodeUnsupported, err.Error(), nil))
	default:
		s.logger.Warn("Command failed", zap.String("device", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusBadGateway, types.NewErrorResponse(types.CodeVendorError, "vendor device rejected the write", err.Error()))
	}
}
