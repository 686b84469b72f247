package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zhaocg/app-download-center/internal/modules/serializer"
	"github.com/zhaocg/app-download-center/internal/modules/service"
)

type MaintenanceHandler struct {
	svc service.MaintenanceService
}

func NewMaintenanceHandler(s service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{svc: s}
}

type CleanupReq struct {
	Limit int `json:"limit"`
}

// Cleanup godoc
//
//	@Summary		Remove orphan records
//	@Description	Scan the oldest index records and drop those whose backing file is gone
//	@Tags			maintenance
//	@Accept			json
//	@Produce		json
//	@Param			X-Cleanup-Token	header	string	true	"Maintenance token"
//	@Param			payload	body	handler.CleanupReq	false	"Scan window"
//	@Success		200	{object}	serializer.Response{data=service.CleanupResult}
//	@Router			/api/cleanup [post]
func (h *MaintenanceHandler) Cleanup(c *gin.Context) {
	req := CleanupReq{}
	// An empty body means "use the default window".
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	res, err := h.svc.Cleanup(c.Request.Context(), req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: res})
}

type ClearReq struct {
	Mode        string `json:"mode" binding:"required"`
	Before      string `json:"before"`
	ProjectName string `json:"projectName"`
	Version     string `json:"version"`
	DryRun      bool   `json:"dryRun"`
}

// Clear godoc
//
//	@Summary		Bulk erase
//	@Description	Erase artifacts by age, project, project+version, or sweep empty directories, with a dry-run preview
//	@Tags			maintenance
//	@Accept			json
//	@Produce		json
//	@Param			X-Cleanup-Token	header	string	true	"Maintenance token"
//	@Param			payload	body	handler.ClearReq	true	"Erase selector"
//	@Success		200	{object}	serializer.Response{data=service.ClearResult}
//	@Router			/api/clear [post]
func (h *MaintenanceHandler) Clear(c *gin.Context) {
	req := ClearReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	var before *time.Time
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ParamErr("before must be RFC3339", err))
			return
		}
		before = &t
	}

	res, err := h.svc.Clear(c.Request.Context(), service.ClearRequest{
		Mode:        service.ClearMode(req.Mode),
		Before:      before,
		ProjectName: req.ProjectName,
		Version:     req.Version,
		DryRun:      req.DryRun,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidFilter) {
			c.JSON(http.StatusBadRequest, serializer.ParamErr(err.Error(), err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: res})
}
