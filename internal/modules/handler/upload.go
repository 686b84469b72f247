package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zhaocg/app-download-center/internal/infra/storage"
	"github.com/zhaocg/app-download-center/internal/modules/serializer"
	"github.com/zhaocg/app-download-center/internal/modules/service"
	"github.com/zhaocg/app-download-center/internal/pkg/utils/pathutil"
)

type UploadHandler struct {
	svc service.UploadService
}

func NewUploadHandler(s service.UploadService) *UploadHandler {
	return &UploadHandler{svc: s}
}

type UploadReq struct {
	ProjectName  string `form:"projectName"`
	Version      string `form:"version"`
	BuildNumber  string `form:"buildNumber"`
	Channel      string `form:"channel"`
	ResVersion   string `form:"resVersion"`
	AreaName     string `form:"areaName"`
	Branch       string `form:"branch"`
	Rbranch      string `form:"rbranch"`
	SDK          string `form:"sdk"`
	Harden       string `form:"harden"`
	CodeSignType string `form:"codeSignType"`
	AppID        string `form:"appId"`
}

// Upload godoc
//
//	@Summary		Upload artifact
//	@Description	Upload an APK/IPA build artifact with its metadata
//	@Tags			file
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"APK or IPA payload"
//	@Param			projectName	formData	string	true	"Project name"
//	@Param			version		formData	string	true	"Version"
//	@Param			buildNumber	formData	string	true	"Build number"
//	@Param			channel		formData	string	true	"Release channel"
//	@Success		200	{object}	serializer.Response{data=model.FileRecord}
//	@Router			/api/upload [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	req := UploadReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("file is required", err))
		return
	}

	// Park the payload in a temp file; the pipeline moves or discards it.
	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("upload-%d-%s", time.Now().UnixNano(), uuid.NewString()))
	if err := c.SaveUploadedFile(fileHeader, tempPath); err != nil {
		c.JSON(http.StatusInternalServerError, serializer.StorageErr("failed to receive upload", err))
		return
	}

	rec, err := h.svc.Upload(c.Request.Context(), service.UploadInput{
		ProjectName:  req.ProjectName,
		Version:      req.Version,
		BuildNumber:  req.BuildNumber,
		Channel:      req.Channel,
		FileName:     fileHeader.Filename,
		TempPath:     tempPath,
		Size:         fileHeader.Size,
		ResVersion:   req.ResVersion,
		AreaName:     req.AreaName,
		Branch:       req.Branch,
		Rbranch:      req.Rbranch,
		SDK:          req.SDK,
		Harden:       parseBool(req.Harden),
		CodeSignType: req.CodeSignType,
		AppID:        req.AppID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingField):
			c.JSON(http.StatusBadRequest, serializer.ParamErr("projectName, version, buildNumber and channel are required", err))
		case errors.Is(err, pathutil.ErrUnsupportedExt):
			c.JSON(http.StatusBadRequest, serializer.ParamErr("only APK or IPA files are supported", err))
		case errors.Is(err, pathutil.ErrEmptySegment), errors.Is(err, pathutil.ErrInvalidSegment):
			c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid project metadata", err))
		case errors.Is(err, service.ErrSizeMismatch):
			c.JSON(http.StatusBadRequest, serializer.ParamErr("upload was truncated, please retry", err))
		case errors.Is(err, storage.ErrWriteFailed):
			c.JSON(http.StatusInternalServerError, serializer.StorageErr("", err))
		default:
			c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		}
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: rec})
}

func parseBool(v string) bool {
	switch v {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
