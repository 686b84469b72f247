package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zhaocg/app-download-center/internal/modules/serializer"
	"github.com/zhaocg/app-download-center/internal/modules/service"
)

type FileHandler struct {
	svc     service.FileService
	baseURL string
}

func NewFileHandler(s service.FileService, baseURL string) *FileHandler {
	return &FileHandler{svc: s, baseURL: strings.TrimRight(baseURL, "/")}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Query("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("id is required", err))
		return uuid.Nil, false
	}
	return id, true
}

// Download godoc
//
//	@Summary		Download artifact
//	@Description	Stream an artifact's bytes by record id
//	@Tags			file
//	@Produce		octet-stream
//	@Param			id	query	string	true	"Record ID"	Format(uuid)
//	@Success		200	{file}	binary
//	@Router			/api/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	dl, err := h.svc.OpenDownload(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("file not found", err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.StorageErr("failed to read file", err))
		return
	}
	defer dl.File.Close()

	c.DataFromReader(http.StatusOK, dl.Size, dl.ContentType, dl.File, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, url.PathEscape(dl.FileName)),
	})
}

type FileIDReq struct {
	ID string `json:"id" binding:"required"`
}

// Delete godoc
//
//	@Summary		Delete artifact
//	@Description	Remove one artifact's bytes and metadata record
//	@Tags			file
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.FileIDReq	true	"Record ID"
//	@Success		200	{object}	serializer.Response{}
//	@Router			/api/file [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	req := FileIDReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid id", err))
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("file not found", err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}

	c.JSON(http.StatusOK, serializer.Response{})
}

type ShareResp struct {
	ShareID string `json:"shareId"`
	URL     string `json:"url"`
}

// Share godoc
//
//	@Summary		Share artifact
//	@Description	Assign (idempotently) a public share token and return its URL
//	@Tags			file
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	handler.FileIDReq	true	"Record ID"
//	@Success		200	{object}	serializer.Response{data=handler.ShareResp}
//	@Router			/api/share [post]
func (h *FileHandler) Share(c *gin.Context) {
	req := FileIDReq{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid id", err))
		return
	}

	shareID, err := h.svc.Share(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("file not found", err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: ShareResp{
		ShareID: shareID,
		URL:     fmt.Sprintf("%s/share/%s", h.baseURL, shareID),
	}})
}

// ResolveShare godoc
//
//	@Summary		Resolve share token
//	@Description	Public, unauthenticated lookup of a record by its share token
//	@Tags			file
//	@Produce		json
//	@Param			shareId	path	string	true	"Share token"
//	@Success		200	{object}	serializer.Response{data=model.FileRecord}
//	@Router			/share/{shareId} [get]
func (h *FileHandler) ResolveShare(c *gin.Context) {
	shareID := c.Param("shareId")
	if shareID == "" {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("shareId is required", nil))
		return
	}

	rec, err := h.svc.GetByShareID(c.Request.Context(), shareID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("share not found", err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: rec})
}

// Icon godoc
//
//	@Summary		Artifact icon
//	@Description	Serve the cached app icon, extracting it on first request
//	@Tags			file
//	@Produce		png
//	@Param			id	query	string	true	"Record ID"	Format(uuid)
//	@Success		200	{file}	binary
//	@Router			/api/icon [get]
func (h *FileHandler) Icon(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	icon, err := h.svc.Icon(c.Request.Context(), id)
	if err != nil {
		// Missing record and missing icon both leave the fallback to the client.
		c.Status(http.StatusNotFound)
		return
	}

	// Icons are stored as data URLs; strip the prefix before decoding.
	if i := strings.IndexByte(icon, ','); i >= 0 {
		icon = icon[i+1:]
	}
	buf, err := base64.StdEncoding.DecodeString(icon)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000")
	c.Data(http.StatusOK, "image/png", buf)
}

// Manifest godoc
//
//	@Summary		iOS install manifest
//	@Description	OTA install plist for an iOS artifact with an appId
//	@Tags			file
//	@Produce		xml
//	@Param			id	query	string	true	"Record ID"	Format(uuid)
//	@Success		200	{string}	string
//	@Router			/api/ios/manifest [get]
func (h *FileHandler) Manifest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	xmlBody, err := h.svc.Manifest(c.Request.Context(), id, h.baseURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("file not found", err))
		case errors.Is(err, service.ErrManifestUnavailable):
			c.JSON(http.StatusBadRequest, serializer.ParamErr("install manifest requires an ios artifact with an appId", err))
		default:
			c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		}
		return
	}

	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(xmlBody))
}
