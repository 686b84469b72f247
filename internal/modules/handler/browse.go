package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zhaocg/app-download-center/internal/modules/repo"
	"github.com/zhaocg/app-download-center/internal/modules/serializer"
	"github.com/zhaocg/app-download-center/internal/modules/service"
)

type BrowseHandler struct {
	browse service.BrowseService
	files  service.FileService
}

func NewBrowseHandler(browse service.BrowseService, files service.FileService) *BrowseHandler {
	return &BrowseHandler{browse: browse, files: files}
}

type BrowseReq struct {
	Project   string `form:"project"`
	Version   string `form:"version"`
	Channel   string `form:"channel"`
	SortField string `form:"sortField,default=uploadedAt"`
	SortOrder string `form:"sortOrder,default=desc"`
}

// Browse godoc
//
//	@Summary		Browse artifacts
//	@Description	Hierarchical view: projects, then versions, then channels, then files
//	@Tags			browse
//	@Produce		json
//	@Param			project		query	string	false	"Project name"
//	@Param			version		query	string	false	"Version"
//	@Param			channel		query	string	false	"Channel"
//	@Param			sortField	query	string	false	"name | size | uploadedAt"
//	@Param			sortOrder	query	string	false	"asc | desc"
//	@Success		200	{object}	serializer.Response{data=service.BrowseResult}
//	@Router			/api/browse [get]
func (h *BrowseHandler) Browse(c *gin.Context) {
	req := BrowseReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	result, err := h.browse.Browse(c.Request.Context(), service.BrowseQuery{
		Project: req.Project,
		Version: req.Version,
		Channel: req.Channel,
		Field:   sortField(req.SortField),
		Order:   sortOrder(req.SortOrder),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: result})
}

// Projects godoc
//
//	@Summary		List projects
//	@Description	Distinct project names in locale-aware order
//	@Tags			browse
//	@Produce		json
//	@Success		200	{object}	serializer.Response{data=[]string}
//	@Router			/api/projects [get]
func (h *BrowseHandler) Projects(c *gin.Context) {
	projects, err := h.files.Projects(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: projects})
}

type RecentUploadsReq struct {
	Project string `form:"project"`
	Limit   int    `form:"limit,default=50"`
}

// RecentUploads godoc
//
//	@Summary		Recent uploads
//	@Description	Most recent uploads, newest first, optionally scoped to a project
//	@Tags			browse
//	@Produce		json
//	@Param			project	query	string	false	"Project name"
//	@Param			limit	query	int		false	"Max records (default 50, cap 200)"
//	@Success		200	{object}	serializer.Response{data=[]model.FileRecord}
//	@Router			/api/uploads [get]
func (h *BrowseHandler) RecentUploads(c *gin.Context) {
	req := RecentUploadsReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	items, err := h.files.RecentUploads(c.Request.Context(), req.Project, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: items})
}

func sortField(v string) repo.SortField {
	switch v {
	case "name":
		return repo.SortByName
	case "size":
		return repo.SortBySize
	default:
		return repo.SortByUploadedAt
	}
}

func sortOrder(v string) repo.SortOrder {
	if v == "asc" {
		return repo.OrderAsc
	}
	return repo.OrderDesc
}
