package mosques

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"

	"github.com/muazhazali/lepakmasjid/internal/api/respond"
	"github.com/muazhazali/lepakmasjid/internal/cache"
	"github.com/muazhazali/lepakmasjid/internal/export"
	"github.com/muazhazali/lepakmasjid/internal/models"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// multipartOverhead is allowed on top of the image limit for the form
// envelope and the JSON data field.
const multipartOverhead = 1 << 20

// mosqueForm is a decoded create or update request.
type mosqueForm struct {
	image       io.Reader
	deleteImage bool
}

// readForm decodes a mosque request into v. JSON bodies carry the fields
// directly and may set delete_image as a query parameter. Multipart bodies
// carry the fields as JSON in "data", an optional "image" file and an
// optional "delete_image" field.
func (h *Handlers) readForm(c *gin.Context, v any) (*mosqueForm, bool) {
	form := &mosqueForm{deleteImage: c.Query("delete_image") == "true"}

	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if !respond.BindJSON(c, v) {
			return nil, false
		}
		return form, true
	}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)
	}
	if err := c.Request.ParseMultipartForm(h.maxUpload + multipartOverhead); err != nil {
		respond.BadRequest(c, "Invalid form upload")
		return nil, false
	}
	data := c.Request.FormValue("data")
	if data == "" {
		data = "{}"
	}
	if err := codec.UnmarshalFromString(data, v); err != nil {
		respond.BadRequest(c, "Invalid mosque data")
		return nil, false
	}
	if b, err := strconv.ParseBool(c.Request.FormValue("delete_image")); err == nil {
		form.deleteImage = b
	}

	file, _, err := c.Request.FormFile("image")
	switch {
	case err == nil:
		form.image = readAll(file)
	case errors.Is(err, http.ErrMissingFile):
	default:
		respond.BadRequest(c, "Invalid image upload")
		return nil, false
	}
	return form, true
}

// readAll buffers an uploaded part so the multipart temp file can be closed
// before the service runs.
func readAll(f multipart.File) io.Reader {
	defer f.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return &errReader{err: err}
	}
	return &buf
}

type errReader struct{ err error }

func (r *errReader) Read([]byte) (int, error) { return 0, r.err }

// @Summary      List all mosques (admin)
// @Description  Every mosque regardless of status, newest first, with amenities attached.
// @Tags         Admin
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "items: []models.Mosque"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Failure      403  {object}  map[string]interface{}  "Forbidden"
// @Router       /api/v1/admin/mosques [get]
func (h *Handlers) AdminListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.mosques.ListAllAdmin(c.Request.Context())
		if err != nil {
			respond.Error(c, err)
			return
		}
		h.resolveImages(c.Request.Context(), items)
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// @Summary      Export mosques
// @Description  Every mosque as an XLSX workbook.
// @Tags         Admin
// @Security     Bearer
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200  {file}  binary
// @Router       /api/v1/admin/mosques/export [get]
func (h *Handlers) ExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.mosques.ListAllAdmin(c.Request.Context())
		if err != nil {
			respond.Error(c, err)
			return
		}
		data, err := export.MosquesXLSX(items)
		if err != nil {
			respond.Error(c, err)
			return
		}
		name := fmt.Sprintf("mosques-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
		c.Data(http.StatusOK, export.ContentTypeXLSX, data)
	}
}

// @Summary      Create mosque
// @Description  Accepts JSON, or multipart with a "data" JSON field and an optional "image" file.
// @Tags         Admin
// @Security     Bearer
// @Accept       json,mpfd
// @Produce      json
// @Success      201  {object}  models.Mosque
// @Failure      400  {object}  map[string]interface{}  "Invalid mosque data or image"
// @Router       /api/v1/admin/mosques [post]
func (h *Handlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.MosqueInput
		form, ok := h.readForm(c, &in)
		if !ok {
			return
		}
		m, err := h.mosques.Create(c.Request.Context(), in, form.image)
		if err != nil {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Mosques)
		one := []models.Mosque{*m}
		h.resolveImages(c.Request.Context(), one)
		c.JSON(http.StatusCreated, one[0])
	}
}

// @Summary      Update mosque
// @Description  Partial update. A new image replaces the stored one; delete_image=true removes it.
// @Tags         Admin
// @Security     Bearer
// @Accept       json,mpfd
// @Produce      json
// @Param        id  path  string  true  "Mosque ID"
// @Success      200  {object}  models.Mosque
// @Failure      404  {object}  map[string]interface{}  "Mosque not found"
// @Router       /api/v1/admin/mosques/{id} [patch]
func (h *Handlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var upd models.MosqueUpdate
		form, ok := h.readForm(c, &upd)
		if !ok {
			return
		}
		m, err := h.mosques.Update(c.Request.Context(), c.Param("id"), upd, form.image, form.deleteImage)
		if err != nil {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Mosques)
		one := []models.Mosque{*m}
		h.resolveImages(c.Request.Context(), one)
		c.JSON(http.StatusOK, one[0])
	}
}

// @Summary      Delete mosque
// @Tags         Admin
// @Security     Bearer
// @Param        id  path  string  true  "Mosque ID"
// @Success      204
// @Failure      404  {object}  map[string]interface{}  "Mosque not found"
// @Router       /api/v1/admin/mosques/{id} [delete]
func (h *Handlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.mosques.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respond.Error(c, err)
			return
		}
		h.cache.Invalidate(c.Request.Context(), cache.Mosques)
		c.Status(http.StatusNoContent)
	}
}
