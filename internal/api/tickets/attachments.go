package tickets

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/helporbit/helporbit/internal/api/respond"
	"github.com/helporbit/helporbit/internal/middleware"
	"github.com/helporbit/helporbit/internal/services"
)

// ListAttachmentsHandler returns a ticket's attachments
// GET /api/v1/orgs/:slug/tickets/:id/attachments
func (h *Handlers) ListAttachmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		atts, err := h.tickets.ListAttachments(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"attachments": atts})
	}
}

// UploadAttachmentHandler stores the multipart part named "file". The part
// is streamed to the storage backend without buffering the whole upload.
// POST /api/v1/orgs/:slug/tickets/:id/attachments
func (h *Handlers) UploadAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.maxUploadBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
		}
		mr, err := c.Request.MultipartReader()
		if err != nil {
			respond.BadRequest(c, "Expected a multipart/form-data body")
			return
		}

		part, err := filePart(mr)
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				respond.Fail(c, http.StatusRequestEntityTooLarge, string(services.CodeValidation),
					fmt.Sprintf("File must be at most %d MB", h.maxUploadBytes>>20))
				return
			}
			respond.BadRequest(c, "Multipart field \"file\" is required")
			return
		}
		defer part.Close()

		att, err := h.tickets.UploadAttachment(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id"), services.UploadInput{
			FileName:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Size:        -1,
			Body:        part,
		})
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.Created(c, gin.H{"attachment": att})
	}
}

// filePart advances mr to the first part named "file" that carries a file
// name. Other parts are skipped.
func filePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("file part missing")
			}
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

// GetAttachmentHandler returns attachment metadata with a download URL.
// Backends that cannot sign URLs get the API's own download route.
// GET /api/v1/orgs/:slug/tickets/:id/attachments/:attachmentId
func (h *Handlers) GetAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		att, url, err := h.tickets.AttachmentURL(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id"), c.Param("attachmentId"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		if url == "" {
			url = c.Request.URL.Path + "/download"
		}
		respond.OK(c, gin.H{"attachment": att, "url": url})
	}
}

// DownloadAttachmentHandler streams an attachment's content
// GET /api/v1/orgs/:slug/tickets/:id/attachments/:attachmentId/download
func (h *Handlers) DownloadAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		att, rc, err := h.tickets.OpenAttachment(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id"), c.Param("attachmentId"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		defer rc.Close()

		c.DataFromReader(http.StatusOK, att.SizeBytes, att.ContentType, rc, map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", att.FileName),
		})
	}
}

// DeleteAttachmentHandler removes an attachment and its stored file
// DELETE /api/v1/orgs/:slug/tickets/:id/attachments/:attachmentId
func (h *Handlers) DeleteAttachmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.tickets.DeleteAttachment(c.Request.Context(), middleware.ActorFrom(c), orgID(c), c.Param("id"), c.Param("attachmentId"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, gin.H{"message": "Attachment deleted"})
	}
}
