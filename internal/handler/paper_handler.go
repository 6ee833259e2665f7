package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pastpapers/internal/domain"
	"pastpapers/internal/repository"
	"pastpapers/internal/service"

	"github.com/gin-gonic/gin"
)

type PaperHandler struct {
	svc      *service.PaperService
	audit    *service.AuditService
	maxBytes int64
}

func NewPaperHandler(svc *service.PaperService, audit *service.AuditService, maxBytes int64) *PaperHandler {
	return &PaperHandler{svc: svc, audit: audit, maxBytes: maxBytes}
}

type PaperRequest struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	Grade       string `json:"grade" form:"grade"`
	Subject     string `json:"subject" form:"subject"`
	Price       int64  `json:"price" form:"price"`
}

func (r PaperRequest) input() service.PaperInput {
	return service.PaperInput{
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Grade:       strings.TrimSpace(r.Grade),
		Subject:     strings.TrimSpace(r.Subject),
		Price:       r.Price,
	}
}

func (h *PaperHandler) List(c *gin.Context) {
	papers, err := h.svc.List(c.Request.Context(), repository.PaperFilter{
		Grade:   c.Query("grade"),
		Subject: c.Query("subject"),
	})
	if err != nil {
		internalError(c, "failed to fetch past papers", err)
		return
	}
	c.JSON(http.StatusOK, papers)
}

func (h *PaperHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPaperNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "past paper not found"})
			return
		}
		internalError(c, "failed to fetch past paper", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create takes a multipart form with the paper fields and an optional PDF "file".
func (h *PaperHandler) Create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	var req PaperRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var upload *service.Upload
	fh, err := c.FormFile("file")
	switch {
	case err == nil:
		if fh.Size > h.maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds the upload limit"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}
		defer f.Close()
		content, err := pdfReader(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		upload = &service.Upload{FileName: fh.Filename, Content: content}
	case !errors.Is(err, http.ErrMissingFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	p, err := h.svc.Create(c.Request.Context(), req.input(), upload)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPaper) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		internalError(c, "failed to create past paper", err)
		return
	}
	entry := auditEntry(c)
	entry.Action = domain.AuditPaperCreated
	entry.Resource = "past_paper"
	entry.ResourceID = strconv.FormatUint(uint64(p.ID), 10)
	h.audit.Record(c.Request.Context(), entry)
	c.JSON(http.StatusCreated, p)
}

func (h *PaperHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req PaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.Update(c.Request.Context(), id, req.input())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPaper):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrPaperNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "past paper not found"})
		default:
			internalError(c, "failed to update past paper", err)
		}
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PaperHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrPaperNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "past paper not found"})
			return
		}
		internalError(c, "failed to delete past paper", err)
		return
	}
	entry := auditEntry(c)
	entry.Action = domain.AuditPaperDeleted
	entry.Resource = "past_paper"
	entry.ResourceID = strconv.FormatUint(uint64(id), 10)
	h.audit.Record(c.Request.Context(), entry)
	c.Status(http.StatusNoContent)
}

// pdfReader checks the content is a PDF and returns a reader over all of it.
func pdfReader(r io.Reader) (io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, errors.New("could not read file")
	}
	head = head[:n]
	if http.DetectContentType(head) != "application/pdf" {
		return nil, errors.New("only PDF files are allowed")
	}
	return io.MultiReader(bytes.NewReader(head), r), nil
}
