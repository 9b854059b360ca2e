package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rohits-web03/lockbox/internal/api/services"
	"github.com/rohits-web03/lockbox/internal/filename"
	"github.com/rohits-web03/lockbox/internal/repositories"
	"github.com/rohits-web03/lockbox/internal/utils"
	"github.com/rs/zerolog"
)

// Error codes carried in Payload.Code.
const (
	CodeInvalidFilenameFormat = "InvalidFilenameFormat"
	CodeMissingFilename       = "MissingFilename"
	CodeMissingNamespace      = "MissingNamespace"
	CodeFileNotFound          = "FileNotFound"
	CodeInvalidRequest        = "InvalidRequest"
	CodeStorageError          = "StorageError"
	CodeRepositoryError       = "RepositoryError"
)

const (
	multipartMemory = 32 << 20
	maxTargetBody   = 1 << 20
)

type FileHandler struct {
	files         *services.FileService
	reconciler    *services.Reconciler
	maxUploadSize int64
	log           zerolog.Logger
}

func NewFileHandler(files *services.FileService, reconciler *services.Reconciler, maxUploadSize int64, log zerolog.Logger) *FileHandler {
	return &FileHandler{
		files:         files,
		reconciler:    reconciler,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// LockRequest is the body of /lock and /unlock. company_id and project_id
// are required when records are looked up by namespace.
type LockRequest struct {
	Filename  string `json:"filename"`
	CompanyID string `json:"company_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// POST /upload
// Upload godoc
// @Summary Upload a file
// @Description Stores the file under company/project/filename derived from its name and creates an unlocked record.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File named company_project_filename"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /upload [post]
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	upload, closeFile, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer closeFile()

	rec, err := h.files.Upload(r.Context(), upload)
	if err != nil {
		h.writeError(w, err, "File upload failed: ")
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "File uploaded successfully",
		Data:    rec,
	})
}

// POST /lock
// Lock godoc
// @Summary Lock a file
// @Description Marks the file as checked out. Locking a locked file succeeds.
// @Tags Files
// @Accept json
// @Produce json
// @Param request body LockRequest true "File to lock"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /lock [post]
func (h *FileHandler) Lock(w http.ResponseWriter, r *http.Request) {
	target, ok := h.readTarget(w, r)
	if !ok {
		return
	}

	rec, err := h.files.Lock(r.Context(), target)
	if err != nil {
		h.writeError(w, err, "Error: ")
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "File locked successfully",
		Data:    rec,
	})
}

// POST /unlock
// Unlock godoc
// @Summary Unlock a file
// @Description Clears the checkout flag. Unlocking an unlocked file succeeds.
// @Tags Files
// @Accept json
// @Produce json
// @Param request body LockRequest true "File to unlock"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /unlock [post]
func (h *FileHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	target, ok := h.readTarget(w, r)
	if !ok {
		return
	}

	rec, err := h.files.Unlock(r.Context(), target)
	if err != nil {
		h.writeError(w, err, "Error: ")
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "File unlocked successfully",
		Data:    rec,
	})
}

// POST /overwrite
// Overwrite godoc
// @Summary Overwrite a file
// @Description Replaces the content of an uploaded file and clears its lock.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File named company_project_filename"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /overwrite [post]
func (h *FileHandler) Overwrite(w http.ResponseWriter, r *http.Request) {
	upload, closeFile, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer closeFile()

	rec, err := h.files.Overwrite(r.Context(), upload)
	if err != nil {
		h.writeError(w, err, "Error: ")
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "File updated successfully",
		Data:    rec,
	})
}

// GET /reconcile
// Reconcile godoc
// @Summary Compare blob and record stores
// @Description Lists blobs without records, records without blobs and duplicate records.
// @Tags Maintenance
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /reconcile [get]
func (h *FileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.Scan(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("reconciliation failed")
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Error: " + err.Error(),
			Code:    CodeStorageError,
		})
		return
	}

	message := "Stores are consistent"
	if !report.Consistent() {
		message = "Stores are inconsistent"
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: message,
		Data:    report,
	})
}

func (h *FileHandler) readUpload(w http.ResponseWriter, r *http.Request) (services.Upload, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		message := "Invalid file upload form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = fmt.Sprintf("File exceeds %d bytes limit", h.maxUploadSize)
		}
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: message,
			Code:    CodeInvalidRequest,
		})
		return services.Upload{}, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "No file provided",
			Code:    CodeInvalidRequest,
		})
		return services.Upload{}, nil, false
	}

	return services.Upload{
		RawName:     header.Filename,
		Content:     file,
		Size:        header.Size,
		ContentType: contentType(header),
	}, func() { _ = file.Close() }, true
}

func contentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (h *FileHandler) readTarget(w http.ResponseWriter, r *http.Request) (services.Target, bool) {
	var input LockRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxTargetBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(&input)
	if errors.Is(err, io.EOF) {
		err = nil
	} else if err == nil && !errors.Is(dec.Decode(&json.RawMessage{}), io.EOF) {
		err = errors.New("trailing data after request body")
	}
	if err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid request body",
			Code:    CodeInvalidRequest,
		})
		return services.Target{}, false
	}

	return services.Target{
		Filename:  input.Filename,
		CompanyID: input.CompanyID,
		ProjectID: input.ProjectID,
	}, true
}

// writeError maps service errors to status codes. Store failures keep the
// source error text behind prefix.
func (h *FileHandler) writeError(w http.ResponseWriter, err error, prefix string) {
	var stepErr *services.StepError

	switch {
	case errors.Is(err, filename.ErrInvalidFilenameFormat):
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Message: "Invalid filename format",
			Code:    CodeInvalidFilenameFormat,
		})
	case errors.Is(err, services.ErrMissingFilename):
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Message: "Filename is required in the request body",
			Code:    CodeMissingFilename,
		})
	case errors.Is(err, services.ErrMissingNamespace):
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Message: "company_id and project_id are required in the request body",
			Code:    CodeMissingNamespace,
		})
	case errors.Is(err, repositories.ErrFileNotFound):
		utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
			Message: "File not found",
			Code:    CodeFileNotFound,
		})
	case errors.As(err, &stepErr):
		code := CodeRepositoryError
		if stepErr.BlobStep() {
			code = CodeStorageError
		}
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Message: prefix + stepErr.Err.Error(),
			Code:    code,
			Step:    stepErr.Step,
		})
	default:
		h.log.Error().Err(err).Msg("unexpected error")
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Message: prefix + err.Error(),
			Code:    CodeRepositoryError,
		})
	}
}
