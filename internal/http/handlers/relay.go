package handlers

import (
	"errors"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/fashionlens/fashion-lens-be/internal/http/respond"
	"github.com/fashionlens/fashion-lens-be/internal/middleware"
	"github.com/fashionlens/fashion-lens-be/internal/models/dto"
	"github.com/fashionlens/fashion-lens-be/internal/relay"
)

// RelayOptions bounds request sizes and names anonymous uploaders.
type RelayOptions struct {
	MaxUploadBytes  int64
	AnonymousUserID string
}

// RelayHandler exposes the upload, recommendation and try-on relays.
type RelayHandler struct {
	uploader    *relay.Uploader
	recommender *relay.Recommender
	tryOn       *relay.TryOn
	authn       *middleware.Authenticator
	opts        RelayOptions
}

func NewRelayHandler(uploader *relay.Uploader, recommender *relay.Recommender, tryOn *relay.TryOn, authn *middleware.Authenticator, opts RelayOptions) *RelayHandler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if opts.AnonymousUserID == "" {
		opts.AnonymousUserID = "anonymous"
	}
	return &RelayHandler{uploader: uploader, recommender: recommender, tryOn: tryOn, authn: authn, opts: opts}
}

// Register attaches relay routes to the mux under prefix.
func (h *RelayHandler) Register(mux *http.ServeMux, prefix string) {
	mux.Handle(prefix+"/upload", h.authn.OptionalUser(http.HandlerFunc(h.handleUpload)))
	mux.HandleFunc(prefix+"/recommend", h.handleRecommend)
	mux.HandleFunc(prefix+"/tryon", h.handleTryOn)
}

func (h *RelayHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	file, header, ok := h.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	if err := h.uploader.Accepts(header.Filename); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := h.opts.AnonymousUserID
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		userID = user.ID
	}
	result, err := h.uploader.Upload(r.Context(), relay.UploadInput{
		UserID:    userID,
		ModelType: r.FormValue("model_type"),
		Filename:  header.Filename,
		Body:      file,
	})
	if err != nil {
		if relay.IsClientError(err) {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("upload error: %v", err)
		respond.ErrorDetails(w, http.StatusInternalServerError, "internal server error", err.Error())
		return
	}
	respond.Raw(w, http.StatusOK, result)
}

func (h *RelayHandler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	file, header, ok := h.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	if err := h.recommender.Accepts(header.Filename); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	images, err := h.recommender.Recommend(r.Context(), header.Filename, file)
	if err != nil {
		if relay.IsClientError(err) {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("recommendation error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "error processing image recommendation")
		return
	}
	respond.Bare(w, http.StatusOK, dto.RecommendResponse{RecommendedImages: images})
}

func (h *RelayHandler) handleTryOn(w http.ResponseWriter, r *http.Request) {
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	var req dto.TryOnRequest
	if err := decodeJSON(w, r, h.opts.MaxUploadBytes, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	image, err := h.tryOn.Compose(r.Context(), req.HumanBase64, req.GarmentBase64)
	if err != nil {
		if relay.IsClientError(err) {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("tryon error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "try-on failed, see server logs for details")
		return
	}
	respond.Bare(w, http.StatusOK, dto.TryOnResponse{VTONImage: image})
}

// formFile parses the multipart body entirely in memory (the body limit equals
// the memory limit) and returns the "file" part.
func (h *RelayHandler) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "file too large")
			return nil, nil, false
		}
		respond.Error(w, http.StatusBadRequest, relay.ErrNoFile.Error())
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, relay.ErrNoFile.Error())
		return nil, nil, false
	}
	return file, header, true
}
