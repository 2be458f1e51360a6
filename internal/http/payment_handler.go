package httpx

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/splax/gameportal/internal/domain"
	"github.com/splax/gameportal/internal/service/payment"
	"github.com/splax/gameportal/internal/service/upload"
)

const (
	msgPaymentSubmitted = "Payment proof submitted!"
	msgProofRequired    = "Proof image required"
	msgProofTooLarge    = "Proof image is too large"
	msgProofType        = "Proof must be a JPEG, PNG or WEBP image"
)

func (r *Router) handlePayment(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		r.render(w, req, http.StatusOK, "payment", page{Title: "Payment"})
	case http.MethodPost:
		r.submitPayment(w, req)
	default:
		r.methodNotAllowed(w, req)
	}
}

func (r *Router) handleSubmitPayment(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w, req)
		return
	}
	r.submitPayment(w, req)
}

func (r *Router) submitPayment(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+multipartOverhead)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, msgProofTooLarge)
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			writeError(w, http.StatusBadRequest, "invalid form payload")
			return
		}
	}
	if req.MultipartForm != nil {
		defer func() { _ = req.MultipartForm.RemoveAll() }()
	}

	in := payment.Input{
		Amount:    formValue(req, "amount"),
		Email:     formValue(req, "email"),
		CardNo:    formValue(req, "card", "details"),
		CardMonth: formValue(req, "month"),
		CVV:       formValue(req, "cvv"),
	}
	file, header, err := req.FormFile("proof")
	switch {
	case err == nil:
		defer file.Close()
		in.Proof = proofFile(file, header)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		writeError(w, http.StatusBadRequest, "invalid proof upload")
		return
	}

	user := userFromContext(req.Context())
	p, err := r.payments.Submit(req.Context(), user, in)
	if err != nil {
		r.writePaymentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msgPaymentSubmitted,
		"url":     p.ProofURL,
	})
}

func proofFile(file multipart.File, header *multipart.FileHeader) *upload.File {
	return &upload.File{Content: file, Size: header.Size, Name: header.Filename}
}

func (r *Router) writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingAttachment):
		writeError(w, http.StatusBadRequest, msgProofRequired)
	case errors.Is(err, domain.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, msgProofTooLarge)
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		writeError(w, http.StatusUnsupportedMediaType, msgProofType)
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   err.Error(),
			"fields":  validationFields(err),
		})
	default:
		r.logger.Error("payment submission failed", "error", err)
		writeError(w, http.StatusInternalServerError, "payment could not be recorded")
	}
}
