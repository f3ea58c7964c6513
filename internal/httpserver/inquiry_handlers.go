package httpserver

import (
	"encoding/json"
	"net/http"

	"estatehub/internal/domain"
	"estatehub/internal/service"
)

func handleSubmitInquiry(svc *service.InquiryService, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.SubmitInquiryInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			errs.badRequest(w, r, "body", "invalid JSON body")
			return
		}
		if actor, ok := CurrentActor(r); ok {
			in.InquirerID = &actor.ID
		}

		inq, err := svc.SubmitInquiry(r.Context(), in)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, inq)
	}
}

func handleListReceivedInquiries(svc *service.InquiryService, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := CurrentActor(r)
		page, limit, field, ok := queryPage(r)
		if !ok {
			errs.badRequest(w, r, field, field+" must be a positive integer")
			return
		}
		f := service.ReceivedFilter{Page: page, PageSize: limit}
		if v := r.URL.Query().Get("status"); v != "" {
			status := domain.InquiryStatus(v)
			f.Status = &status
		}

		res, err := svc.ListReceived(r.Context(), actor.ID, f)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleListSentInquiries(svc *service.InquiryService, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := CurrentActor(r)
		page, limit, field, ok := queryPage(r)
		if !ok {
			errs.badRequest(w, r, field, field+" must be a positive integer")
			return
		}
		res, err := svc.ListSent(r.Context(), actor.ID, page, limit)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type statusUpdateRequest struct {
	Status domain.InquiryStatus `json:"status"`
}

func handleUpdateInquiryStatus(svc *service.InquiryService, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := CurrentActor(r)
		id, ok := pathID(r, "inquiryID")
		if !ok {
			errs.badRequest(w, r, "id", "invalid inquiry id")
			return
		}
		var req statusUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errs.badRequest(w, r, "body", "invalid JSON body")
			return
		}

		inq, err := svc.UpdateStatus(r.Context(), id, actor, req.Status)
		if err != nil {
			errs.write(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, inq)
	}
}

func handleDeleteInquiry(svc *service.InquiryService, errs errorWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := CurrentActor(r)
		id, ok := pathID(r, "inquiryID")
		if !ok {
			errs.badRequest(w, r, "id", "invalid inquiry id")
			return
		}
		if err := svc.Delete(r.Context(), id, actor); err != nil {
			errs.write(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
