package handler

import (
	"net/http"
	"time"

	"github.com/xenking/extraweb/internal/domain/testimonial"
)

// testimonialBody is used for both create and partial update; nil fields
// keep their current value on update.
type testimonialBody struct {
	ClientName          *string `json:"clientName"`
	ClientNameBn        *string `json:"clientNameBn"`
	CompanyName         *string `json:"companyName"`
	CompanyNameBn       *string `json:"companyNameBn"`
	Title               *string `json:"title"`
	TitleBn             *string `json:"titleBn"`
	Type                *string `json:"type" validate:"omitempty,oneof=testimonial review"`
	VideoID             *string `json:"videoId"`
	Description         *string `json:"description"`
	DescriptionBn       *string `json:"descriptionBn"`
	ClientImage         *string `json:"clientImage" validate:"omitempty,url"`
	ClientDesignation   *string `json:"clientDesignation"`
	ClientDesignationBn *string `json:"clientDesignationBn"`
	Rating              *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Status              *string `json:"status" validate:"omitempty,oneof=pending approved rejected"`
	IsFeatured          *bool   `json:"isFeatured"`
	Order               *int    `json:"order"`
}

func (b *testimonialBody) apply(t *testimonial.Testimonial) {
	set(&t.ClientName, b.ClientName)
	set(&t.ClientNameBn, b.ClientNameBn)
	set(&t.CompanyName, b.CompanyName)
	set(&t.CompanyNameBn, b.CompanyNameBn)
	set(&t.Title, b.Title)
	set(&t.TitleBn, b.TitleBn)
	if b.Type != nil {
		t.Type = testimonial.Type(*b.Type)
	}
	set(&t.VideoID, b.VideoID)
	set(&t.Description, b.Description)
	set(&t.DescriptionBn, b.DescriptionBn)
	set(&t.ClientImage, b.ClientImage)
	set(&t.ClientDesignation, b.ClientDesignation)
	set(&t.ClientDesignationBn, b.ClientDesignationBn)
	set(&t.Rating, b.Rating)
	if b.Status != nil {
		t.Status = testimonial.Status(*b.Status)
	}
	set(&t.IsFeatured, b.IsFeatured)
	set(&t.Order, b.Order)
}

func (h *Handler) createTestimonial(w http.ResponseWriter, r *http.Request) {
	var body testimonialBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	var t testimonial.Testimonial
	body.apply(&t)
	if err := h.Testimonials.Create(r.Context(), &t); err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusCreated, "Testimonial created successfully", testimonialView(&t), nil)
}

func (h *Handler) listTestimonials(w http.ResponseWriter, r *http.Request) {
	featured, err := boolQuery(r, "isFeatured")
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	q := r.URL.Query()
	f := testimonial.Filter{
		Search:     q.Get("searchTerm"),
		Type:       testimonial.Type(q.Get("type")),
		Status:     testimonial.Status(q.Get("status")),
		IsFeatured: featured,
		SortBy:     q.Get("sortBy"),
		Desc:       q.Get("sortOrder") == "desc",
	}
	items, meta, err := h.Testimonials.List(r.Context(), f, pageParams(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Testimonials retrieved successfully", testimonialViews(items), &meta)
}

func (h *Handler) publicTestimonials(w http.ResponseWriter, r *http.Request) {
	items, err := h.Testimonials.Public(r.Context(), testimonial.Type(r.URL.Query().Get("type")))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Testimonials retrieved successfully", testimonialViews(items), nil)
}

func (h *Handler) getTestimonial(w http.ResponseWriter, r *http.Request) {
	t, err := h.Testimonials.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Testimonial retrieved successfully", testimonialView(t), nil)
}

func (h *Handler) updateTestimonial(w http.ResponseWriter, r *http.Request) {
	var body testimonialBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	t, err := h.Testimonials.Update(r.Context(), r.PathValue("id"), body.apply)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Testimonial updated successfully", testimonialView(t), nil)
}

func (h *Handler) deleteTestimonial(w http.ResponseWriter, r *http.Request) {
	if err := h.Testimonials.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Testimonial deleted successfully", nil, nil)
}

type testimonialStatusBody struct {
	Status string `json:"status" validate:"required,oneof=pending approved rejected"`
}

func (h *Handler) setTestimonialStatus(w http.ResponseWriter, r *http.Request) {
	var body testimonialStatusBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	t, err := h.Testimonials.SetStatus(r.Context(), r.PathValue("id"), testimonial.Status(body.Status))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Testimonial status updated successfully", testimonialView(t), nil)
}

func (h *Handler) toggleTestimonialFeatured(w http.ResponseWriter, r *http.Request) {
	t, err := h.Testimonials.ToggleFeatured(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	msg := "Testimonial unfeatured"
	if t.IsFeatured {
		msg = "Testimonial featured"
	}
	reply(w, r, http.StatusOK, msg, testimonialView(t), nil)
}

type testimonialJSON struct {
	ID                  string    `json:"id"`
	ClientName          string    `json:"clientName"`
	ClientNameBn        string    `json:"clientNameBn,omitempty"`
	CompanyName         string    `json:"companyName"`
	CompanyNameBn       string    `json:"companyNameBn,omitempty"`
	Title               string    `json:"title"`
	TitleBn             string    `json:"titleBn,omitempty"`
	Type                string    `json:"type"`
	VideoID             string    `json:"videoId"`
	Description         string    `json:"description,omitempty"`
	DescriptionBn       string    `json:"descriptionBn,omitempty"`
	ClientImage         string    `json:"clientImage,omitempty"`
	ClientDesignation   string    `json:"clientDesignation,omitempty"`
	ClientDesignationBn string    `json:"clientDesignationBn,omitempty"`
	Rating              int       `json:"rating"`
	Status              string    `json:"status"`
	IsFeatured          bool      `json:"isFeatured"`
	Order               int       `json:"order"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func testimonialView(t *testimonial.Testimonial) testimonialJSON {
	return testimonialJSON{
		ID:                  t.ID,
		ClientName:          t.ClientName,
		ClientNameBn:        t.ClientNameBn,
		CompanyName:         t.CompanyName,
		CompanyNameBn:       t.CompanyNameBn,
		Title:               t.Title,
		TitleBn:             t.TitleBn,
		Type:                string(t.Type),
		VideoID:             t.VideoID,
		Description:         t.Description,
		DescriptionBn:       t.DescriptionBn,
		ClientImage:         t.ClientImage,
		ClientDesignation:   t.ClientDesignation,
		ClientDesignationBn: t.ClientDesignationBn,
		Rating:              t.Rating,
		Status:              string(t.Status),
		IsFeatured:          t.IsFeatured,
		Order:               t.Order,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

func testimonialViews(items []testimonial.Testimonial) []testimonialJSON {
	out := make([]testimonialJSON, 0, len(items))
	for i := range items {
		out = append(out, testimonialView(&items[i]))
	}
	return out
}
