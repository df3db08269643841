package handler

import (
	"net/http"
	"time"

	"github.com/xenking/extraweb/internal/domain/customization"
)

type customizationItemBody struct {
	SectionName  string   `json:"sectionName" validate:"required"`
	EditType     string   `json:"editType" validate:"omitempty,oneof=text image design functionality contact other"`
	Description  string   `json:"description"`
	Images       []string `json:"images"`
	CurrentValue string   `json:"currentValue"`
	NewValue     string   `json:"newValue"`
}

func itemsFromBody(in []customizationItemBody) []customization.Item {
	out := make([]customization.Item, 0, len(in))
	for _, it := range in {
		out = append(out, customization.Item{
			SectionName:  it.SectionName,
			EditType:     customization.EditType(it.EditType),
			Description:  it.Description,
			Images:       it.Images,
			CurrentValue: it.CurrentValue,
			NewValue:     it.NewValue,
		})
	}
	return out
}

type createCustomizationBody struct {
	OrderID      string                  `json:"orderId" validate:"required"`
	WebsiteID    string                  `json:"websiteId" validate:"required"`
	WebsiteTitle string                  `json:"websiteTitle" validate:"required"`
	Priority     string                  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	RequestItems []customizationItemBody `json:"requestItems" validate:"required,min=1,dive"`
}

func (h *Handler) createCustomization(w http.ResponseWriter, r *http.Request) {
	var body createCustomizationBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	req, err := h.Customization.Create(r.Context(), customization.CreateInput{
		UserID:       principal(r).UserID,
		OrderID:      body.OrderID,
		WebsiteID:    body.WebsiteID,
		WebsiteTitle: body.WebsiteTitle,
		Priority:     customization.Priority(body.Priority),
		Items:        itemsFromBody(body.RequestItems),
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusCreated, "Customization request submitted successfully", customizationView(req), nil)
}

func (h *Handler) listMyCustomizations(w http.ResponseWriter, r *http.Request) {
	status := customization.Status(r.URL.Query().Get("status"))
	items, meta, err := h.Customization.ListMine(r.Context(), principal(r).UserID, status, pageParams(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Customization requests retrieved successfully", customizationViews(items), &meta)
}

func (h *Handler) getCustomization(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	owner := p.UserID
	if p.IsAdmin() {
		owner = ""
	}
	req, err := h.Customization.Get(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Customization request retrieved successfully", customizationView(req), nil)
}

type addCustomizationItemsBody struct {
	Items []customizationItemBody `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) addCustomizationItems(w http.ResponseWriter, r *http.Request) {
	var body addCustomizationItemsBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	req, err := h.Customization.AddItems(r.Context(), r.PathValue("id"), principal(r).UserID, itemsFromBody(body.Items))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Request items added successfully", customizationView(req), nil)
}

type customizationListJSON struct {
	Requests []customizationJSON        `json:"requests"`
	Counts   customization.StatusCounts `json:"statusCounts"`
}

func (h *Handler) listAllCustomizations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := customization.Filter{
		Status:   customization.Status(q.Get("status")),
		Priority: customization.Priority(q.Get("priority")),
		Search:   q.Get("searchTerm"),
	}
	items, meta, counts, err := h.Customization.ListAll(r.Context(), f, pageParams(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	out := customizationListJSON{Requests: customizationViews(items), Counts: counts}
	reply(w, r, http.StatusOK, "Customization requests retrieved successfully", out, &meta)
}

type toggleItemBody struct {
	IsCompleted bool   `json:"isCompleted"`
	AdminNote   string `json:"adminNote"`
}

func (h *Handler) toggleCustomizationItem(w http.ResponseWriter, r *http.Request) {
	n, err := intPath(r, "number")
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var body toggleItemBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	req, err := h.Customization.ToggleItem(r.Context(), r.PathValue("id"), n, body.IsCompleted, body.AdminNote)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	msg := "Item marked as incomplete"
	if body.IsCompleted {
		msg = "Item marked as completed"
	}
	reply(w, r, http.StatusOK, msg, customizationView(req), nil)
}

type updateCustomizationBody struct {
	Status       string `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	Priority     string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	AdminMessage string `json:"adminMessage"`
}

func (h *Handler) updateCustomization(w http.ResponseWriter, r *http.Request) {
	var body updateCustomizationBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	req, err := h.Customization.Update(r.Context(), r.PathValue("id"), customization.UpdateInput{
		Status:       customization.Status(body.Status),
		Priority:     customization.Priority(body.Priority),
		AdminMessage: body.AdminMessage,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Customization request updated successfully", customizationView(req), nil)
}

func (h *Handler) completeCustomization(w http.ResponseWriter, r *http.Request) {
	req, err := h.Customization.CompleteAll(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "All items marked as completed", customizationView(req), nil)
}

type customizationItemJSON struct {
	Number       int        `json:"itemNumber"`
	SectionName  string     `json:"sectionName"`
	EditType     string     `json:"editType"`
	Description  string     `json:"description,omitempty"`
	Images       []string   `json:"images,omitempty"`
	CurrentValue string     `json:"currentValue,omitempty"`
	NewValue     string     `json:"newValue,omitempty"`
	IsCompleted  bool       `json:"isCompleted"`
	AdminNote    string     `json:"adminNote,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

type customizationJSON struct {
	ID            string                  `json:"id"`
	User          string                  `json:"user"`
	Order         string                  `json:"order"`
	Website       string                  `json:"website"`
	WebsiteTitle  string                  `json:"websiteTitle"`
	RequestItems  []customizationItemJSON `json:"requestItems"`
	OverallStatus string                  `json:"overallStatus"`
	Priority      string                  `json:"priority"`
	AdminMessage  string                  `json:"adminMessage,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}

func customizationView(r *customization.Request) customizationJSON {
	v := customizationJSON{
		ID:            r.ID,
		User:          r.UserID,
		Order:         r.OrderID,
		Website:       r.WebsiteID,
		WebsiteTitle:  r.WebsiteTitle,
		RequestItems:  make([]customizationItemJSON, 0, len(r.Items)),
		OverallStatus: string(r.OverallStatus),
		Priority:      string(r.Priority),
		AdminMessage:  r.AdminMessage,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	for _, it := range r.Items {
		v.RequestItems = append(v.RequestItems, customizationItemJSON{
			Number:       it.Number,
			SectionName:  it.SectionName,
			EditType:     string(it.EditType),
			Description:  it.Description,
			Images:       it.Images,
			CurrentValue: it.CurrentValue,
			NewValue:     it.NewValue,
			IsCompleted:  it.IsCompleted,
			AdminNote:    it.AdminNote,
			CompletedAt:  it.CompletedAt,
		})
	}
	return v
}

func customizationViews(items []customization.Request) []customizationJSON {
	out := make([]customizationJSON, 0, len(items))
	for i := range items {
		out = append(out, customizationView(&items[i]))
	}
	return out
}
