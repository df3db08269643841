package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/extraweb/internal/domain/order"
	"github.com/xenking/extraweb/internal/domain/product"
)

type paymentDetailsBody struct {
	Provider      string `json:"provider" validate:"required,oneof=bkash rocket nagad manual"`
	AccountNumber string `json:"accountNumber" validate:"required"`
	TransactionID string `json:"transactionId" validate:"required"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

func (b *paymentDetailsBody) domain() *order.PaymentDetails {
	if b == nil {
		return nil
	}
	return &order.PaymentDetails{
		Provider:      order.Provider(b.Provider),
		AccountNumber: b.AccountNumber,
		TransactionID: b.TransactionID,
		Date:          b.Date,
		Time:          b.Time,
	}
}

type createOrderBody struct {
	Items []struct {
		ProductID   string          `json:"productId" validate:"required"`
		ProductType string          `json:"productType" validate:"required,oneof=website software course"`
		Title       string          `json:"title"`
		Price       decimal.Decimal `json:"price" validate:"gte=0"`
		Image       string          `json:"image"`
	} `json:"items" validate:"required,min=1,dive"`
	PaymentMethod    string `json:"paymentMethod"`
	PaymentStatus    string `json:"paymentStatus" validate:"omitempty,oneof=pending completed failed refunded"`
	IsInstallment    bool   `json:"isInstallment"`
	InstallmentCount int    `json:"installmentCount" validate:"gte=0,lte=12"`
	Installments     []struct {
		Number  int             `json:"installmentNumber" validate:"gte=1"`
		Amount  decimal.Decimal `json:"amount" validate:"gt=0"`
		DueDate time.Time       `json:"dueDate"`
	} `json:"installments" validate:"omitempty,dive"`
	CouponCode           string              `json:"couponCode"`
	DiscountAmount       decimal.Decimal     `json:"discountAmount" validate:"gte=0"`
	ManualPaymentDetails *paymentDetailsBody `json:"manualPaymentDetails"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var body createOrderBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}

	in := order.CreateInput{
		UserID:           principal(r).UserID,
		PaymentMethod:    body.PaymentMethod,
		PaymentStatus:    order.PaymentStatus(body.PaymentStatus),
		IsInstallment:    body.IsInstallment,
		InstallmentCount: body.InstallmentCount,
		ManualPayment:    body.ManualPaymentDetails.domain(),
		CouponCode:       body.CouponCode,
		DiscountAmount:   body.DiscountAmount,
	}
	for _, it := range body.Items {
		in.Items = append(in.Items, order.Item{
			ProductID:   it.ProductID,
			ProductType: product.Type(it.ProductType),
			Title:       it.Title,
			Price:       it.Price,
			Image:       it.Image,
		})
	}
	for _, inst := range body.Installments {
		in.Installments = append(in.Installments, order.InstallmentInput{
			Number:  inst.Number,
			Amount:  inst.Amount,
			DueDate: inst.DueDate,
		})
	}

	o, err := h.Orders.Create(r.Context(), in)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusCreated, "Order created successfully", orderView(o), nil)
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, meta, err := h.Orders.ListMine(r.Context(), principal(r).UserID, pageParams(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Orders retrieved successfully", orderViews(orders), &meta)
}

func (h *Handler) getMyOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetMine(r.Context(), r.PathValue("id"), principal(r).UserID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Order retrieved successfully", orderView(o), nil)
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, meta, err := h.Orders.ListAll(r.Context(), r.URL.Query().Get("status"), pageParams(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Orders retrieved successfully", orderViews(orders), &meta)
}

type orderStatusBody struct {
	Status        string `json:"status" validate:"required,oneof=pending completed failed refunded"`
	TransactionID string `json:"transactionId"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body orderStatusBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	o, err := h.Orders.UpdatePaymentStatus(r.Context(), r.PathValue("id"), order.PaymentStatus(body.Status), body.TransactionID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Order status updated successfully", orderView(o), nil)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.Orders.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Order deleted successfully", nil, nil)
}

type payInstallmentBody struct {
	OrderID           string              `json:"orderId" validate:"required"`
	InstallmentNumber int                 `json:"installmentNumber" validate:"required,gte=1"`
	PaymentDetails    *paymentDetailsBody `json:"paymentDetails" validate:"required"`
}

func (h *Handler) payInstallment(w http.ResponseWriter, r *http.Request) {
	var body payInstallmentBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	o, err := h.Orders.SubmitInstallment(r.Context(), body.OrderID, principal(r).UserID,
		body.InstallmentNumber, *body.PaymentDetails.domain())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Installment payment submitted", orderView(o), nil)
}

type approveInstallmentBody struct {
	OrderID           string `json:"orderId" validate:"required"`
	InstallmentNumber int    `json:"installmentNumber" validate:"required,gte=1"`
	Status            string `json:"status" validate:"required,oneof=completed failed"`
}

func (h *Handler) approveInstallment(w http.ResponseWriter, r *http.Request) {
	var body approveInstallmentBody
	if err := h.decode(w, r, &body); err != nil {
		h.writeErr(w, r, err)
		return
	}
	o, err := h.Orders.ApproveInstallment(r.Context(), body.OrderID, body.InstallmentNumber,
		order.InstallmentStatus(body.Status))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	reply(w, r, http.StatusOK, "Installment updated", orderView(o), nil)
}

type paymentDetailsJSON struct {
	Provider      string `json:"provider"`
	AccountNumber string `json:"accountNumber"`
	TransactionID string `json:"transactionId"`
	Date          string `json:"date,omitempty"`
	Time          string `json:"time,omitempty"`
}

func paymentDetailsView(d *order.PaymentDetails) *paymentDetailsJSON {
	if d == nil {
		return nil
	}
	return &paymentDetailsJSON{
		Provider:      string(d.Provider),
		AccountNumber: d.AccountNumber,
		TransactionID: d.TransactionID,
		Date:          d.Date,
		Time:          d.Time,
	}
}

type orderItemJSON struct {
	ProductID   string  `json:"product"`
	ProductType string  `json:"productType"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Image       string  `json:"image,omitempty"`
}

type installmentJSON struct {
	Number         int                 `json:"installmentNumber"`
	Amount         float64             `json:"amount"`
	DueDate        time.Time           `json:"dueDate"`
	Status         string              `json:"status"`
	PaymentDetails *paymentDetailsJSON `json:"paymentDetails,omitempty"`
	PaidAt         *time.Time          `json:"paidAt,omitempty"`
}

type orderJSON struct {
	ID                   string              `json:"id"`
	OrderNumber          string              `json:"orderNumber"`
	User                 string              `json:"user"`
	Items                []orderItemJSON     `json:"items"`
	TotalAmount          float64             `json:"totalAmount"`
	PaymentStatus        string              `json:"paymentStatus"`
	PaymentMethod        string              `json:"paymentMethod"`
	TransactionID        string              `json:"transactionId,omitempty"`
	ManualPaymentDetails *paymentDetailsJSON `json:"manualPaymentDetails,omitempty"`
	IsInstallment        bool                `json:"isInstallment"`
	InstallmentCount     int                 `json:"installmentCount"`
	Installments         []installmentJSON   `json:"installments,omitempty"`
	CouponCode           string              `json:"couponCode,omitempty"`
	DiscountAmount       float64             `json:"discountAmount"`
	DeliveredAt          *time.Time          `json:"deliveredAt,omitempty"`
	OrderDate            time.Time           `json:"orderDate"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
}

func orderView(o *order.Order) orderJSON {
	v := orderJSON{
		ID:                   o.ID,
		OrderNumber:          o.Number,
		User:                 o.UserID,
		Items:                make([]orderItemJSON, 0, len(o.Items)),
		TotalAmount:          o.TotalAmount.InexactFloat64(),
		PaymentStatus:        string(o.PaymentStatus),
		PaymentMethod:        o.PaymentMethod,
		TransactionID:        o.TransactionID,
		ManualPaymentDetails: paymentDetailsView(o.ManualPayment),
		IsInstallment:        o.IsInstallment,
		InstallmentCount:     o.InstallmentCount,
		CouponCode:           o.CouponCode,
		DiscountAmount:       o.DiscountAmount.InexactFloat64(),
		DeliveredAt:          o.DeliveredAt,
		OrderDate:            o.OrderDate,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, orderItemJSON{
			ProductID:   it.ProductID,
			ProductType: string(it.ProductType),
			Title:       it.Title,
			Price:       it.Price.InexactFloat64(),
			Image:       it.Image,
		})
	}
	for _, inst := range o.Installments {
		v.Installments = append(v.Installments, installmentJSON{
			Number:         inst.Number,
			Amount:         inst.Amount.InexactFloat64(),
			DueDate:        inst.DueDate,
			Status:         string(inst.Status),
			PaymentDetails: paymentDetailsView(inst.PaymentDetails),
			PaidAt:         inst.PaidAt,
		})
	}
	return v
}

func orderViews(orders []order.Order) []orderJSON {
	out := make([]orderJSON, 0, len(orders))
	for i := range orders {
		out = append(out, orderView(&orders[i]))
	}
	return out
}
