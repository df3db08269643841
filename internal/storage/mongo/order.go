package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xenking/extraweb/internal/domain/order"
	"github.com/xenking/extraweb/internal/domain/paging"
	"github.com/xenking/extraweb/internal/domain/product"
)

type paymentDetailsModel struct {
	Provider      string `bson:"provider"`
	AccountNumber string `bson:"accountNumber"`
	TransactionID string `bson:"transactionId"`
	Date          string `bson:"date"`
	Time          string `bson:"time"`
}

type orderItemModel struct {
	Product     string          `bson:"product"`
	ProductType string          `bson:"productType"`
	Title       string          `bson:"title"`
	Price       bson.Decimal128 `bson:"price"`
	Image       string          `bson:"image,omitempty"`
}

type installmentModel struct {
	Number         int                  `bson:"installmentNumber"`
	Amount         bson.Decimal128      `bson:"amount"`
	DueDate        time.Time            `bson:"dueDate"`
	Status         string               `bson:"status"`
	PaymentDetails *paymentDetailsModel `bson:"paymentDetails,omitempty"`
	PaidAt         *time.Time           `bson:"paidAt,omitempty"`
}

type orderModel struct {
	ID               string               `bson:"_id"`
	Number           string               `bson:"orderNumber"`
	User             string               `bson:"user"`
	Items            []orderItemModel     `bson:"items"`
	TotalAmount      bson.Decimal128      `bson:"totalAmount"`
	PaymentMethod    string               `bson:"paymentMethod"`
	PaymentStatus    string               `bson:"paymentStatus"`
	TransactionID    string               `bson:"transactionId,omitempty"`
	ManualPayment    *paymentDetailsModel `bson:"manualPaymentDetails,omitempty"`
	CouponCode       string               `bson:"couponCode,omitempty"`
	DiscountAmount   bson.Decimal128      `bson:"discountAmount"`
	IsInstallment    bool                 `bson:"isInstallment"`
	InstallmentCount int                  `bson:"installmentCount"`
	Installments     []installmentModel   `bson:"installments,omitempty"`
	DeliveredAt      *time.Time           `bson:"deliveredAt,omitempty"`
	Version          int64                `bson:"version"`
	OrderDate        time.Time            `bson:"orderDate"`
	CreatedAt        time.Time            `bson:"createdAt"`
	UpdatedAt        time.Time            `bson:"updatedAt"`
}

func toPaymentDetailsModel(d *order.PaymentDetails) *paymentDetailsModel {
	if d == nil {
		return nil
	}
	return &paymentDetailsModel{
		Provider:      string(d.Provider),
		AccountNumber: d.AccountNumber,
		TransactionID: d.TransactionID,
		Date:          d.Date,
		Time:          d.Time,
	}
}

func fromPaymentDetailsModel(m *paymentDetailsModel) *order.PaymentDetails {
	if m == nil {
		return nil
	}
	return &order.PaymentDetails{
		Provider:      order.Provider(m.Provider),
		AccountNumber: m.AccountNumber,
		TransactionID: m.TransactionID,
		Date:          m.Date,
		Time:          m.Time,
	}
}

func toInstallmentModels(c *decCodec, in []order.Installment) []installmentModel {
	out := make([]installmentModel, len(in))
	for i, inst := range in {
		out[i] = installmentModel{
			Number:         inst.Number,
			Amount:         c.enc(inst.Amount),
			DueDate:        inst.DueDate,
			Status:         string(inst.Status),
			PaymentDetails: toPaymentDetailsModel(inst.PaymentDetails),
			PaidAt:         inst.PaidAt,
		}
	}
	return out
}

func toOrderModel(o *order.Order) (*orderModel, error) {
	var c decCodec
	items := make([]orderItemModel, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemModel{
			Product:     it.ProductID,
			ProductType: string(it.ProductType),
			Title:       it.Title,
			Price:       c.enc(it.Price),
			Image:       it.Image,
		}
	}
	m := &orderModel{
		ID:               o.ID,
		Number:           o.Number,
		User:             o.UserID,
		Items:            items,
		TotalAmount:      c.enc(o.TotalAmount),
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    string(o.PaymentStatus),
		TransactionID:    o.TransactionID,
		ManualPayment:    toPaymentDetailsModel(o.ManualPayment),
		CouponCode:       o.CouponCode,
		DiscountAmount:   c.enc(o.DiscountAmount),
		IsInstallment:    o.IsInstallment,
		InstallmentCount: o.InstallmentCount,
		Installments:     toInstallmentModels(&c, o.Installments),
		DeliveredAt:      o.DeliveredAt,
		Version:          o.Version,
		OrderDate:        o.OrderDate,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	return m, c.err
}

func fromOrderModel(m *orderModel) (*order.Order, error) {
	var c decCodec
	items := make([]order.Item, len(m.Items))
	for i, it := range m.Items {
		items[i] = order.Item{
			ProductID:   it.Product,
			ProductType: product.Type(it.ProductType),
			Title:       it.Title,
			Price:       c.dec(it.Price),
			Image:       it.Image,
		}
	}
	var insts []order.Installment
	for _, im := range m.Installments {
		insts = append(insts, order.Installment{
			Number:         im.Number,
			Amount:         c.dec(im.Amount),
			DueDate:        im.DueDate,
			Status:         order.InstallmentStatus(im.Status),
			PaymentDetails: fromPaymentDetailsModel(im.PaymentDetails),
			PaidAt:         im.PaidAt,
		})
	}
	o := &order.Order{
		ID:               m.ID,
		Number:           m.Number,
		UserID:           m.User,
		Items:            items,
		TotalAmount:      c.dec(m.TotalAmount),
		PaymentMethod:    m.PaymentMethod,
		PaymentStatus:    order.PaymentStatus(m.PaymentStatus),
		TransactionID:    m.TransactionID,
		ManualPayment:    fromPaymentDetailsModel(m.ManualPayment),
		CouponCode:       m.CouponCode,
		DiscountAmount:   c.dec(m.DiscountAmount),
		IsInstallment:    m.IsInstallment,
		InstallmentCount: m.InstallmentCount,
		Installments:     insts,
		DeliveredAt:      m.DeliveredAt,
		Version:          m.Version,
		OrderDate:        m.OrderDate,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	return o, c.err
}

// Orders implements order.Repository.
type Orders struct {
	s *Store
}

var _ order.Repository = (*Orders)(nil)

// Orders returns the order repository.
func (s *Store) Orders() *Orders { return &Orders{s: s} }

func (r *Orders) Create(ctx context.Context, o *order.Order) error {
	m, err := toOrderModel(o)
	if err != nil {
		return err
	}
	if _, err := r.s.col(colOrders).InsertOne(ctx, m); err != nil {
		return fmt.Errorf("extraweb/mongo: create order: %w", dupKey(err, "orderNumber"))
	}
	return nil
}

func (r *Orders) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	var m orderModel
	err := r.s.col(colOrders).FindOne(ctx, bson.M{"_id": orderID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("extraweb/mongo: get order: %w", err)
	}
	return fromOrderModel(&m)
}

// Update writes the mutable order fields if the stored version matches.
// Items, totals and the discount are never rewritten.
func (r *Orders) Update(ctx context.Context, o *order.Order) error {
	var c decCodec
	set := bson.M{
		"paymentStatus":        string(o.PaymentStatus),
		"transactionId":        o.TransactionID,
		"manualPaymentDetails": toPaymentDetailsModel(o.ManualPayment),
		"installments":         toInstallmentModels(&c, o.Installments),
		"deliveredAt":          o.DeliveredAt,
		"updatedAt":            o.UpdatedAt,
	}
	if c.err != nil {
		return c.err
	}

	res, err := r.s.col(colOrders).UpdateOne(ctx,
		bson.M{"_id": o.ID, "version": o.Version},
		bson.M{"$set": set, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		return fmt.Errorf("extraweb/mongo: update order: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := r.s.col(colOrders).CountDocuments(ctx, bson.M{"_id": o.ID})
		if err != nil {
			return fmt.Errorf("extraweb/mongo: update order: %w", err)
		}
		if n == 0 {
			return order.ErrNotFound
		}
		return order.ErrVersionConflict
	}
	o.Version++
	return nil
}

func (r *Orders) Delete(ctx context.Context, orderID string) error {
	res, err := r.s.col(colOrders).DeleteOne(ctx, bson.M{"_id": orderID})
	if err != nil {
		return fmt.Errorf("extraweb/mongo: delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *Orders) List(ctx context.Context, f order.Filter, p paging.Params) ([]order.Order, int64, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user"] = f.UserID
	}
	if f.InstallmentOnly {
		filter["isInstallment"] = true
	}
	if f.Status != "" {
		filter["paymentStatus"] = string(f.Status)
	}

	col := r.s.col(colOrders)
	cur, err := col.Find(ctx, filter, page(p, bson.D{{Key: "orderDate", Value: -1}}))
	if err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: list orders: %w", err)
	}
	var models []orderModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: list orders: %w", err)
	}
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("extraweb/mongo: count orders: %w", err)
	}

	out := make([]order.Order, 0, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, nil
}
