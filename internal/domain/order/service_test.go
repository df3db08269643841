package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/extraweb/internal/domain/apperr"
	"github.com/xenking/extraweb/internal/domain/coupon"
	"github.com/xenking/extraweb/internal/domain/mail"
	"github.com/xenking/extraweb/internal/domain/notification"
	"github.com/xenking/extraweb/internal/domain/paging"
	"github.com/xenking/extraweb/internal/domain/product"
	"github.com/xenking/extraweb/internal/domain/user"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]*product.Product
	getErr error
}

func (m *mockProductRepo) GetByID(_ context.Context, _ product.Type, productID string) (*product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byID[productID]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) Create(_ context.Context, _ *product.Product) error { return nil }

func (m *mockProductRepo) IncrementSales(_ context.Context, _ product.Type, _ string) error {
	return nil
}

func (m *mockProductRepo) IncrementEnrollments(_ context.Context, _ string) error { return nil }

func (m *mockProductRepo) ResetMetrics(_ context.Context) (*product.ResetResult, error) {
	return &product.ResetResult{}, nil
}

type mockCouponValidator struct {
	quote       *coupon.Quote
	err         error
	redeemErr   error
	redeemed    []string
	released    []string
	lastCart    coupon.Cart
	lastCode    string
	validateHit bool
}

func (m *mockCouponValidator) Validate(_ context.Context, code, _ string, cart coupon.Cart) (*coupon.Quote, error) {
	m.validateHit = true
	m.lastCode = code
	m.lastCart = cart
	return m.quote, m.err
}

func (m *mockCouponValidator) Redeem(_ context.Context, _ *coupon.Quote, orderID string) error {
	if m.redeemErr != nil {
		return m.redeemErr
	}
	m.redeemed = append(m.redeemed, orderID)
	return nil
}

func (m *mockCouponValidator) Release(_ context.Context, _ *coupon.Quote, orderID string) error {
	m.released = append(m.released, orderID)
	return nil
}

// memOrderRepo stores copies of orders and enforces the version check.
type memOrderRepo struct {
	mu        sync.Mutex
	byID      map[string]Order
	numbers   map[string]bool
	createErr []error
	updateErr error
	deleted   []string
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{byID: make(map[string]Order), numbers: make(map[string]bool)}
}

func (m *memOrderRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.createErr) > 0 {
		err := m.createErr[0]
		m.createErr = m.createErr[1:]
		return err
	}
	if m.numbers[o.Number] {
		return &apperr.DuplicateKeyError{Field: "orderNumber"}
	}
	m.numbers[o.Number] = true
	m.byID[o.ID] = cloneOrder(o)
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, orderID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneOrder(&o)
	return &c, nil
}

func (m *memOrderRepo) Update(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.byID[o.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != o.Version {
		return ErrVersionConflict
	}
	o.Version++
	m.byID[o.ID] = cloneOrder(o)
	return nil
}

func (m *memOrderRepo) Delete(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[orderID]; !ok {
		return ErrNotFound
	}
	delete(m.byID, orderID)
	m.deleted = append(m.deleted, orderID)
	return nil
}

func (m *memOrderRepo) List(_ context.Context, f Filter, _ paging.Params) ([]Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.byID {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.InstallmentOnly && !o.IsInstallment {
			continue
		}
		if f.Status != "" && o.PaymentStatus != f.Status {
			continue
		}
		out = append(out, o)
	}
	return out, int64(len(out)), nil
}

func cloneOrder(o *Order) Order {
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	c.Installments = append([]Installment(nil), o.Installments...)
	return c
}

type mockDeliverer struct {
	mu     sync.Mutex
	orders []string
}

func (m *mockDeliverer) Deliver(_ context.Context, o *Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, o.ID)
}

func (m *mockDeliverer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []notification.Notification
	err  error
}

func (m *mockNotifier) Notify(_ context.Context, n notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

type mockConfirmations struct {
	placed []mail.OrderPlaced
}

func (m *mockConfirmations) QueueOrderPlaced(_ context.Context, p mail.OrderPlaced) error {
	m.placed = append(m.placed, p)
	return nil
}

type mockUsers struct{}

func (mockUsers) GetByID(_ context.Context, userID string) (*user.User, error) {
	if userID == "usr_1" {
		return &user.User{ID: userID, FirstName: "Rahim", LastName: "Uddin"}, nil
	}
	return nil, user.ErrNotFound
}

type mockCascade struct {
	orders []string
	err    error
}

func (m *mockCascade) DeleteByOrder(_ context.Context, orderID string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.orders = append(m.orders, orderID)
	return 1, nil
}

// --- Helpers ---

type testEnv struct {
	svc         *Service
	orders      *memOrderRepo
	coupons     *mockCouponValidator
	deliverer   *mockDeliverer
	notifier    *mockNotifier
	confirm     *mockConfirmations
	downloads   *mockCascade
	enrollments *mockCascade
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEnv() *testEnv {
	products := &mockProductRepo{byID: map[string]*product.Product{
		"web_1": {ID: "web_1", Type: product.TypeWebsite, Title: "Shop Theme", Price: decimal.NewFromInt(1500)},
		"sw_1":  {ID: "sw_1", Type: product.TypeSoftware, Title: "CRM", Price: decimal.NewFromInt(3000)},
		"crs_1": {ID: "crs_1", Type: product.TypeCourse, Title: "Go Course", Price: decimal.NewFromInt(500)},
	}}
	env := &testEnv{
		orders:      newMemOrderRepo(),
		coupons:     &mockCouponValidator{},
		deliverer:   &mockDeliverer{},
		notifier:    &mockNotifier{},
		confirm:     &mockConfirmations{},
		downloads:   &mockCascade{},
		enrollments: &mockCascade{},
	}
	env.svc = NewService(env.orders, products, env.coupons, mockUsers{},
		WithDeliverer(env.deliverer),
		WithNotifier(env.notifier),
		WithConfirmations(env.confirm),
		WithCascade(env.downloads, env.enrollments),
	)
	env.svc.now = func() time.Time { return fixedNow }
	return env
}

func item(productID string, t product.Type) Item {
	return Item{ProductID: productID, ProductType: t, Title: "client title", Price: decimal.NewFromInt(1)}
}

// --- Tests ---

func TestService_Create(t *testing.T) {
	env := newTestEnv()

	o, err := env.svc.Create(context.Background(), CreateInput{
		UserID: "usr_1",
		Items:  []Item{item("web_1", product.TypeWebsite), item("crs_1", product.TypeCourse)},
	})
	require.NoError(t, err)

	assert.Regexp(t, `^EW-[0-9A-Z]{26}$`, o.Number)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(2000)), "catalog prices win: %s", o.TotalAmount)
	assert.Equal(t, "Shop Theme", o.Items[0].Title)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Equal(t, "manual", o.PaymentMethod)
	assert.Equal(t, fixedNow, o.OrderDate)
	assert.False(t, o.Delivered())

	assert.Zero(t, env.deliverer.count())
	require.Len(t, env.notifier.sent, 2)
	assert.Equal(t, "usr_1", env.notifier.sent[0].UserID)
	assert.True(t, env.notifier.sent[1].ForAdmin)
	assert.Contains(t, env.notifier.sent[1].Message, "Rahim Uddin")
	require.Len(t, env.confirm.placed, 1)
	assert.Equal(t, o.Number, env.confirm.placed[0].OrderNumber)
}

func TestService_Create_EmptyItems(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.Create(context.Background(), CreateInput{UserID: "usr_1"})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, env.orders.byID)
	assert.Empty(t, env.notifier.sent)
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateInput
	}{
		{name: "unknown product", in: CreateInput{Items: []Item{item("web_404", product.TypeWebsite)}}},
		{name: "bad product type", in: CreateInput{Items: []Item{item("web_1", "ebook")}}},
		{name: "bad payment status", in: CreateInput{Items: []Item{item("web_1", product.TypeWebsite)}, PaymentStatus: "paid"}},
		{name: "discount without coupon", in: CreateInput{Items: []Item{item("web_1", product.TypeWebsite)}, DiscountAmount: decimal.NewFromInt(100)}},
		{
			name: "completed installment order",
			in: CreateInput{
				Items:            []Item{item("web_1", product.TypeWebsite)},
				PaymentStatus:    PaymentCompleted,
				IsInstallment:    true,
				InstallmentCount: 2,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			tt.in.UserID = "usr_1"

			_, err := env.svc.Create(context.Background(), tt.in)
			require.ErrorIs(t, err, apperr.ErrValidation)
			assert.Empty(t, env.orders.byID)
		})
	}
}

func TestService_Create_CompletedDeliversOnce(t *testing.T) {
	env := newTestEnv()

	o, err := env.svc.Create(context.Background(), CreateInput{
		UserID:        "usr_1",
		Items:         []Item{item("sw_1", product.TypeSoftware)},
		PaymentStatus: PaymentCompleted,
	})
	require.NoError(t, err)
	assert.True(t, o.Delivered())
	assert.Equal(t, 1, env.deliverer.count())

	// A later admin status change must not deliver again.
	_, err = env.svc.UpdatePaymentStatus(context.Background(), o.ID, PaymentCompleted, "TX1")
	require.NoError(t, err)
	assert.Equal(t, 1, env.deliverer.count())
}

func TestService_Create_Coupon(t *testing.T) {
	env := newTestEnv()
	env.coupons.quote = &coupon.Quote{
		Coupon:   &coupon.Coupon{ID: "cpn_1", Code: "SAVE10"},
		UserID:   "usr_1",
		Discount: decimal.NewFromInt(300),
	}

	o, err := env.svc.Create(context.Background(), CreateInput{
		UserID:         "usr_1",
		Items:          []Item{item("sw_1", product.TypeSoftware)},
		CouponCode:     " save10 ",
		DiscountAmount: decimal.NewFromInt(9999),
	})
	require.NoError(t, err)

	assert.Equal(t, "SAVE10", env.coupons.lastCode)
	assert.Equal(t, []product.Type{product.TypeSoftware}, env.coupons.lastCart.Types)
	assert.True(t, env.coupons.lastCart.Total.Equal(decimal.NewFromInt(3000)))
	assert.True(t, o.DiscountAmount.Equal(decimal.NewFromInt(300)))
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(2700)))
	assert.Equal(t, "SAVE10", o.CouponCode)
	assert.Equal(t, []string{o.ID}, env.coupons.redeemed)
}

func TestService_Create_CouponErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		redeemErr error
		wantErr   error
	}{
		{name: "unknown code", err: coupon.ErrNotFound, wantErr: apperr.ErrValidation},
		{name: "expired", err: &coupon.InvalidCouponError{Reason: coupon.ReasonExpired}, wantErr: &coupon.InvalidCouponError{Reason: coupon.ReasonExpired}},
		{name: "limit reached on redeem", redeemErr: coupon.ErrLimitReached, wantErr: coupon.ErrLimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.coupons.err = tt.err
			env.coupons.redeemErr = tt.redeemErr
			if tt.err == nil {
				env.coupons.quote = &coupon.Quote{Coupon: &coupon.Coupon{ID: "cpn_1"}, Discount: decimal.NewFromInt(10)}
			}

			_, err := env.svc.Create(context.Background(), CreateInput{
				UserID:     "usr_1",
				Items:      []Item{item("web_1", product.TypeWebsite)},
				CouponCode: "SAVE10",
			})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, env.orders.byID)
		})
	}
}

func TestService_Create_ReleasesCouponOnStoreFailure(t *testing.T) {
	env := newTestEnv()
	env.coupons.quote = &coupon.Quote{Coupon: &coupon.Coupon{ID: "cpn_1"}, Discount: decimal.NewFromInt(10)}
	env.orders.createErr = []error{errors.New("connection reset")}

	_, err := env.svc.Create(context.Background(), CreateInput{
		UserID:     "usr_1",
		Items:      []Item{item("web_1", product.TypeWebsite)},
		CouponCode: "SAVE10",
	})
	require.Error(t, err)
	assert.Equal(t, env.coupons.redeemed, env.coupons.released)
}

func TestService_Create_RetriesOrderNumber(t *testing.T) {
	env := newTestEnv()
	env.orders.createErr = []error{
		&apperr.DuplicateKeyError{Field: "orderNumber"},
		&apperr.DuplicateKeyError{Field: "orderNumber"},
	}

	o, err := env.svc.Create(context.Background(), CreateInput{
		UserID: "usr_1",
		Items:  []Item{item("web_1", product.TypeWebsite)},
	})
	require.NoError(t, err)
	assert.Contains(t, env.orders.byID, o.ID)

	env.orders.createErr = []error{
		&apperr.DuplicateKeyError{Field: "orderNumber"},
		&apperr.DuplicateKeyError{Field: "orderNumber"},
		&apperr.DuplicateKeyError{Field: "orderNumber"},
	}
	_, err = env.svc.Create(context.Background(), CreateInput{
		UserID: "usr_1",
		Items:  []Item{item("web_1", product.TypeWebsite)},
	})
	require.ErrorIs(t, err, apperr.ErrDuplicateKey)
}

func TestService_Create_InstallmentWithEvidence(t *testing.T) {
	env := newTestEnv()

	o, err := env.svc.Create(context.Background(), CreateInput{
		UserID:           "usr_1",
		Items:            []Item{item("sw_1", product.TypeSoftware)},
		IsInstallment:    true,
		InstallmentCount: 3,
		ManualPayment:    &PaymentDetails{Provider: ProviderNagad, TransactionID: "TX1"},
	})
	require.NoError(t, err)

	require.Len(t, o.Installments, 3)
	assert.Equal(t, 3, o.InstallmentCount)
	assert.True(t, o.Installments[0].Amount.Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, o.Installments[0].PaymentDetails)
	assert.Equal(t, "TX1", o.Installments[0].PaymentDetails.TransactionID)
	assert.Equal(t, InstallmentPending, o.Installments[0].Status)
	assert.Nil(t, o.Installments[1].PaymentDetails)
	assert.Equal(t, fixedNow.AddDate(0, 0, DefaultInstallmentIntervalDays), o.Installments[1].DueDate)
}

func TestService_Create_CouponInstallmentSettings(t *testing.T) {
	env := newTestEnv()
	env.coupons.quote = &coupon.Quote{
		Coupon: &coupon.Coupon{
			ID:                      "cpn_1",
			InstallmentEnabled:      true,
			InstallmentCount:        4,
			InstallmentIntervalDays: 7,
		},
		Discount: decimal.Zero,
	}

	o, err := env.svc.Create(context.Background(), CreateInput{
		UserID:        "usr_1",
		Items:         []Item{item("sw_1", product.TypeSoftware)},
		IsInstallment: true,
		CouponCode:    "PLAN4",
	})
	require.NoError(t, err)
	require.Len(t, o.Installments, 4)
	assert.Equal(t, fixedNow.AddDate(0, 0, 21), o.Installments[3].DueDate)
}

func createInstallmentOrder(t *testing.T, env *testEnv, n int) *Order {
	t.Helper()
	o, err := env.svc.Create(context.Background(), CreateInput{
		UserID:           "usr_1",
		Items:            []Item{item("crs_1", product.TypeCourse)},
		IsInstallment:    true,
		InstallmentCount: n,
	})
	require.NoError(t, err)
	env.notifier.sent = nil
	return o
}

func TestService_ApproveInstallment_DeliversOnce(t *testing.T) {
	env := newTestEnv()
	o := createInstallmentOrder(t, env, 3)
	ctx := context.Background()

	got, err := env.svc.ApproveInstallment(ctx, o.ID, 1, InstallmentCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, env.deliverer.count())
	assert.Equal(t, PaymentPending, got.PaymentStatus)

	_, err = env.svc.ApproveInstallment(ctx, o.ID, 2, InstallmentCompleted)
	require.NoError(t, err)
	got, err = env.svc.ApproveInstallment(ctx, o.ID, 3, InstallmentCompleted)
	require.NoError(t, err)

	assert.Equal(t, 1, env.deliverer.count())
	assert.Equal(t, PaymentCompleted, got.PaymentStatus)

	require.Len(t, env.notifier.sent, 3)
	assert.Equal(t, "Installment Approved", env.notifier.sent[0].Title)
	assert.Equal(t, "usr_1", env.notifier.sent[0].UserID)
}

func TestService_ApproveInstallment_Reject(t *testing.T) {
	env := newTestEnv()
	o := createInstallmentOrder(t, env, 2)

	_, err := env.svc.ApproveInstallment(context.Background(), o.ID, 1, InstallmentFailed)
	require.NoError(t, err)
	assert.Zero(t, env.deliverer.count())
	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, "Installment Rejected", env.notifier.sent[0].Title)
}

func TestService_ApproveInstallment_Concurrent(t *testing.T) {
	env := newTestEnv()
	o := createInstallmentOrder(t, env, 2)

	// Both admins read the same version before either writes.
	first, err := env.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	second, err := env.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)

	_, deliver, err := first.ReviewInstallment(1, InstallmentCompleted, fixedNow)
	require.NoError(t, err)
	require.True(t, deliver)
	require.NoError(t, env.orders.Update(context.Background(), first))

	_, deliver, err = second.ReviewInstallment(1, InstallmentCompleted, fixedNow)
	require.NoError(t, err)
	require.True(t, deliver)
	err = env.orders.Update(context.Background(), second)
	require.ErrorIs(t, err, ErrVersionConflict)
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestService_ApproveInstallment_RacingRequests(t *testing.T) {
	env := newTestEnv()
	o := createInstallmentOrder(t, env, 2)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.ApproveInstallment(context.Background(), o.ID, 1, InstallmentCompleted)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrInstallmentCompleted), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, env.deliverer.count())
}

func TestService_ApproveInstallment_ConflictSkipsDelivery(t *testing.T) {
	env := newTestEnv()
	o := createInstallmentOrder(t, env, 2)
	env.orders.updateErr = ErrVersionConflict

	_, err := env.svc.ApproveInstallment(context.Background(), o.ID, 1, InstallmentCompleted)
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Zero(t, env.deliverer.count())
	assert.Empty(t, env.notifier.sent)
}

func TestService_ApproveInstallment_NotFound(t *testing.T) {
	env := newTestEnv()
	plain, err := env.svc.Create(context.Background(), CreateInput{
		UserID: "usr_1",
		Items:  []Item{item("web_1", product.TypeWebsite)},
	})
	require.NoError(t, err)
	inst := createInstallmentOrder(t, env, 2)

	tests := []struct {
		name    string
		orderID string
		n       int
	}{
		{name: "missing order", orderID: "ord_missing", n: 1},
		{name: "not installment order", orderID: plain.ID, n: 1},
		{name: "missing installment", orderID: inst.ID, n: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.ApproveInstallment(context.Background(), tt.orderID, tt.n, InstallmentCompleted)
			require.ErrorIs(t, err, apperr.ErrNotFound)
		})
	}
}

func TestService_SubmitInstallment(t *testing.T) {
	env := newTestEnv()
	o := createInstallmentOrder(t, env, 2)
	ctx := context.Background()

	_, err := env.svc.ApproveInstallment(ctx, o.ID, 2, InstallmentFailed)
	require.NoError(t, err)
	env.notifier.sent = nil

	got, err := env.svc.SubmitInstallment(ctx, o.ID, "usr_1", 2, PaymentDetails{Provider: ProviderRocket, TransactionID: "TX2"})
	require.NoError(t, err)
	assert.Equal(t, InstallmentPending, got.Installments[1].Status)

	require.Len(t, env.notifier.sent, 1)
	n := env.notifier.sent[0]
	assert.True(t, n.ForAdmin)
	assert.Contains(t, n.Message, "Rahim Uddin")
	assert.Contains(t, n.Message, "#2")
	assert.Contains(t, n.Message, "250.00")
	assert.Contains(t, n.Message, "Go Course")

	_, err = env.svc.SubmitInstallment(ctx, o.ID, "usr_other", 1, PaymentDetails{})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.svc.ApproveInstallment(ctx, o.ID, 1, InstallmentCompleted)
	require.NoError(t, err)
	_, err = env.svc.SubmitInstallment(ctx, o.ID, "usr_1", 1, PaymentDetails{})
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestService_NotificationFailureDoesNotFailOrder(t *testing.T) {
	env := newTestEnv()
	env.notifier.err = errors.New("queue down")

	_, err := env.svc.Create(context.Background(), CreateInput{
		UserID: "usr_1",
		Items:  []Item{item("web_1", product.TypeWebsite)},
	})
	require.NoError(t, err)
}

func TestService_ListAll(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	createInstallmentOrder(t, env, 2)
	_, err := env.svc.Create(ctx, CreateInput{UserID: "usr_1", Items: []Item{item("web_1", product.TypeWebsite)}})
	require.NoError(t, err)

	orders, meta, err := env.svc.ListAll(ctx, "installment", paging.Params{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, paging.Meta{Page: 1, Limit: 10, Total: 1, TotalPages: 1}, meta)

	orders, _, err = env.svc.ListAll(ctx, "pending", paging.Params{})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	_, _, err = env.svc.ListAll(ctx, "shipped", paging.Params{})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestService_GetMine(t *testing.T) {
	env := newTestEnv()
	o := createInstallmentOrder(t, env, 2)

	got, err := env.svc.GetMine(context.Background(), o.ID, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = env.svc.GetMine(context.Background(), o.ID, "usr_2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_Delete(t *testing.T) {
	env := newTestEnv()
	o := createInstallmentOrder(t, env, 2)

	require.NoError(t, env.svc.Delete(context.Background(), o.ID))
	assert.Equal(t, []string{o.ID}, env.downloads.orders)
	assert.Equal(t, []string{o.ID}, env.enrollments.orders)
	assert.Equal(t, []string{o.ID}, env.orders.deleted)

	require.ErrorIs(t, env.svc.Delete(context.Background(), o.ID), ErrNotFound)
}

func TestService_Delete_CascadeFailureKeepsOrder(t *testing.T) {
	env := newTestEnv()
	o := createInstallmentOrder(t, env, 2)
	env.enrollments.err = errors.New("timeout")

	require.Error(t, env.svc.Delete(context.Background(), o.ID))
	assert.Contains(t, env.orders.byID, o.ID)
}
