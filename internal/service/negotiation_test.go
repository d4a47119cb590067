package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/MarketplaceGo/pkg/errors"

	"github.com/utafrali/MarketplaceGo/internal/domain"
	"github.com/utafrali/MarketplaceGo/internal/repository"
)

// --- Mock Negotiation Repository ---

type mockNegotiationRepository struct {
	mock.Mock
}

func (m *mockNegotiationRepository) Create(ctx context.Context, n *domain.Negotiation) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockNegotiationRepository) GetByID(ctx context.Context, id string) (*domain.Negotiation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Negotiation), args.Error(1)
}

func (m *mockNegotiationRepository) List(ctx context.Context, filter repository.NegotiationFilter) ([]domain.Negotiation, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Negotiation), args.Int(1), args.Error(2)
}

func (m *mockNegotiationRepository) Resolve(ctx context.Context, id, status string) (*domain.Negotiation, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Negotiation), args.Error(1)
}

func (m *mockNegotiationRepository) CancelPending(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockNegotiationRepository) HasAccepted(ctx context.Context, customerID, serviceID string) (bool, error) {
	args := m.Called(ctx, customerID, serviceID)
	return args.Bool(0), args.Error(1)
}

// --- Mock Notifier ---

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyNegotiationResolved(ctx context.Context, n *domain.Negotiation) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestNegotiationService(
	negotiationRepo *mockNegotiationRepository,
	serviceRepo *mockServiceRepository,
	notifier *mockNotifier,
) *NegotiationService {
	return NewNegotiationService(negotiationRepo, serviceRepo, newTestEventProducer(), notifier, newTestLogger())
}

func pendingNegotiation() *domain.Negotiation {
	return &domain.Negotiation{
		ID:         "neg-1",
		ServiceID:  "svc-1",
		CustomerID: "user-1",
		VendorID:   "vendor-1",
		OfferPrice: 150,
		Status:     domain.NegotiationStatusPending,
	}
}

func acceptedNegotiation() *domain.Negotiation {
	n := pendingNegotiation()
	n.Status = domain.NegotiationStatusAccepted
	resolvedAt := time.Now().UTC()
	n.ResolvedAt = &resolvedAt
	return n
}

// --- Create Negotiation Tests ---

func TestCreateNegotiation_Success(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	serviceRepo := new(mockServiceRepository)
	notifier := new(mockNotifier)
	svc := newTestNegotiationService(negotiationRepo, serviceRepo, notifier)
	ctx := context.Background()

	listing := &domain.Service{ID: "svc-1", VendorID: "vendor-1", Price: 200}
	serviceRepo.On("GetByID", ctx, "svc-1").Return(listing, nil)
	negotiationRepo.On("Create", ctx, mock.AnythingOfType("*domain.Negotiation")).Return(nil)

	created, err := svc.CreateNegotiation(ctx, customerActor("user-1"), CreateNegotiationInput{
		ServiceID:  "svc-1",
		OfferPrice: 150,
		Message:    "Would you take 150?",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationStatusPending, created.Status)
	assert.Equal(t, "user-1", created.CustomerID)
	assert.Equal(t, "vendor-1", created.VendorID)
	assert.Nil(t, created.ResolvedAt)
	negotiationRepo.AssertExpectations(t)
}

func TestCreateNegotiation_VendorForbidden(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	serviceRepo := new(mockServiceRepository)
	svc := newTestNegotiationService(negotiationRepo, serviceRepo, new(mockNotifier))

	created, err := svc.CreateNegotiation(context.Background(), vendorActor("vendor-2"), CreateNegotiationInput{
		ServiceID:  "svc-1",
		OfferPrice: 150,
	})

	assert.Nil(t, created)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	serviceRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestCreateNegotiation_NonPositiveOffer(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	serviceRepo := new(mockServiceRepository)
	svc := newTestNegotiationService(negotiationRepo, serviceRepo, new(mockNotifier))

	for _, offer := range []float64{0, -25} {
		_, err := svc.CreateNegotiation(context.Background(), customerActor("user-1"), CreateNegotiationInput{
			ServiceID:  "svc-1",
			OfferPrice: offer,
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
}

func TestCreateNegotiation_OwnService(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	serviceRepo := new(mockServiceRepository)
	svc := newTestNegotiationService(negotiationRepo, serviceRepo, new(mockNotifier))
	ctx := context.Background()

	// The vendor also holds a customer account with the same ID.
	listing := &domain.Service{ID: "svc-1", VendorID: "user-1"}
	serviceRepo.On("GetByID", ctx, "svc-1").Return(listing, nil)

	created, err := svc.CreateNegotiation(ctx, customerActor("user-1"), CreateNegotiationInput{
		ServiceID:  "svc-1",
		OfferPrice: 150,
	})

	assert.Nil(t, created)
	assert.ErrorIs(t, err, apperrors.ErrSelfAction)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SELF_NEGOTIATION", appErr.Code)
	negotiationRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateNegotiation_DuplicatePending(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	serviceRepo := new(mockServiceRepository)
	svc := newTestNegotiationService(negotiationRepo, serviceRepo, new(mockNotifier))
	ctx := context.Background()

	listing := &domain.Service{ID: "svc-1", VendorID: "vendor-1"}
	serviceRepo.On("GetByID", ctx, "svc-1").Return(listing, nil)
	negotiationRepo.On("Create", ctx, mock.AnythingOfType("*domain.Negotiation")).
		Return(apperrors.Duplicate("DUPLICATE_PENDING", "a pending negotiation already exists for this service"))

	created, err := svc.CreateNegotiation(ctx, customerActor("user-1"), CreateNegotiationInput{
		ServiceID:  "svc-1",
		OfferPrice: 150,
	})

	assert.Nil(t, created)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "DUPLICATE_PENDING", appErr.Code)
}

func TestCreateNegotiation_ServiceNotFound(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	serviceRepo := new(mockServiceRepository)
	svc := newTestNegotiationService(negotiationRepo, serviceRepo, new(mockNotifier))
	ctx := context.Background()

	serviceRepo.On("GetByID", ctx, "svc-404").Return(nil, apperrors.ErrNotFound)

	_, err := svc.CreateNegotiation(ctx, customerActor("user-1"), CreateNegotiationInput{
		ServiceID:  "svc-404",
		OfferPrice: 150,
	})

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- Get / List Negotiation Tests ---

func TestGetNegotiation_VisibleToParticipantsAndAdmin(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		actorID string
		role    string
		wantErr error
	}{
		{"customer sees own", "user-1", domain.RoleCustomer, nil},
		{"vendor sees own", "vendor-1", domain.RoleVendor, nil},
		{"admin sees any", "admin-1", domain.RoleAdmin, nil},
		{"stranger forbidden", "user-9", domain.RoleCustomer, apperrors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			negotiationRepo := new(mockNegotiationRepository)
			serviceRepo := new(mockServiceRepository)
			svc := newTestNegotiationService(negotiationRepo, serviceRepo, new(mockNotifier))

			negotiationRepo.On("GetByID", ctx, "neg-1").Return(pendingNegotiation(), nil)

			actor := policyActor(tt.actorID, tt.role)
			got, err := svc.GetNegotiation(ctx, actor, "neg-1")

			if tt.wantErr != nil {
				assert.Nil(t, got)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "neg-1", got.ID)
		})
	}
}

func TestListNegotiations_ScopedByRole(t *testing.T) {
	ctx := context.Background()

	t.Run("customer scoped to own offers", func(t *testing.T) {
		negotiationRepo := new(mockNegotiationRepository)
		svc := newTestNegotiationService(negotiationRepo, new(mockServiceRepository), new(mockNotifier))

		negotiationRepo.On("List", ctx, mock.MatchedBy(func(f repository.NegotiationFilter) bool {
			return f.CustomerID != nil && *f.CustomerID == "user-1" && f.VendorID == nil
		})).Return([]domain.Negotiation{}, 0, nil)

		_, err := svc.ListNegotiations(ctx, customerActor("user-1"), ListNegotiationsInput{Pagination: defaultTestPagination()})
		require.NoError(t, err)
		negotiationRepo.AssertExpectations(t)
	})

	t.Run("vendor scoped to own services", func(t *testing.T) {
		negotiationRepo := new(mockNegotiationRepository)
		svc := newTestNegotiationService(negotiationRepo, new(mockServiceRepository), new(mockNotifier))

		negotiationRepo.On("List", ctx, mock.MatchedBy(func(f repository.NegotiationFilter) bool {
			return f.VendorID != nil && *f.VendorID == "vendor-1" && f.CustomerID == nil
		})).Return([]domain.Negotiation{}, 0, nil)

		_, err := svc.ListNegotiations(ctx, vendorActor("vendor-1"), ListNegotiationsInput{Pagination: defaultTestPagination()})
		require.NoError(t, err)
		negotiationRepo.AssertExpectations(t)
	})

	t.Run("admin unscoped", func(t *testing.T) {
		negotiationRepo := new(mockNegotiationRepository)
		svc := newTestNegotiationService(negotiationRepo, new(mockServiceRepository), new(mockNotifier))

		negotiationRepo.On("List", ctx, mock.MatchedBy(func(f repository.NegotiationFilter) bool {
			return f.CustomerID == nil && f.VendorID == nil
		})).Return([]domain.Negotiation{}, 0, nil)

		_, err := svc.ListNegotiations(ctx, adminActor("admin-1"), ListNegotiationsInput{Pagination: defaultTestPagination()})
		require.NoError(t, err)
		negotiationRepo.AssertExpectations(t)
	})
}

func TestListNegotiations_InvalidStatusFilter(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	svc := newTestNegotiationService(negotiationRepo, new(mockServiceRepository), new(mockNotifier))

	for _, status := range []string{"CANCELED", "pending", ""} {
		_, err := svc.ListNegotiations(context.Background(), customerActor("user-1"), ListNegotiationsInput{
			Status:     strPtr(status),
			Pagination: defaultTestPagination(),
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "status %q", status)
	}
	negotiationRepo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

// --- Resolve Negotiation Tests ---

func TestResolveNegotiation_Accept(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	serviceRepo := new(mockServiceRepository)
	notifier := new(mockNotifier)
	svc := newTestNegotiationService(negotiationRepo, serviceRepo, notifier)
	ctx := context.Background()

	negotiationRepo.On("GetByID", ctx, "neg-1").Return(pendingNegotiation(), nil)
	negotiationRepo.On("Resolve", ctx, "neg-1", domain.NegotiationStatusAccepted).Return(acceptedNegotiation(), nil)
	notifier.On("NotifyNegotiationResolved", ctx, mock.AnythingOfType("*domain.Negotiation")).Return(nil)

	resolved, err := svc.ResolveNegotiation(ctx, vendorActor("vendor-1"), "neg-1", domain.NegotiationStatusAccepted)

	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationStatusAccepted, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)
	notifier.AssertExpectations(t)
}

func TestResolveNegotiation_InvalidStatus(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	svc := newTestNegotiationService(negotiationRepo, new(mockServiceRepository), new(mockNotifier))

	for _, status := range []string{domain.NegotiationStatusPending, "CANCELED", "accepted", ""} {
		_, err := svc.ResolveNegotiation(context.Background(), vendorActor("vendor-1"), "neg-1", status)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "status %q", status)
	}
	negotiationRepo.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveNegotiation_NotTheVendor(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	svc := newTestNegotiationService(negotiationRepo, new(mockServiceRepository), new(mockNotifier))
	ctx := context.Background()

	negotiationRepo.On("GetByID", ctx, "neg-1").Return(pendingNegotiation(), nil)

	// Not even the offering customer may resolve.
	_, err := svc.ResolveNegotiation(ctx, customerActor("user-1"), "neg-1", domain.NegotiationStatusAccepted)

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	negotiationRepo.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveNegotiation_AdminMayResolve(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	notifier := new(mockNotifier)
	svc := newTestNegotiationService(negotiationRepo, new(mockServiceRepository), notifier)
	ctx := context.Background()

	rejected := pendingNegotiation()
	rejected.Status = domain.NegotiationStatusRejected

	negotiationRepo.On("GetByID", ctx, "neg-1").Return(pendingNegotiation(), nil)
	negotiationRepo.On("Resolve", ctx, "neg-1", domain.NegotiationStatusRejected).Return(rejected, nil)
	notifier.On("NotifyNegotiationResolved", ctx, mock.AnythingOfType("*domain.Negotiation")).Return(nil)

	resolved, err := svc.ResolveNegotiation(ctx, adminActor("admin-1"), "neg-1", domain.NegotiationStatusRejected)

	require.NoError(t, err)
	assert.Equal(t, domain.NegotiationStatusRejected, resolved.Status)
}

func TestResolveNegotiation_AlreadyResolved(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	svc := newTestNegotiationService(negotiationRepo, new(mockServiceRepository), new(mockNotifier))
	ctx := context.Background()

	negotiationRepo.On("GetByID", ctx, "neg-1").Return(acceptedNegotiation(), nil)

	_, err := svc.ResolveNegotiation(ctx, vendorActor("vendor-1"), "neg-1", domain.NegotiationStatusRejected)

	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	negotiationRepo.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveNegotiation_WebhookFailureDoesNotFail(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	notifier := new(mockNotifier)
	svc := newTestNegotiationService(negotiationRepo, new(mockServiceRepository), notifier)
	ctx := context.Background()

	negotiationRepo.On("GetByID", ctx, "neg-1").Return(pendingNegotiation(), nil)
	negotiationRepo.On("Resolve", ctx, "neg-1", domain.NegotiationStatusAccepted).Return(acceptedNegotiation(), nil)
	notifier.On("NotifyNegotiationResolved", ctx, mock.AnythingOfType("*domain.Negotiation")).
		Return(assert.AnError)

	resolved, err := svc.ResolveNegotiation(ctx, vendorActor("vendor-1"), "neg-1", domain.NegotiationStatusAccepted)

	require.NoError(t, err)
	assert.NotNil(t, resolved)
}

// --- Cancel Negotiation Tests ---

func TestCancelNegotiation_Success(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	svc := newTestNegotiationService(negotiationRepo, new(mockServiceRepository), new(mockNotifier))
	ctx := context.Background()

	negotiationRepo.On("GetByID", ctx, "neg-1").Return(pendingNegotiation(), nil)
	negotiationRepo.On("CancelPending", ctx, "neg-1").Return(nil)

	err := svc.CancelNegotiation(ctx, customerActor("user-1"), "neg-1")

	require.NoError(t, err)
	negotiationRepo.AssertExpectations(t)
}

func TestCancelNegotiation_NotTheCustomer(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	svc := newTestNegotiationService(negotiationRepo, new(mockServiceRepository), new(mockNotifier))
	ctx := context.Background()

	negotiationRepo.On("GetByID", ctx, "neg-1").Return(pendingNegotiation(), nil)

	// The vendor cannot cancel the customer's offer, only resolve it.
	err := svc.CancelNegotiation(ctx, vendorActor("vendor-1"), "neg-1")

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	negotiationRepo.AssertNotCalled(t, "CancelPending", mock.Anything, mock.Anything)
}

func TestCancelNegotiation_AlreadyResolved(t *testing.T) {
	negotiationRepo := new(mockNegotiationRepository)
	svc := newTestNegotiationService(negotiationRepo, new(mockServiceRepository), new(mockNotifier))
	ctx := context.Background()

	negotiationRepo.On("GetByID", ctx, "neg-1").Return(acceptedNegotiation(), nil)

	err := svc.CancelNegotiation(ctx, customerActor("user-1"), "neg-1")

	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	negotiationRepo.AssertNotCalled(t, "CancelPending", mock.Anything, mock.Anything)
}
