package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"conveyr/internal/escrow/handler/mocks"
	"conveyr/internal/escrow/models"
	"conveyr/internal/escrow/service"
	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
	"conveyr/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Service

type EscrowHandlerSuite struct {
	suite.Suite
	handler *Handler
	escrow  *mocks.MockService
	actor   id.ParticipantID
}

func TestEscrowHandlerSuite(t *testing.T) {
	suite.Run(t, new(EscrowHandlerSuite))
}

func (s *EscrowHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.escrow = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.handler = New(s.escrow, logger, nil, nil, "test-admin-token")
	s.actor = id.ParticipantID(uuid.New())
}

// request builds an authenticated request with chi URL params resolved, the
// way the middleware chain would hand it to the handler funcs.
func (s *EscrowHandlerSuite) request(method, target string, body any, params map[string]string) *http.Request {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, target, reader)

	ctx := requestcontext.WithActorID(req.Context(), s.actor)
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

func (s *EscrowHandlerSuite) decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (s *EscrowHandlerSuite) TestHandleCreateEscrow() {
	escrowID := id.EscrowID(uuid.New())

	s.Run("valid request returns 201 with the account", func() {
		s.escrow.EXPECT().CreateEscrowAccount(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params service.CreateAccountParams) (*models.EscrowAccount, error) {
				s.Equal("350000", params.PropertyPrice.String())
				s.Len(params.Participants, 1)
				return &models.EscrowAccount{ID: escrowID, Status: models.AccountActive}, nil
			})

		body := CreateEscrowRequest{
			TransactionID: uuid.NewString(),
			PropertyID:    uuid.NewString(),
			PropertyPrice: "350000",
			Participants: []ParticipantInput{
				{
					Type:              "buyer",
					Name:              "Ada Buyer",
					Permissions:       []string{"REQUEST_RELEASE", "APPROVE_RELEASE"},
					SignatureRequired: true,
				},
			},
		}
		w := httptest.NewRecorder()
		s.handler.handleCreateEscrow(w, s.request(http.MethodPost, "/escrows", body, nil))

		s.Equal(http.StatusCreated, w.Code)
		var resp models.EscrowAccount
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		s.Equal(escrowID, resp.ID)
	})

	s.Run("malformed body returns 400", func() {
		req := s.request(http.MethodPost, "/escrows", nil, nil)
		req.Body = io.NopCloser(bytes.NewBufferString("{not json"))
		w := httptest.NewRecorder()
		s.handler.handleCreateEscrow(w, req)

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("bad_request", s.decodeError(w)["error"])
	})

	s.Run("non-decimal price returns 400", func() {
		body := CreateEscrowRequest{
			TransactionID: uuid.NewString(),
			PropertyID:    uuid.NewString(),
			PropertyPrice: "a lot",
		}
		w := httptest.NewRecorder()
		s.handler.handleCreateEscrow(w, s.request(http.MethodPost, "/escrows", body, nil))

		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(s.decodeError(w)["error_description"], "property_price")
	})

	s.Run("unknown permission returns 400", func() {
		body := CreateEscrowRequest{
			TransactionID: uuid.NewString(),
			PropertyID:    uuid.NewString(),
			PropertyPrice: "350000",
			Participants: []ParticipantInput{
				{Type: "buyer", Name: "Ada", Permissions: []string{"RELEASE_EVERYTHING"}},
			},
		}
		w := httptest.NewRecorder()
		s.handler.handleCreateEscrow(w, s.request(http.MethodPost, "/escrows", body, nil))

		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *EscrowHandlerSuite) TestHandleGetEscrow() {
	escrowID := id.EscrowID(uuid.New())

	s.Run("found account is returned", func() {
		s.escrow.EXPECT().GetEscrowAccount(gomock.Any(), escrowID).
			Return(&models.EscrowAccount{ID: escrowID, Status: models.AccountActive}, nil)

		w := httptest.NewRecorder()
		s.handler.handleGetEscrow(w, s.request(http.MethodGet, "/escrows/"+escrowID.String(), nil,
			map[string]string{"escrowID": escrowID.String()}))

		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("missing account maps to 404", func() {
		s.escrow.EXPECT().GetEscrowAccount(gomock.Any(), escrowID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "escrow account not found"))

		w := httptest.NewRecorder()
		s.handler.handleGetEscrow(w, s.request(http.MethodGet, "/escrows/"+escrowID.String(), nil,
			map[string]string{"escrowID": escrowID.String()}))

		s.Equal(http.StatusNotFound, w.Code)
		s.Equal("not_found", s.decodeError(w)["error"])
	})

	s.Run("malformed escrow id returns 400 without hitting the service", func() {
		w := httptest.NewRecorder()
		s.handler.handleGetEscrow(w, s.request(http.MethodGet, "/escrows/nope", nil,
			map[string]string{"escrowID": "nope"}))

		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *EscrowHandlerSuite) TestHandleDeposit() {
	escrowID := id.EscrowID(uuid.New())

	s.Run("amount travels as a decimal string", func() {
		s.escrow.EXPECT().Deposit(gomock.Any(), escrowID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.EscrowID, params service.DepositParams) (*models.EscrowAccount, error) {
				s.Equal("2500.5", params.Amount.String())
				s.Equal("lender_drawdown", params.Source)
				return &models.EscrowAccount{ID: escrowID}, nil
			})

		body := DepositRequest{Amount: "2500.50", Source: "lender_drawdown"}
		w := httptest.NewRecorder()
		s.handler.handleDeposit(w, s.request(http.MethodPost, "/escrows/x/deposits", body,
			map[string]string{"escrowID": escrowID.String()}))

		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("missing amount returns 400", func() {
		body := DepositRequest{Source: "lender_drawdown"}
		w := httptest.NewRecorder()
		s.handler.handleDeposit(w, s.request(http.MethodPost, "/escrows/x/deposits", body,
			map[string]string{"escrowID": escrowID.String()}))

		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *EscrowHandlerSuite) TestHandleVerifyCondition() {
	escrowID := id.EscrowID(uuid.New())
	conditionID := id.ConditionID(uuid.New())

	s.Run("actor from the auth context is the verifier", func() {
		s.escrow.EXPECT().MarkConditionMet(gomock.Any(), escrowID, conditionID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.EscrowID, _ id.ConditionID, params service.VerifyConditionParams) (*models.EscrowAccount, error) {
				s.Equal(s.actor, params.VerifiedBy)
				s.Equal([]string{"doc-1"}, params.Evidence)
				return &models.EscrowAccount{ID: escrowID}, nil
			})

		body := VerifyConditionRequest{Evidence: []string{"doc-1"}}
		w := httptest.NewRecorder()
		s.handler.handleVerifyCondition(w, s.request(http.MethodPost, "/verify", body,
			map[string]string{"escrowID": escrowID.String(), "conditionID": conditionID.String()}))

		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("already met condition maps to 409", func() {
		s.escrow.EXPECT().MarkConditionMet(gomock.Any(), escrowID, conditionID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConditionAlreadyMet, "condition already met"))

		w := httptest.NewRecorder()
		s.handler.handleVerifyCondition(w, s.request(http.MethodPost, "/verify", VerifyConditionRequest{},
			map[string]string{"escrowID": escrowID.String(), "conditionID": conditionID.String()}))

		s.Equal(http.StatusConflict, w.Code)
		s.Equal("condition_already_met", s.decodeError(w)["error"])
	})
}

func (s *EscrowHandlerSuite) TestHandleCreateRelease() {
	escrowID := id.EscrowID(uuid.New())
	milestoneID := id.MilestoneID(uuid.New())
	releaseID := id.ReleaseID(uuid.New())

	s.Run("milestone release request", func() {
		s.escrow.EXPECT().RequestRelease(gomock.Any(), escrowID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.EscrowID, params service.RequestReleaseParams) (*models.ReleaseRequest, error) {
				s.Require().NotNil(params.MilestoneID)
				s.Equal(milestoneID, *params.MilestoneID)
				s.Nil(params.Amount)
				s.Equal(s.actor, params.RequestedBy)
				return &models.ReleaseRequest{ID: releaseID, Status: models.ReleasePending}, nil
			})

		body := CreateReleaseRequest{MilestoneID: milestoneID.String(), Recipient: "vendor-account"}
		w := httptest.NewRecorder()
		s.handler.handleCreateRelease(w, s.request(http.MethodPost, "/releases", body,
			map[string]string{"escrowID": escrowID.String()}))

		s.Equal(http.StatusCreated, w.Code)
	})

	s.Run("milestone and amount together are rejected", func() {
		body := CreateReleaseRequest{
			MilestoneID: milestoneID.String(),
			Amount:      "100",
			Recipient:   "vendor-account",
		}
		w := httptest.NewRecorder()
		s.handler.handleCreateRelease(w, s.request(http.MethodPost, "/releases", body,
			map[string]string{"escrowID": escrowID.String()}))

		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("insufficient funds maps to 422", func() {
		s.escrow.EXPECT().RequestRelease(gomock.Any(), escrowID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInsufficientFunds, "release amount exceeds held funds"))

		body := CreateReleaseRequest{Amount: "999999", Recipient: "vendor-account"}
		w := httptest.NewRecorder()
		s.handler.handleCreateRelease(w, s.request(http.MethodPost, "/releases", body,
			map[string]string{"escrowID": escrowID.String()}))

		s.Equal(http.StatusUnprocessableEntity, w.Code)
	})
}

func (s *EscrowHandlerSuite) TestHandleApproveRelease() {
	escrowID := id.EscrowID(uuid.New())
	releaseID := id.ReleaseID(uuid.New())
	params := map[string]string{"escrowID": escrowID.String(), "releaseID": releaseID.String()}

	s.Run("approval carries the actor and signature", func() {
		s.escrow.EXPECT().ApproveRelease(gomock.Any(), escrowID, releaseID, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.EscrowID, _ id.ReleaseID, p service.ApproveParams) (*models.ReleaseRequest, error) {
				s.Equal(s.actor, p.ApprovedBy)
				s.Equal("sig-1", p.Signature)
				return &models.ReleaseRequest{ID: releaseID, Status: models.ReleaseReleased}, nil
			})

		body := ApproveReleaseRequest{Signature: "sig-1"}
		w := httptest.NewRecorder()
		s.handler.handleApproveRelease(w, s.request(http.MethodPost, "/approvals", body, params))

		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("duplicate approval maps to 409", func() {
		s.escrow.EXPECT().ApproveRelease(gomock.Any(), escrowID, releaseID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeDuplicateApproval, "participant already approved"))

		w := httptest.NewRecorder()
		s.handler.handleApproveRelease(w, s.request(http.MethodPost, "/approvals", ApproveReleaseRequest{}, params))

		s.Equal(http.StatusConflict, w.Code)
	})

	s.Run("payment failure maps to 502", func() {
		s.escrow.EXPECT().ApproveRelease(gomock.Any(), escrowID, releaseID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodePaymentFailed, "payment execution failed"))

		w := httptest.NewRecorder()
		s.handler.handleApproveRelease(w, s.request(http.MethodPost, "/approvals", ApproveReleaseRequest{}, params))

		s.Equal(http.StatusBadGateway, w.Code)
	})
}

func (s *EscrowHandlerSuite) TestHandleRetryRelease() {
	escrowID := id.EscrowID(uuid.New())
	releaseID := id.ReleaseID(uuid.New())

	s.escrow.EXPECT().RetryRelease(gomock.Any(), escrowID, releaseID, s.actor).
		Return(&models.ReleaseRequest{ID: releaseID, Status: models.ReleaseReleased}, nil)

	w := httptest.NewRecorder()
	s.handler.handleRetryRelease(w, s.request(http.MethodPost, "/retry", nil,
		map[string]string{"escrowID": escrowID.String(), "releaseID": releaseID.String()}))

	s.Equal(http.StatusOK, w.Code)
}

func (s *EscrowHandlerSuite) TestHandleCancelEscrow() {
	escrowID := id.EscrowID(uuid.New())

	s.escrow.EXPECT().CancelEscrowAccount(gomock.Any(), escrowID, "sale fell through").
		Return(&models.EscrowAccount{ID: escrowID, Status: models.AccountCancelled}, nil)

	body := CancelEscrowRequest{Reason: "sale fell through"}
	w := httptest.NewRecorder()
	s.handler.handleCancelEscrow(w, s.request(http.MethodPost, "/cancel", body,
		map[string]string{"escrowID": escrowID.String()}))

	s.Equal(http.StatusOK, w.Code)
}

// TestAdminRouteRequiresToken drives the full router so the admin middleware
// chain is exercised, not just the handler func.
func (s *EscrowHandlerSuite) TestAdminRouteRequiresToken() {
	escrowID := id.EscrowID(uuid.New())
	router := chi.NewRouter()
	s.handler.Register(router)

	s.Run("missing token is rejected", func() {
		req := httptest.NewRequest(http.MethodPost, "/admin/escrows/"+escrowID.String()+"/cancel",
			bytes.NewBufferString(`{"reason":"test"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("valid token reaches the handler", func() {
		s.escrow.EXPECT().CancelEscrowAccount(gomock.Any(), escrowID, "test").
			Return(&models.EscrowAccount{ID: escrowID, Status: models.AccountCancelled}, nil)

		req := httptest.NewRequest(http.MethodPost, "/admin/escrows/"+escrowID.String()+"/cancel",
			bytes.NewBufferString(`{"reason":"test"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Admin-Token", "test-admin-token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		s.Equal(http.StatusOK, w.Code)
	})
}
