package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"conveyr/internal/escrow/models"
	"conveyr/internal/escrow/service"
	id "conveyr/pkg/domain"
	dErrors "conveyr/pkg/domain-errors"
	pstrings "conveyr/pkg/platform/strings"
)

// Request size limits. Accounts beyond these are not residential escrow;
// bigger structures should be split across transactions.
const (
	maxParticipants = 50
	maxConditions   = 200
	maxMilestones   = 100
	maxEvidenceRefs = 20
)

// CreateEscrowRequest opens an escrow account. Monetary fields travel as
// decimal strings so amounts never pass through floats.
type CreateEscrowRequest struct {
	TransactionID string             `json:"transaction_id"`
	PropertyID    string             `json:"property_id"`
	PropertyPrice string             `json:"property_price"`
	Participants  []ParticipantInput `json:"participants"`
	Conditions    []ConditionInput   `json:"conditions,omitempty"`
	Milestones    []MilestoneInput   `json:"milestones,omitempty"`
	Metadata      map[string]string  `json:"metadata,omitempty"`
}

type ParticipantInput struct {
	ID                string   `json:"id,omitempty"`
	Type              string   `json:"type"`
	Name              string   `json:"name"`
	Contact           string   `json:"contact,omitempty"`
	Role              string   `json:"role,omitempty"`
	Permissions       []string `json:"permissions,omitempty"`
	SignatureRequired bool     `json:"signature_required,omitempty"`
}

type ConditionInput struct {
	ID          string   `json:"id,omitempty"`
	Type        string   `json:"type,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	RequiredBy  []string `json:"required_by"`
}

type MilestoneInput struct {
	ID                string     `json:"id,omitempty"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Order             int        `json:"order"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	ReleaseAmount     string     `json:"release_amount,omitempty"`
	ReleasePercentage string     `json:"release_percentage,omitempty"`
	Conditions        []string   `json:"conditions,omitempty"`
	Dependencies      []string   `json:"dependencies,omitempty"`
	Participants      []string   `json:"participants,omitempty"`
}

// ToParams validates the request into service params. IDs left blank are
// generated so clients can reference sibling entities by supplying their own.
func (r *CreateEscrowRequest) ToParams() (service.CreateAccountParams, error) {
	var params service.CreateAccountParams

	transactionID, err := id.ParseTransactionID(r.TransactionID)
	if err != nil {
		return params, dErrors.New(dErrors.CodeBadRequest, "invalid transaction_id")
	}
	propertyID, err := id.ParsePropertyID(r.PropertyID)
	if err != nil {
		return params, dErrors.New(dErrors.CodeBadRequest, "invalid property_id")
	}
	price, err := parseAmount(r.PropertyPrice, "property_price")
	if err != nil {
		return params, err
	}
	if len(r.Participants) > maxParticipants {
		return params, dErrors.New(dErrors.CodeBadRequest, "too many participants")
	}
	if len(r.Conditions) > maxConditions {
		return params, dErrors.New(dErrors.CodeBadRequest, "too many conditions")
	}
	if len(r.Milestones) > maxMilestones {
		return params, dErrors.New(dErrors.CodeBadRequest, "too many milestones")
	}

	params.TransactionID = transactionID
	params.PropertyID = propertyID
	params.PropertyPrice = price
	params.Metadata = r.Metadata

	for _, p := range r.Participants {
		spec, err := p.toSpec()
		if err != nil {
			return params, err
		}
		params.Participants = append(params.Participants, spec)
	}
	for _, c := range r.Conditions {
		spec, err := c.toSpec()
		if err != nil {
			return params, err
		}
		params.Conditions = append(params.Conditions, spec)
	}
	for _, m := range r.Milestones {
		spec, err := m.toSpec()
		if err != nil {
			return params, err
		}
		params.Milestones = append(params.Milestones, spec)
	}
	return params, nil
}

func (p *ParticipantInput) toSpec() (models.ParticipantSpec, error) {
	var spec models.ParticipantSpec

	pid, err := parseOrNewParticipantID(p.ID)
	if err != nil {
		return spec, err
	}
	pType, err := models.ParseParticipantType(p.Type)
	if err != nil {
		return spec, dErrors.New(dErrors.CodeBadRequest, "invalid participant type: "+p.Type)
	}
	permissions := pstrings.DedupeAndTrim(p.Permissions)
	perms := make([]models.Permission, 0, len(permissions))
	for _, raw := range permissions {
		perm, err := models.ParsePermission(raw)
		if err != nil {
			return spec, dErrors.New(dErrors.CodeBadRequest, "invalid permission: "+raw)
		}
		perms = append(perms, perm)
	}

	return models.ParticipantSpec{
		ID:                pid,
		Type:              pType,
		Name:              p.Name,
		Contact:           p.Contact,
		Role:              models.ParticipantRole(p.Role),
		Permissions:       perms,
		SignatureRequired: p.SignatureRequired,
	}, nil
}

func (c *ConditionInput) toSpec() (models.ConditionSpec, error) {
	var spec models.ConditionSpec

	cid, err := parseOrNewConditionID(c.ID)
	if err != nil {
		return spec, err
	}
	requiredBy := make([]models.ParticipantType, 0, len(c.RequiredBy))
	for _, raw := range c.RequiredBy {
		t, err := models.ParseParticipantType(raw)
		if err != nil {
			return spec, dErrors.New(dErrors.CodeBadRequest, "invalid required_by type: "+raw)
		}
		requiredBy = append(requiredBy, t)
	}

	return models.ConditionSpec{
		ID:          cid,
		Type:        models.ConditionType(c.Type),
		Title:       c.Title,
		Description: c.Description,
		Priority:    models.ConditionPriority(c.Priority),
		RequiredBy:  requiredBy,
	}, nil
}

func (m *MilestoneInput) toSpec() (models.MilestoneSpec, error) {
	var spec models.MilestoneSpec

	mid, err := parseOrNewMilestoneID(m.ID)
	if err != nil {
		return spec, err
	}
	spec = models.MilestoneSpec{
		ID:          mid,
		Title:       m.Title,
		Description: m.Description,
		Order:       m.Order,
		DueDate:     m.DueDate,
	}
	if m.ReleaseAmount != "" {
		amount, err := parseAmount(m.ReleaseAmount, "release_amount")
		if err != nil {
			return spec, err
		}
		spec.ReleaseAmount = &amount
	}
	if m.ReleasePercentage != "" {
		pct, err := parseAmount(m.ReleasePercentage, "release_percentage")
		if err != nil {
			return spec, err
		}
		spec.ReleasePercentage = &pct
	}
	for _, raw := range m.Conditions {
		cid, err := id.ParseConditionID(raw)
		if err != nil {
			return spec, dErrors.New(dErrors.CodeBadRequest, "invalid condition id: "+raw)
		}
		spec.Conditions = append(spec.Conditions, cid)
	}
	for _, raw := range m.Dependencies {
		dep, err := id.ParseMilestoneID(raw)
		if err != nil {
			return spec, dErrors.New(dErrors.CodeBadRequest, "invalid dependency id: "+raw)
		}
		spec.Dependencies = append(spec.Dependencies, dep)
	}
	for _, raw := range m.Participants {
		pid, err := id.ParseParticipantID(raw)
		if err != nil {
			return spec, dErrors.New(dErrors.CodeBadRequest, "invalid participant id: "+raw)
		}
		spec.Participants = append(spec.Participants, pid)
	}
	return spec, nil
}

// DepositRequest records incoming funds.
type DepositRequest struct {
	Amount    string `json:"amount"`
	Source    string `json:"source"`
	Reference string `json:"reference,omitempty"`
}

func (r *DepositRequest) ToParams() (service.DepositParams, error) {
	amount, err := parseAmount(r.Amount, "amount")
	if err != nil {
		return service.DepositParams{}, err
	}
	return service.DepositParams{
		Amount:    amount,
		Source:    r.Source,
		Reference: r.Reference,
	}, nil
}

// VerifyConditionRequest marks a condition met. The verifier is the
// authenticated participant.
type VerifyConditionRequest struct {
	Evidence []string `json:"evidence,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

func (r *VerifyConditionRequest) Validate() error {
	r.Evidence = pstrings.DedupeAndTrim(r.Evidence)
	if len(r.Evidence) > maxEvidenceRefs {
		return dErrors.New(dErrors.CodeBadRequest, "too many evidence references")
	}
	return nil
}

// CreateReleaseRequest proposes a fund release. Either milestone_id or amount
// must be set; the requester is the authenticated participant.
type CreateReleaseRequest struct {
	MilestoneID string `json:"milestone_id,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Recipient   string `json:"recipient"`
	Reason      string `json:"reason,omitempty"`
}

func (r *CreateReleaseRequest) ToParams(requestedBy id.ParticipantID) (service.RequestReleaseParams, error) {
	params := service.RequestReleaseParams{
		Recipient:   r.Recipient,
		Reason:      r.Reason,
		RequestedBy: requestedBy,
	}
	if r.MilestoneID != "" {
		mid, err := id.ParseMilestoneID(r.MilestoneID)
		if err != nil {
			return params, dErrors.New(dErrors.CodeBadRequest, "invalid milestone_id")
		}
		params.MilestoneID = &mid
	}
	if r.Amount != "" {
		if r.MilestoneID != "" {
			return params, dErrors.New(dErrors.CodeBadRequest,
				"milestone_id and amount are mutually exclusive")
		}
		amount, err := parseAmount(r.Amount, "amount")
		if err != nil {
			return params, err
		}
		params.Amount = &amount
	}
	return params, nil
}

// ApproveReleaseRequest records one approval from the authenticated
// participant.
type ApproveReleaseRequest struct {
	Notes     string `json:"notes,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// RejectReleaseRequest terminally rejects a pending release request.
type RejectReleaseRequest struct {
	Reason string `json:"reason"`
}

// CancelEscrowRequest closes an account before completion. Operator-only.
type CancelEscrowRequest struct {
	Reason string `json:"reason"`
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, dErrors.New(dErrors.CodeBadRequest, field+" is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, dErrors.New(dErrors.CodeBadRequest, field+" must be a decimal string")
	}
	return amount, nil
}

func parseOrNewParticipantID(raw string) (id.ParticipantID, error) {
	if raw == "" {
		return id.ParticipantID(uuid.New()), nil
	}
	pid, err := id.ParseParticipantID(raw)
	if err != nil {
		return pid, dErrors.New(dErrors.CodeBadRequest, "invalid participant id: "+raw)
	}
	return pid, nil
}

func parseOrNewConditionID(raw string) (id.ConditionID, error) {
	if raw == "" {
		return id.ConditionID(uuid.New()), nil
	}
	cid, err := id.ParseConditionID(raw)
	if err != nil {
		return cid, dErrors.New(dErrors.CodeBadRequest, "invalid condition id: "+raw)
	}
	return cid, nil
}

func parseOrNewMilestoneID(raw string) (id.MilestoneID, error) {
	if raw == "" {
		return id.MilestoneID(uuid.New()), nil
	}
	mid, err := id.ParseMilestoneID(raw)
	if err != nil {
		return mid, dErrors.New(dErrors.CodeBadRequest, "invalid milestone id: "+raw)
	}
	return mid, nil
}
