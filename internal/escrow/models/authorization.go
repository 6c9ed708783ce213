package models

import (
	id "conveyr/pkg/domain"
)

// ApprovalPolicy resolves the named quorum for a release request: the set of
// participant ids whose approval is mandatory before funds move. Quorum
// completeness is membership of every named id, never a count.
//
// The policy is injectable because the rule for requests not tied to a
// milestone is a product decision, not a technical one. The default is the
// conservative account-wide reading.
type ApprovalPolicy func(account *EscrowAccount, request *ReleaseRequest) []id.ParticipantID

// DefaultApprovalPolicy requires every participant with SignatureRequired and
// the APPROVE_RELEASE permission. For milestone-bound requests the set is
// intersected with the milestone's participant set; if that intersection is
// empty, or the request is ad hoc, the account-wide set applies. An empty
// quorum would release funds on request with no sign-off, so the fallback is
// deliberate.
func DefaultApprovalPolicy(account *EscrowAccount, request *ReleaseRequest) []id.ParticipantID {
	accountWide := make([]id.ParticipantID, 0, len(account.Participants))
	for _, p := range account.Participants {
		if p.SignatureRequired && p.HasPermission(PermissionApproveRelease) {
			accountWide = append(accountWide, p.ID)
		}
	}

	if request.MilestoneID == nil {
		return accountWide
	}
	milestone := account.Milestone(*request.MilestoneID)
	if milestone == nil || len(milestone.Participants) == 0 {
		return accountWide
	}

	scoped := make([]id.ParticipantID, 0, len(accountWide))
	for _, pid := range accountWide {
		if milestone.HasParticipant(pid) {
			scoped = append(scoped, pid)
		}
	}
	if len(scoped) == 0 {
		return accountWide
	}
	return scoped
}

// IsApprovalComplete reports whether every required approver appears among the
// request's approvals, by participant id.
func IsApprovalComplete(request *ReleaseRequest, requiredApprovers []id.ParticipantID) bool {
	for _, required := range requiredApprovers {
		if !request.HasApprovalFrom(required) {
			return false
		}
	}
	return true
}
