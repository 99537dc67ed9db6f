// Package contracts owns the job-proposal-contract lifecycle. Job, Proposal
// and Contract status columns are written only here (plus the narrow delivery
// sub-flow), so the transition tables in internal/models stay closed.
package contracts

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/woworkers/woworkers-api/internal/models"
	"github.com/woworkers/woworkers-api/internal/services/reputation"
)

const (
	MinDeliveryTextLen = 20
	MaxDeliveryTextLen = 5000
	MaxReviewComment   = 1000
)

type Service struct {
	DB         *gorm.DB
	Reputation *reputation.Service

	// interleave, when set, runs between the precondition reads and the
	// status swap. Tests use it to simulate a concurrent writer.
	interleave func(tx *gorm.DB)
}

func NewService(db *gorm.DB, rep *reputation.Service) *Service {
	return &Service{DB: db, Reputation: rep}
}

// setJobStatus performs a compare-and-set on the job status column. Zero rows
// affected means another transaction moved the job first.
func setJobStatus(tx *gorm.DB, jobID uuid.UUID, from, to models.JobStatus) error {
	if !from.CanTransition(to) {
		return preconditionf("job cannot move from %q to %q", from, to)
	}
	res := tx.Model(&models.Job{}).
		Where("id = ? AND status = ?", jobID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflictf("job was changed by a concurrent request")
	}
	return nil
}

func setProposalStatus(tx *gorm.DB, proposalID uuid.UUID, from, to models.ProposalStatus) error {
	if !from.CanTransition(to) {
		return preconditionf("proposal cannot move from %q to %q", from, to)
	}
	res := tx.Model(&models.Proposal{}).
		Where("id = ? AND status = ?", proposalID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflictf("proposal was changed by a concurrent request")
	}
	return nil
}

// AcceptProposal converts a pending proposal on an open job into an active
// contract. All effects (accept one proposal, reject the competitors, create
// the contract, move the job to in-progress) apply as one transaction; on any
// error no row changes.
func (s *Service) AcceptProposal(jobID, proposalID, actingClientID uuid.UUID) (uuid.UUID, error) {
	var contractID uuid.UUID

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("job not found")
			}
			return err
		}
		if job.ClientID != actingClientID {
			return preconditionf("only the job owner can accept proposals")
		}
		if job.Status != models.JobOpen {
			return preconditionf("job is no longer open (status %q)", job.Status)
		}

		var prop models.Proposal
		if err := tx.First(&prop, "id = ?", proposalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("proposal not found")
			}
			return err
		}
		if prop.JobID != jobID {
			return preconditionf("proposal does not belong to this job")
		}
		if prop.Status != models.ProposalPending {
			return preconditionf("proposal is no longer pending (status %q)", prop.Status)
		}

		if s.interleave != nil {
			s.interleave(tx)
		}

		// The job row is the serialization point: whoever swaps open ->
		// in-progress first wins, the loser gets a conflict and rolls back.
		if err := setJobStatus(tx, jobID, models.JobOpen, models.JobInProgress); err != nil {
			return err
		}
		if err := setProposalStatus(tx, proposalID, models.ProposalPending, models.ProposalAccepted); err != nil {
			return err
		}

		// Every other pending proposal for the job loses in the same step.
		if err := tx.Model(&models.Proposal{}).
			Where("job_id = ? AND id <> ? AND status = ?", jobID, proposalID, models.ProposalPending).
			Update("status", models.ProposalRejected).Error; err != nil {
			return err
		}

		contract := models.Contract{
			JobID:        jobID,
			ProposalID:   proposalID,
			ClientID:     job.ClientID,
			FreelancerID: prop.FreelancerID,
			Amount:       prop.BidAmount,
			ContractType: models.ContractType(job.BudgetType),
			Status:       models.ContractActive,
			StartDate:    time.Now(),
		}
		if err := tx.Create(&contract).Error; err != nil {
			return err
		}

		contractID = contract.ID
		return nil
	})

	if err != nil {
		return uuid.Nil, err
	}
	return contractID, nil
}

// CompleteContract closes an active contract: accepting the delivery, writing
// the review and finishing the job happen as one client action and one
// transaction. A completion without a prior delivery is allowed; the review
// stands in for acceptance either way.
func (s *Service) CompleteContract(contractID uuid.UUID, rating int, comment string, actingClientID uuid.UUID) error {
	comment = strings.TrimSpace(comment)
	if rating < 1 || rating > 5 {
		return validationf("rating must be an integer between 1 and 5")
	}
	if comment == "" {
		return validationf("review comment is required")
	}
	if utf8.RuneCountInString(comment) > MaxReviewComment {
		return validationf("review comment must be at most %d characters", MaxReviewComment)
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		var contract models.Contract
		if err := tx.First(&contract, "id = ?", contractID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("contract not found")
			}
			return err
		}
		if contract.ClientID != actingClientID {
			return preconditionf("only the contract's client can complete it")
		}
		if contract.Status != models.ContractActive {
			return preconditionf("contract is not active (status %q)", contract.Status)
		}

		if s.interleave != nil {
			s.interleave(tx)
		}

		now := time.Now()
		res := tx.Model(&models.Contract{}).
			Where("id = ? AND status = ?", contractID, models.ContractActive).
			Updates(map[string]any{
				"status":          models.ContractCompleted,
				"end_date":        now,
				"delivery_status": models.DeliveryAccepted,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflictf("contract was changed by a concurrent request")
		}

		review := models.Review{
			ContractID:   contract.ID,
			ClientID:     contract.ClientID,
			FreelancerID: contract.FreelancerID,
			Rating:       rating,
			Comment:      comment,
			Amount:       contract.Amount,
		}
		if err := tx.Create(&review).Error; err != nil {
			return err
		}

		if err := setJobStatus(tx, contract.JobID, models.JobInProgress, models.JobCompleted); err != nil {
			return err
		}

		return s.Reputation.RecordReview(tx, contract.FreelancerID, rating)
	})
}

// SubmitDelivery records the freelancer's work on an active contract. Single
// row, but status gated: allowed only before the first delivery or after a
// revision request.
func (s *Service) SubmitDelivery(contractID uuid.UUID, text string, actingFreelancerID uuid.UUID) error {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n < MinDeliveryTextLen || n > MaxDeliveryTextLen {
		return validationf("delivery description must be between %d and %d characters", MinDeliveryTextLen, MaxDeliveryTextLen)
	}

	var contract models.Contract
	if err := s.DB.First(&contract, "id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundf("contract not found")
		}
		return err
	}
	if contract.FreelancerID != actingFreelancerID {
		return preconditionf("only the contract's freelancer can deliver work")
	}
	if contract.Status != models.ContractActive {
		return preconditionf("contract is not active (status %q)", contract.Status)
	}
	if !contract.DeliveryStatus.CanTransition(models.DeliveryDelivered) {
		return preconditionf("work was already delivered and is awaiting review")
	}

	res := s.DB.Model(&models.Contract{}).
		Where("id = ? AND status = ? AND delivery_status IN ?",
			contractID, models.ContractActive,
			[]models.DeliveryStatus{models.DeliveryNone, models.DeliveryRevisionRequested}).
		Updates(map[string]any{
			"delivery_status": models.DeliveryDelivered,
			"delivery_text":   text,
			"delivered_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflictf("contract was changed by a concurrent request")
	}
	return nil
}

// RequestRevision sends a delivered contract back to the freelancer.
func (s *Service) RequestRevision(contractID, actingClientID uuid.UUID) error {
	var contract models.Contract
	if err := s.DB.First(&contract, "id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundf("contract not found")
		}
		return err
	}
	if contract.ClientID != actingClientID {
		return preconditionf("only the contract's client can request a revision")
	}
	if contract.Status != models.ContractActive {
		return preconditionf("contract is not active (status %q)", contract.Status)
	}
	if contract.DeliveryStatus != models.DeliveryDelivered {
		return preconditionf("a revision can only be requested on delivered work")
	}

	res := s.DB.Model(&models.Contract{}).
		Where("id = ? AND status = ? AND delivery_status = ?",
			contractID, models.ContractActive, models.DeliveryDelivered).
		Update("delivery_status", models.DeliveryRevisionRequested)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflictf("contract was changed by a concurrent request")
	}
	return nil
}

// CancelJob cancels an open job and rejects its pending proposals in one
// transaction. Terminal: a cancelled job never reopens.
func (s *Service) CancelJob(jobID, actingClientID uuid.UUID) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("job not found")
			}
			return err
		}
		if job.ClientID != actingClientID {
			return preconditionf("only the job owner can cancel it")
		}
		if job.Status != models.JobOpen {
			return preconditionf("only open jobs can be cancelled (status %q)", job.Status)
		}

		if err := setJobStatus(tx, jobID, models.JobOpen, models.JobCancelled); err != nil {
			return err
		}

		return tx.Model(&models.Proposal{}).
			Where("job_id = ? AND status = ?", jobID, models.ProposalPending).
			Update("status", models.ProposalRejected).Error
	})
}

// CancelContract cancels an active contract. The job stays in-progress; both
// terminal states are final per the transition tables.
func (s *Service) CancelContract(contractID, actingClientID uuid.UUID) error {
	var contract models.Contract
	if err := s.DB.First(&contract, "id = ?", contractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundf("contract not found")
		}
		return err
	}
	if contract.ClientID != actingClientID {
		return preconditionf("only the contract's client can cancel it")
	}
	if contract.Status != models.ContractActive {
		return preconditionf("contract is not active (status %q)", contract.Status)
	}

	res := s.DB.Model(&models.Contract{}).
		Where("id = ? AND status = ?", contractID, models.ContractActive).
		Updates(map[string]any{
			"status":   models.ContractCancelled,
			"end_date": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflictf("contract was changed by a concurrent request")
	}
	return nil
}

// WithdrawProposal lets a freelancer pull back a pending proposal.
func (s *Service) WithdrawProposal(proposalID, actingFreelancerID uuid.UUID) error {
	var prop models.Proposal
	if err := s.DB.First(&prop, "id = ?", proposalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundf("proposal not found")
		}
		return err
	}
	if prop.FreelancerID != actingFreelancerID {
		return preconditionf("only the submitting freelancer can withdraw a proposal")
	}
	if prop.Status != models.ProposalPending {
		return preconditionf("proposal is no longer pending (status %q)", prop.Status)
	}
	return setProposalStatus(s.DB, proposalID, models.ProposalPending, models.ProposalWithdrawn)
}

// RejectProposal lets the job owner turn down a single proposal without
// touching the job or the other proposals.
func (s *Service) RejectProposal(proposalID, actingClientID uuid.UUID) error {
	var prop models.Proposal
	if err := s.DB.Preload("Job").First(&prop, "id = ?", proposalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundf("proposal not found")
		}
		return err
	}
	if prop.Job == nil || prop.Job.ClientID != actingClientID {
		return preconditionf("only the job owner can reject proposals")
	}
	if prop.Status != models.ProposalPending {
		return preconditionf("proposal is no longer pending (status %q)", prop.Status)
	}
	return setProposalStatus(s.DB, proposalID, models.ProposalPending, models.ProposalRejected)
}
