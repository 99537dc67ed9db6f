package contracts

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/woworkers/woworkers-api/internal/models"
	"github.com/woworkers/woworkers-api/internal/services/reputation"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Job{},
		&models.Proposal{},
		&models.Contract{},
		&models.Review{},
	))

	return db
}

func setupService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	return NewService(db, reputation.NewService(db)), db
}

func seedUser(t *testing.T, db *gorm.DB, role models.Role) models.User {
	t.Helper()

	u := models.User{
		Name:     "user " + uuid.NewString()[:8],
		Email:    uuid.NewString() + "@example.com",
		Password: "x",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(&u).Error)
	require.NoError(t, db.Create(&models.Profile{UserID: u.ID}).Error)
	return u
}

func seedJob(t *testing.T, db *gorm.DB, clientID uuid.UUID) models.Job {
	t.Helper()

	j := models.Job{
		ClientID:    clientID,
		Title:       "Design a landing page",
		Description: strings.Repeat("Need a clean responsive landing page. ", 3),
		Category:    "design",
		BudgetMin:   100,
		BudgetMax:   500,
		BudgetType:  models.BudgetFixed,
		Status:      models.JobOpen,
	}
	require.NoError(t, db.Create(&j).Error)
	return j
}

func seedProposal(t *testing.T, db *gorm.DB, jobID, freelancerID uuid.UUID, bid int64) models.Proposal {
	t.Helper()

	p := models.Proposal{
		JobID:        jobID,
		FreelancerID: freelancerID,
		BidAmount:    bid,
		CoverLetter:  strings.Repeat("I have done this kind of work before. ", 3),
		Timeline:     "7 days",
		Status:       models.ProposalPending,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedActiveContract(t *testing.T, svc *Service, db *gorm.DB) (models.Contract, models.User, models.User) {
	t.Helper()

	client := seedUser(t, db, models.RoleClient)
	freelancer := seedUser(t, db, models.RoleFreelancer)
	job := seedJob(t, db, client.ID)
	prop := seedProposal(t, db, job.ID, freelancer.ID, 300)

	contractID, err := svc.AcceptProposal(job.ID, prop.ID, client.ID)
	require.NoError(t, err)

	var contract models.Contract
	require.NoError(t, db.First(&contract, "id = ?", contractID).Error)
	return contract, client, freelancer
}

func validComment() string {
	return "Great work, delivered on time."
}

func TestAcceptProposal(t *testing.T) {
	svc, db := setupService(t)

	client := seedUser(t, db, models.RoleClient)
	f1 := seedUser(t, db, models.RoleFreelancer)
	f2 := seedUser(t, db, models.RoleFreelancer)
	f3 := seedUser(t, db, models.RoleFreelancer)

	job := seedJob(t, db, client.ID)
	winner := seedProposal(t, db, job.ID, f1.ID, 250)
	loser1 := seedProposal(t, db, job.ID, f2.ID, 200)
	loser2 := seedProposal(t, db, job.ID, f3.ID, 400)

	contractID, err := svc.AcceptProposal(job.ID, winner.ID, client.ID)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, contractID)

	var contract models.Contract
	require.NoError(t, db.First(&contract, "id = ?", contractID).Error)
	assert.Equal(t, job.ID, contract.JobID)
	assert.Equal(t, winner.ID, contract.ProposalID)
	assert.Equal(t, client.ID, contract.ClientID)
	assert.Equal(t, f1.ID, contract.FreelancerID)
	assert.Equal(t, int64(250), contract.Amount)
	assert.Equal(t, models.ContractFixed, contract.ContractType)
	assert.Equal(t, models.ContractActive, contract.Status)
	assert.Equal(t, models.DeliveryNone, contract.DeliveryStatus)
	assert.False(t, contract.StartDate.IsZero())

	var reloadedJob models.Job
	require.NoError(t, db.First(&reloadedJob, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobInProgress, reloadedJob.Status)

	for id, want := range map[uuid.UUID]models.ProposalStatus{
		winner.ID: models.ProposalAccepted,
		loser1.ID: models.ProposalRejected,
		loser2.ID: models.ProposalRejected,
	} {
		var p models.Proposal
		require.NoError(t, db.First(&p, "id = ?", id).Error)
		assert.Equal(t, want, p.Status)
	}

	// exactly one accepted proposal for the job
	var accepted int64
	db.Model(&models.Proposal{}).
		Where("job_id = ? AND status = ?", job.ID, models.ProposalAccepted).
		Count(&accepted)
	assert.Equal(t, int64(1), accepted)
}

func TestAcceptProposalNotFound(t *testing.T) {
	svc, db := setupService(t)
	client := seedUser(t, db, models.RoleClient)
	freelancer := seedUser(t, db, models.RoleFreelancer)
	job := seedJob(t, db, client.ID)
	prop := seedProposal(t, db, job.ID, freelancer.ID, 100)

	var nf *NotFoundError

	_, err := svc.AcceptProposal(uuid.New(), prop.ID, client.ID)
	require.ErrorAs(t, err, &nf)

	_, err = svc.AcceptProposal(job.ID, uuid.New(), client.ID)
	require.ErrorAs(t, err, &nf)
}

func TestAcceptProposalPreconditions(t *testing.T) {
	svc, db := setupService(t)
	client := seedUser(t, db, models.RoleClient)
	other := seedUser(t, db, models.RoleClient)
	freelancer := seedUser(t, db, models.RoleFreelancer)

	var pe *PreconditionError

	t.Run("not the owner", func(t *testing.T) {
		job := seedJob(t, db, client.ID)
		prop := seedProposal(t, db, job.ID, freelancer.ID, 100)
		_, err := svc.AcceptProposal(job.ID, prop.ID, other.ID)
		require.ErrorAs(t, err, &pe)
	})

	t.Run("proposal from another job", func(t *testing.T) {
		jobA := seedJob(t, db, client.ID)
		jobB := seedJob(t, db, client.ID)
		propB := seedProposal(t, db, jobB.ID, freelancer.ID, 100)
		_, err := svc.AcceptProposal(jobA.ID, propB.ID, client.ID)
		require.ErrorAs(t, err, &pe)
	})

	t.Run("proposal no longer pending", func(t *testing.T) {
		job := seedJob(t, db, client.ID)
		prop := seedProposal(t, db, job.ID, freelancer.ID, 100)
		require.NoError(t, svc.WithdrawProposal(prop.ID, freelancer.ID))
		_, err := svc.AcceptProposal(job.ID, prop.ID, client.ID)
		require.ErrorAs(t, err, &pe)
	})

	t.Run("job not open after first accept", func(t *testing.T) {
		job := seedJob(t, db, client.ID)
		p1 := seedProposal(t, db, job.ID, freelancer.ID, 100)
		f2 := seedUser(t, db, models.RoleFreelancer)
		p2 := seedProposal(t, db, job.ID, f2.ID, 150)

		_, err := svc.AcceptProposal(job.ID, p1.ID, client.ID)
		require.NoError(t, err)

		_, err = svc.AcceptProposal(job.ID, p2.ID, client.ID)
		require.ErrorAs(t, err, &pe)

		// no second contract appeared
		var contracts int64
		db.Model(&models.Contract{}).Where("job_id = ?", job.ID).Count(&contracts)
		assert.Equal(t, int64(1), contracts)
	})
}

func TestAcceptProposalConcurrentConflict(t *testing.T) {
	svc, db := setupService(t)
	client := seedUser(t, db, models.RoleClient)
	freelancer := seedUser(t, db, models.RoleFreelancer)
	job := seedJob(t, db, client.ID)
	prop := seedProposal(t, db, job.ID, freelancer.ID, 100)

	// a competing writer flips the job between our read and our swap
	svc.interleave = func(tx *gorm.DB) {
		tx.Model(&models.Job{}).
			Where("id = ?", job.ID).
			Update("status", models.JobInProgress)
	}

	var ce *ConflictError
	_, err := svc.AcceptProposal(job.ID, prop.ID, client.ID)
	require.ErrorAs(t, err, &ce)

	// everything rolled back, including the interleaved write
	svc.interleave = nil
	var reloadedJob models.Job
	require.NoError(t, db.First(&reloadedJob, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobOpen, reloadedJob.Status)

	var reloadedProp models.Proposal
	require.NoError(t, db.First(&reloadedProp, "id = ?", prop.ID).Error)
	assert.Equal(t, models.ProposalPending, reloadedProp.Status)

	var contracts int64
	db.Model(&models.Contract{}).Where("job_id = ?", job.ID).Count(&contracts)
	assert.Equal(t, int64(0), contracts)
}

func TestAcceptProposalRollsBackOnContractInsertFailure(t *testing.T) {
	svc, db := setupService(t)
	client := seedUser(t, db, models.RoleClient)
	f1 := seedUser(t, db, models.RoleFreelancer)
	f2 := seedUser(t, db, models.RoleFreelancer)
	job := seedJob(t, db, client.ID)
	winner := seedProposal(t, db, job.ID, f1.ID, 100)
	other := seedProposal(t, db, job.ID, f2.ID, 150)

	// occupy the proposal's contract slot so the final insert violates the
	// unique index and forces a rollback of the whole transaction
	require.NoError(t, db.Create(&models.Contract{
		JobID:        uuid.New(),
		ProposalID:   winner.ID,
		ClientID:     client.ID,
		FreelancerID: f1.ID,
		Amount:       1,
		Status:       models.ContractActive,
		StartDate:    time.Now(),
	}).Error)

	_, err := svc.AcceptProposal(job.ID, winner.ID, client.ID)
	require.Error(t, err)

	var reloadedJob models.Job
	require.NoError(t, db.First(&reloadedJob, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobOpen, reloadedJob.Status)

	for _, id := range []uuid.UUID{winner.ID, other.ID} {
		var p models.Proposal
		require.NoError(t, db.First(&p, "id = ?", id).Error)
		assert.Equal(t, models.ProposalPending, p.Status)
	}
}

func TestCompleteContract(t *testing.T) {
	svc, db := setupService(t)
	contract, client, freelancer := seedActiveContract(t, svc, db)

	require.NoError(t, svc.CompleteContract(contract.ID, 5, validComment(), client.ID))

	var reloaded models.Contract
	require.NoError(t, db.First(&reloaded, "id = ?", contract.ID).Error)
	assert.Equal(t, models.ContractCompleted, reloaded.Status)
	assert.Equal(t, models.DeliveryAccepted, reloaded.DeliveryStatus)
	require.NotNil(t, reloaded.EndDate)

	var job models.Job
	require.NoError(t, db.First(&job, "id = ?", contract.JobID).Error)
	assert.Equal(t, models.JobCompleted, job.Status)

	var reviews []models.Review
	require.NoError(t, db.Where("contract_id = ?", contract.ID).Find(&reviews).Error)
	require.Len(t, reviews, 1)
	assert.Equal(t, 5, reviews[0].Rating)
	assert.Equal(t, validComment(), reviews[0].Comment)
	assert.Equal(t, contract.Amount, reviews[0].Amount)
	assert.Equal(t, freelancer.ID, reviews[0].FreelancerID)

	var profile models.Profile
	require.NoError(t, db.First(&profile, "user_id = ?", freelancer.ID).Error)
	assert.Equal(t, int64(5), profile.RatingTotal)
	assert.Equal(t, int64(1), profile.RatingCount)
	assert.Equal(t, int64(1), profile.JobsCompleted)
}

func TestCompleteContractValidation(t *testing.T) {
	svc, db := setupService(t)
	contract, client, _ := seedActiveContract(t, svc, db)

	var ve *ValidationError
	cases := []struct {
		name    string
		rating  int
		comment string
	}{
		{"rating too low", 0, validComment()},
		{"rating too high", 6, validComment()},
		{"empty comment", 4, "   "},
		{"comment too long", 4, strings.Repeat("a", MaxReviewComment+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.CompleteContract(contract.ID, tc.rating, tc.comment, client.ID)
			require.ErrorAs(t, err, &ve)
		})
	}

	// contract untouched by the rejected attempts
	var reloaded models.Contract
	require.NoError(t, db.First(&reloaded, "id = ?", contract.ID).Error)
	assert.Equal(t, models.ContractActive, reloaded.Status)

	var reviews int64
	db.Model(&models.Review{}).Where("contract_id = ?", contract.ID).Count(&reviews)
	assert.Equal(t, int64(0), reviews)
}

func TestCompleteContractPreconditions(t *testing.T) {
	svc, db := setupService(t)
	contract, client, _ := seedActiveContract(t, svc, db)

	var nf *NotFoundError
	err := svc.CompleteContract(uuid.New(), 5, validComment(), client.ID)
	require.ErrorAs(t, err, &nf)

	var pe *PreconditionError
	stranger := seedUser(t, db, models.RoleClient)
	err = svc.CompleteContract(contract.ID, 5, validComment(), stranger.ID)
	require.ErrorAs(t, err, &pe)

	require.NoError(t, svc.CompleteContract(contract.ID, 5, validComment(), client.ID))
	err = svc.CompleteContract(contract.ID, 5, validComment(), client.ID)
	require.ErrorAs(t, err, &pe)

	// still exactly one review
	var reviews int64
	db.Model(&models.Review{}).Where("contract_id = ?", contract.ID).Count(&reviews)
	assert.Equal(t, int64(1), reviews)
}

func TestCompleteContractConcurrentConflict(t *testing.T) {
	svc, db := setupService(t)
	contract, client, _ := seedActiveContract(t, svc, db)

	svc.interleave = func(tx *gorm.DB) {
		tx.Model(&models.Contract{}).
			Where("id = ?", contract.ID).
			Update("status", models.ContractCancelled)
	}

	var ce *ConflictError
	err := svc.CompleteContract(contract.ID, 5, validComment(), client.ID)
	require.ErrorAs(t, err, &ce)

	svc.interleave = nil
	var reloaded models.Contract
	require.NoError(t, db.First(&reloaded, "id = ?", contract.ID).Error)
	assert.Equal(t, models.ContractActive, reloaded.Status)
}

func TestCompleteContractRollsBackWhenAggregatesFail(t *testing.T) {
	svc, db := setupService(t)
	contract, client, freelancer := seedActiveContract(t, svc, db)

	// no profile row means the reputation update cannot land
	require.NoError(t, db.Where("user_id = ?", freelancer.ID).Delete(&models.Profile{}).Error)

	err := svc.CompleteContract(contract.ID, 5, validComment(), client.ID)
	require.Error(t, err)

	var reloaded models.Contract
	require.NoError(t, db.First(&reloaded, "id = ?", contract.ID).Error)
	assert.Equal(t, models.ContractActive, reloaded.Status)
	assert.Nil(t, reloaded.EndDate)

	var job models.Job
	require.NoError(t, db.First(&job, "id = ?", contract.JobID).Error)
	assert.Equal(t, models.JobInProgress, job.Status)

	var reviews int64
	db.Model(&models.Review{}).Where("contract_id = ?", contract.ID).Count(&reviews)
	assert.Equal(t, int64(0), reviews)
}

func TestSubmitDelivery(t *testing.T) {
	svc, db := setupService(t)
	contract, _, freelancer := seedActiveContract(t, svc, db)

	text := strings.Repeat("Here is the finished work. ", 2)
	require.NoError(t, svc.SubmitDelivery(contract.ID, text, freelancer.ID))

	var reloaded models.Contract
	require.NoError(t, db.First(&reloaded, "id = ?", contract.ID).Error)
	assert.Equal(t, models.DeliveryDelivered, reloaded.DeliveryStatus)
	assert.Equal(t, strings.TrimSpace(text), reloaded.DeliveryText)
	require.NotNil(t, reloaded.DeliveredAt)

	// a second delivery must wait for a revision request
	var pe *PreconditionError
	err := svc.SubmitDelivery(contract.ID, text, freelancer.ID)
	require.ErrorAs(t, err, &pe)
}

func TestSubmitDeliveryValidation(t *testing.T) {
	svc, db := setupService(t)
	contract, _, freelancer := seedActiveContract(t, svc, db)

	var ve *ValidationError
	err := svc.SubmitDelivery(contract.ID, "too short", freelancer.ID)
	require.ErrorAs(t, err, &ve)

	err = svc.SubmitDelivery(contract.ID, strings.Repeat("a", MaxDeliveryTextLen+1), freelancer.ID)
	require.ErrorAs(t, err, &ve)

	var pe *PreconditionError
	stranger := seedUser(t, db, models.RoleFreelancer)
	err = svc.SubmitDelivery(contract.ID, strings.Repeat("valid text ", 3), stranger.ID)
	require.ErrorAs(t, err, &pe)
}

func TestRequestRevisionFlow(t *testing.T) {
	svc, db := setupService(t)
	contract, client, freelancer := seedActiveContract(t, svc, db)

	// no delivery yet, nothing to send back
	var pe *PreconditionError
	err := svc.RequestRevision(contract.ID, client.ID)
	require.ErrorAs(t, err, &pe)

	text := strings.Repeat("Work attached. ", 3)
	require.NoError(t, svc.SubmitDelivery(contract.ID, text, freelancer.ID))
	require.NoError(t, svc.RequestRevision(contract.ID, client.ID))

	var reloaded models.Contract
	require.NoError(t, db.First(&reloaded, "id = ?", contract.ID).Error)
	assert.Equal(t, models.DeliveryRevisionRequested, reloaded.DeliveryStatus)

	// the freelancer can deliver again after a revision request
	require.NoError(t, svc.SubmitDelivery(contract.ID, text+"updated", freelancer.ID))

	// only the client side can ask for revisions
	err = svc.RequestRevision(contract.ID, freelancer.ID)
	require.ErrorAs(t, err, &pe)
}

func TestCancelJob(t *testing.T) {
	svc, db := setupService(t)
	client := seedUser(t, db, models.RoleClient)
	freelancer := seedUser(t, db, models.RoleFreelancer)
	job := seedJob(t, db, client.ID)
	prop := seedProposal(t, db, job.ID, freelancer.ID, 100)

	var pe *PreconditionError
	stranger := seedUser(t, db, models.RoleClient)
	err := svc.CancelJob(job.ID, stranger.ID)
	require.ErrorAs(t, err, &pe)

	require.NoError(t, svc.CancelJob(job.ID, client.ID))

	var reloadedJob models.Job
	require.NoError(t, db.First(&reloadedJob, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobCancelled, reloadedJob.Status)

	var reloadedProp models.Proposal
	require.NoError(t, db.First(&reloadedProp, "id = ?", prop.ID).Error)
	assert.Equal(t, models.ProposalRejected, reloadedProp.Status)

	// terminal, cancelling again fails
	err = svc.CancelJob(job.ID, client.ID)
	require.ErrorAs(t, err, &pe)
}

func TestCancelContract(t *testing.T) {
	svc, db := setupService(t)
	contract, client, _ := seedActiveContract(t, svc, db)

	require.NoError(t, svc.CancelContract(contract.ID, client.ID))

	var reloaded models.Contract
	require.NoError(t, db.First(&reloaded, "id = ?", contract.ID).Error)
	assert.Equal(t, models.ContractCancelled, reloaded.Status)
	require.NotNil(t, reloaded.EndDate)

	var pe *PreconditionError
	err := svc.CancelContract(contract.ID, client.ID)
	require.ErrorAs(t, err, &pe)

	// a cancelled contract cannot be completed afterwards
	err = svc.CompleteContract(contract.ID, 5, validComment(), client.ID)
	require.ErrorAs(t, err, &pe)
}

func TestWithdrawAndRejectProposal(t *testing.T) {
	svc, db := setupService(t)
	client := seedUser(t, db, models.RoleClient)
	freelancer := seedUser(t, db, models.RoleFreelancer)
	job := seedJob(t, db, client.ID)

	var pe *PreconditionError

	t.Run("withdraw", func(t *testing.T) {
		prop := seedProposal(t, db, job.ID, freelancer.ID, 100)

		err := svc.WithdrawProposal(prop.ID, client.ID)
		require.ErrorAs(t, err, &pe)

		require.NoError(t, svc.WithdrawProposal(prop.ID, freelancer.ID))

		var reloaded models.Proposal
		require.NoError(t, db.First(&reloaded, "id = ?", prop.ID).Error)
		assert.Equal(t, models.ProposalWithdrawn, reloaded.Status)

		err = svc.WithdrawProposal(prop.ID, freelancer.ID)
		require.ErrorAs(t, err, &pe)
	})

	t.Run("reject", func(t *testing.T) {
		f2 := seedUser(t, db, models.RoleFreelancer)
		prop := seedProposal(t, db, job.ID, f2.ID, 120)

		err := svc.RejectProposal(prop.ID, f2.ID)
		require.ErrorAs(t, err, &pe)

		require.NoError(t, svc.RejectProposal(prop.ID, client.ID))

		var reloaded models.Proposal
		require.NoError(t, db.First(&reloaded, "id = ?", prop.ID).Error)
		assert.Equal(t, models.ProposalRejected, reloaded.Status)
	})
}

// TestMarketplaceScenario walks the whole lifecycle: two competing proposals,
// acceptance, delivery, a revision round, completion with a review, and the
// reputation aggregates at the end.
func TestMarketplaceScenario(t *testing.T) {
	svc, db := setupService(t)
	rep := reputation.NewService(db)

	client := seedUser(t, db, models.RoleClient)
	alice := seedUser(t, db, models.RoleFreelancer)
	bob := seedUser(t, db, models.RoleFreelancer)

	job := seedJob(t, db, client.ID)
	fromAlice := seedProposal(t, db, job.ID, alice.ID, 350)
	fromBob := seedProposal(t, db, job.ID, bob.ID, 300)

	contractID, err := svc.AcceptProposal(job.ID, fromAlice.ID, client.ID)
	require.NoError(t, err)

	var bobsProposal models.Proposal
	require.NoError(t, db.First(&bobsProposal, "id = ?", fromBob.ID).Error)
	assert.Equal(t, models.ProposalRejected, bobsProposal.Status)

	text := strings.Repeat("First draft attached, feedback welcome. ", 2)
	require.NoError(t, svc.SubmitDelivery(contractID, text, alice.ID))
	require.NoError(t, svc.RequestRevision(contractID, client.ID))
	require.NoError(t, svc.SubmitDelivery(contractID, text+"Revised per feedback.", alice.ID))

	require.NoError(t, svc.CompleteContract(contractID, 4, "Solid work after one revision.", client.ID))

	avg, count, err := rep.Summary(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, avg)
	assert.Equal(t, int64(1), count)

	var finalJob models.Job
	require.NoError(t, db.First(&finalJob, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobCompleted, finalJob.Status)
	assert.True(t, finalJob.Status.Terminal())
}
