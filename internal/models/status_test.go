package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusTransitions(t *testing.T) {
	cases := []struct {
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{JobOpen, JobInProgress, true},
		{JobOpen, JobCancelled, true},
		{JobOpen, JobCompleted, false},
		{JobInProgress, JobCompleted, true},
		{JobInProgress, JobOpen, false},
		{JobInProgress, JobCancelled, false},
		{JobCompleted, JobOpen, false},
		{JobCompleted, JobInProgress, false},
		{JobCancelled, JobOpen, false},
		{JobCancelled, JobInProgress, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobOpen.Terminal())
	assert.False(t, JobInProgress.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobCancelled.Terminal())
}

func TestProposalStatusTransitions(t *testing.T) {
	for _, to := range []ProposalStatus{ProposalAccepted, ProposalRejected, ProposalWithdrawn} {
		assert.True(t, ProposalPending.CanTransition(to), "pending -> %s", to)
	}

	// all non-pending states are dead ends
	for _, from := range []ProposalStatus{ProposalAccepted, ProposalRejected, ProposalWithdrawn} {
		assert.True(t, from.Terminal(), "%s should be terminal", from)
		for _, to := range []ProposalStatus{ProposalPending, ProposalAccepted, ProposalRejected, ProposalWithdrawn} {
			assert.False(t, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestContractStatusTransitions(t *testing.T) {
	assert.True(t, ContractActive.CanTransition(ContractCompleted))
	assert.True(t, ContractActive.CanTransition(ContractCancelled))
	assert.False(t, ContractCompleted.CanTransition(ContractActive))
	assert.False(t, ContractCancelled.CanTransition(ContractActive))
	assert.True(t, ContractCompleted.Terminal())
	assert.True(t, ContractCancelled.Terminal())
}

func TestDeliveryStatusTransitions(t *testing.T) {
	assert.True(t, DeliveryNone.CanTransition(DeliveryDelivered))
	assert.False(t, DeliveryNone.CanTransition(DeliveryRevisionRequested))
	assert.False(t, DeliveryNone.CanTransition(DeliveryAccepted))

	assert.True(t, DeliveryDelivered.CanTransition(DeliveryRevisionRequested))
	assert.True(t, DeliveryDelivered.CanTransition(DeliveryAccepted))
	assert.False(t, DeliveryDelivered.CanTransition(DeliveryNone))

	// a revision request reopens the delivery slot
	assert.True(t, DeliveryRevisionRequested.CanTransition(DeliveryDelivered))
	assert.False(t, DeliveryRevisionRequested.CanTransition(DeliveryAccepted))

	assert.False(t, DeliveryAccepted.CanTransition(DeliveryDelivered))
}

func TestProfileAverageRating(t *testing.T) {
	p := Profile{}
	assert.Equal(t, 0.0, p.AverageRating())

	p.RatingTotal = 9
	p.RatingCount = 2
	assert.Equal(t, 4.5, p.AverageRating())
}
