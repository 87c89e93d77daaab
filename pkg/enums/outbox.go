package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateCourse   OutboxAggregateType = "course"
	AggregateContract OutboxAggregateType = "contract"
)

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateCourse || a == AggregateContract
}

// OutboxEventType maps to the event_type enum in Postgres. Every event
// type belongs to exactly one aggregate.
type OutboxEventType string

const (
	EventCoursePurchased      OutboxEventType = "course_purchased"
	EventCourseRepurchased    OutboxEventType = "course_repurchased"
	EventCourseActivated      OutboxEventType = "course_activated"
	EventCourseDeactivated    OutboxEventType = "course_deactivated"
	EventOwnershipTransferred OutboxEventType = "ownership_transferred"
	EventFundsWithdrawn       OutboxEventType = "funds_withdrawn"
	EventFundsDeposited       OutboxEventType = "funds_deposited"
	EventContractPaused       OutboxEventType = "contract_paused"
	EventContractUnpaused     OutboxEventType = "contract_unpaused"
	EventEmergencyWithdrawn   OutboxEventType = "emergency_withdrawn"
	EventContractDestroyed    OutboxEventType = "contract_destroyed"
)

var courseEvents = []OutboxEventType{
	EventCoursePurchased,
	EventCourseRepurchased,
	EventCourseActivated,
	EventCourseDeactivated,
}

var contractEvents = []OutboxEventType{
	EventOwnershipTransferred,
	EventFundsWithdrawn,
	EventFundsDeposited,
	EventContractPaused,
	EventContractUnpaused,
	EventEmergencyWithdrawn,
	EventContractDestroyed,
}

// Aggregate returns the aggregate the event is keyed by, or "" for an
// unknown event type.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	switch {
	case slices.Contains(courseEvents, e):
		return AggregateCourse
	case slices.Contains(contractEvents, e):
		return AggregateContract
	}
	return ""
}

func (e OutboxEventType) IsValid() bool {
	return e.Aggregate() != ""
}
