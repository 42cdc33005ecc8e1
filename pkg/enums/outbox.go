package enums

// OutboxStatus tracks delivery progress of an outbox event.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

func (s OutboxStatus) String() string {
	return string(s)
}

// OutboxAggregate names the entity an outbox event belongs to.
type OutboxAggregate string

const (
	OutboxAggregateOrder OutboxAggregate = "order"
)

func (a OutboxAggregate) String() string {
	return string(a)
}

// OutboxEventType names the domain event carried by an outbox row.
type OutboxEventType string

const (
	OutboxEventOrderCreated       OutboxEventType = "order.created"
	OutboxEventOrderStatusChanged OutboxEventType = "order.status_changed"
)

func (t OutboxEventType) String() string {
	return string(t)
}
