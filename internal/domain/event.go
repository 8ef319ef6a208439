package domain

const (
	EventNameCatalogReady  = "catalog.ready"
	EventNameQuestionReady = "question.ready"
	EventNameLoadFailed    = "load.failed"
)

type EventCatalogReady struct {
	Movies int
}

func (EventCatalogReady) Name() string { return EventNameCatalogReady }

type EventQuestionReady struct {
	Question Question
}

func (EventQuestionReady) Name() string { return EventNameQuestionReady }

// EventLoadFailed reports a surfaced failure. Catalog tells whether the catalog load or
// a question request failed, so the consumer knows which load to retry.
type EventLoadFailed struct {
	Err     error
	Catalog bool
}

func (EventLoadFailed) Name() string { return EventNameLoadFailed }
