package events

type EventRepo interface {
	Insert(event *Event) error
	Update(event *Event) error
	Delete(ownerID, id string) error
	Get(ownerID, id string) (*Event, error)
	ListByOwner(ownerID string) ([]*Event, error)
}
