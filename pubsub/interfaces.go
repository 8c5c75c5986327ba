package pubsub

type Publisher interface {
	ID() string
	Emit(ev *Event)
	Close()
}

type Subscriber interface {
	ID() string
	FilteredChannel(...string) <-chan *Event
	Channel() <-chan *Event
	Close(<-chan *Event)
}
