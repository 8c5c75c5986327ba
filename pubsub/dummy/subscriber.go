package dummy

import "github.com/davenham/gowater/pubsub"

// Subscriber for testing - replays canned events to subscribers.
type Subscriber struct {
	Events []*pubsub.Event
}

// ID of Subscriber
func (sub *Subscriber) ID() string {
	return "dummy"
}

func (sub *Subscriber) replayEvents(filter func(*pubsub.Event) bool) <-chan *pubsub.Event {
	ch := make(chan *pubsub.Event)
	go func() {
		for _, ev := range sub.Events {
			if filter(ev) {
				ch <- ev
			}
		}
		close(ch)
	}()
	return ch
}

func (sub *Subscriber) Channel() <-chan *pubsub.Event {
	return sub.replayEvents(func(*pubsub.Event) bool { return true })
}

func (sub *Subscriber) FilteredChannel(topics ...string) <-chan *pubsub.Event {
	set := map[string]bool{}
	for _, topic := range topics {
		set[topic] = true
	}
	return sub.replayEvents(func(ev *pubsub.Event) bool { return pubsub.TopicMatch(set, ev.Topic) })
}

// Close the channel
func (sub *Subscriber) Close(<-chan *pubsub.Event) {
}
