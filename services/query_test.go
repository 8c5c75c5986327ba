package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/davenham/gowater/pubsub"
	"github.com/davenham/gowater/pubsub/dummy"
)

type fakeService struct {
	id string
}

func (s fakeService) ID() string { return s.id }

func (fakeService) Run() error { return nil }

func (fakeService) QueryHandlers() QueryHandlers {
	return QueryHandlers{
		"greet": TextHandler(func(q Question) string { return "hello " + q.Args }),
		"help":  StaticHandler("greet: says hello\n"),
	}
}

func queryEvent(query, replyTo string) *pubsub.Event {
	return pubsub.NewEvent("query", pubsub.Fields{
		"source":   "tester",
		"query":    query,
		"reply_to": replyTo,
	})
}

func answered(em *dummy.Publisher, n int) func() bool {
	return func() bool { return len(em.Events) >= n }
}

func TestHandleQuery(t *testing.T) {
	em := &dummy.Publisher{}
	Publisher = em
	queryables := []Queryable{fakeService{"test"}}

	handleQuery(queryEvent("greet world", "test.reply"), queryables)
	assert.Eventually(t, answered(em, 1), time.Second, time.Millisecond)

	ev := em.Events[0]
	assert.Equal(t, "test.reply", ev.Topic)
	assert.Equal(t, "hello world", ev.StringField("message"))
	assert.Equal(t, "test", ev.Source())
	assert.Equal(t, "tester", ev.StringField("target"))
}

func TestHandleQueryLimited(t *testing.T) {
	em := &dummy.Publisher{}
	Publisher = em
	queryables := []Queryable{fakeService{"test"}}

	// addressed to another service
	handleQuery(queryEvent("other/greet world", "test.reply"), queryables)
	// unknown verb
	handleQuery(queryEvent("frobnicate", "test.reply"), queryables)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, em.Events)

	handleQuery(queryEvent("test/greet world", "test.reply"), queryables)
	assert.Eventually(t, answered(em, 1), time.Second, time.Millisecond)
}

func TestHandleQueryMultiple(t *testing.T) {
	em := &dummy.Publisher{}
	Publisher = em
	queryables := []Queryable{fakeService{"one"}, fakeService{"two"}}

	// a verb shared by several services gets an answer from each,
	// attributed to the right one
	handleQuery(queryEvent("help", "test.reply"), queryables)
	assert.Eventually(t, answered(em, 2), time.Second, time.Millisecond)

	sources := map[string]bool{}
	for _, ev := range em.Events {
		sources[ev.Source()] = true
	}
	assert.Equal(t, map[string]bool{"one": true, "two": true}, sources)
}

func TestHandleQueryAlertFallback(t *testing.T) {
	em := &dummy.Publisher{}
	Publisher = em
	queryables := []Queryable{fakeService{"test"}}

	// no reply_to - answer goes to the alert topic
	ev := pubsub.NewEvent("query", pubsub.Fields{"source": "tester", "query": "help"})
	handleQuery(ev, queryables)
	assert.Eventually(t, answered(em, 1), time.Second, time.Millisecond)
	assert.Equal(t, "alert", em.Events[0].Topic)
	assert.Equal(t, "greet: says hello\n", em.Events[0].StringField("message"))
}
