package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/davenham/gowater/pubsub/dummy"
)

func TestRPCTimeout(t *testing.T) {
	em := &dummy.Publisher{}
	Publisher = em
	Subscriber = &dummy.Subscriber{} // nobody answers

	_, err := RPC("watering/status")
	assert.EqualError(t, err, "timeout")

	// the query went out with a reply_to for the answer
	assert.Len(t, em.Events, 1)
	ev := em.Events[0]
	assert.Equal(t, "query", ev.Topic)
	assert.Equal(t, "watering/status", ev.StringField("query"))
	assert.Contains(t, ev.StringField("reply_to"), "_rpc.")
}
