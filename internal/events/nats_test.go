package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pat-settlement/internal/domain"
)

func startTestNatsServer(t *testing.T) *server.Server {
	t.Helper()
	opts := &server.Options{
		Host: "127.0.0.1",
		Port: -1, // random port
	}

	ns, err := server.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestNATSPublisher_Publish(t *testing.T) {
	ns := startTestNatsServer(t)

	conn, err := DialNATS(ns.ClientURL(), "pat-test")
	require.NoError(t, err)
	defer conn.Close()

	sub, err := conn.SubscribeSync(DefaultSubjectPrefix + ".>")
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	pub := NewNATSPublisher(conn, "")
	require.NoError(t, pub.Publish(context.Background(), sampleRecords(4)))

	var kinds []string
	for i := 0; i < 2; i++ {
		msg, err := sub.NextMsg(2 * time.Second)
		require.NoError(t, err)

		var m Message
		require.NoError(t, json.Unmarshal(msg.Data, &m))
		assert.Equal(t, pub.Subject(m.Kind), msg.Subject)
		assert.Equal(t, m.ID, msg.Header.Get(nats.MsgIdHdr))
		assert.Equal(t, uint64(4), m.Seq)
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []string{domain.EventSegmentPurchased, domain.EventPayoutRecorded}, kinds)
}

func TestNATSPublisher_ClosedConnection(t *testing.T) {
	ns := startTestNatsServer(t)

	conn, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	conn.Close()

	err = NewNATSPublisher(conn, "custom").Publish(context.Background(), sampleRecords(1))
	assert.Error(t, err)
}
