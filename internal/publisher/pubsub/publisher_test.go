package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(context.Background(), "popn-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishSendsJSON(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "runs")
	require.NoError(t, err)

	pub := New(client)
	id, err := pub.Publish(ctx, "runs", map[string]any{"runId": "abc", "songs": 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, pub.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "application/json", msgs[0].Attributes[ContentTypeAttr])
	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	require.Equal(t, "abc", got["runId"])
	require.InDelta(t, 3, got["songs"], 0)
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	_, err := New(client).Publish(context.Background(), "runs", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}

func TestPublishMissingTopicFails(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	_, err := New(client).Publish(context.Background(), "missing", map[string]string{"a": "b"})
	require.ErrorContains(t, err, "publish message")
}

func TestOpenRequiresProject(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "")
	require.Error(t, err)
}
