package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensehub.dev/internal/auth"
	"licensehub.dev/internal/license"
	"licensehub.dev/internal/obs"
	"licensehub.dev/internal/stream"
)

type failingStore struct{ Store }

func (failingStore) Append(context.Context, Entry) (Notification, error) {
	return Notification{}, errors.New("db down")
}

func quiet(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	t.Cleanup(obs.SetOutput(&buf))
	return &buf
}

func TestStatusChangeNotification(t *testing.T) {
	quiet(t)
	svc := NewService(NewInMemory())
	reg := license.NewRegistry(license.NewInMemory(), license.WithListener(svc))
	ctx := context.Background()
	actor := license.Actor{ID: "01HADMIN", Username: "root"}

	p, err := reg.CreateProject(ctx, actor, license.NewProject{Name: "Acme", Identifier: "acme"})
	require.NoError(t, err)
	_, err = reg.SetStatus(ctx, actor, p.ID, license.StatusFullyPaid)
	require.NoError(t, err)

	page, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Equal(t, 2, page.TotalCount)
	assert.Equal(t, DefaultLimit, page.Limit)

	latest := page.Notifications[0]
	assert.Equal(t, string(license.EventStatusChanged), latest.EventType)
	assert.Contains(t, latest.Message, "NOT_PAID")
	assert.Contains(t, latest.Message, "FULLY_PAID")
	assert.Contains(t, latest.Message, "root")
	require.NotNil(t, latest.ProjectID)
	assert.Equal(t, p.ID, *latest.ProjectID)
	require.NotNil(t, latest.AdminID)
	assert.Equal(t, "01HADMIN", *latest.AdminID)
	assert.Equal(t, "FULLY_PAID", latest.Details["new_status"])
}

func TestDeleteNotificationDropsProjectReference(t *testing.T) {
	quiet(t)
	svc := NewService(NewInMemory())
	reg := license.NewRegistry(license.NewInMemory(), license.WithListener(svc))
	ctx := context.Background()

	p, err := reg.CreateProject(ctx, license.Actor{}, license.NewProject{Name: "Gone", Identifier: "gone"})
	require.NoError(t, err)
	require.NoError(t, reg.DeleteProject(ctx, license.Actor{Username: "root"}, p.ID))

	page, err := svc.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Notifications, 1)
	n := page.Notifications[0]
	assert.Equal(t, string(license.EventProjectDeleted), n.EventType)
	assert.Nil(t, n.ProjectID)
	assert.Contains(t, n.Message, "Gone")
	assert.Equal(t, p.ID, n.Details["project_id"])
}

func TestEmitSwallowsStoreFailure(t *testing.T) {
	buf := quiet(t)
	svc := NewService(failingStore{})

	assert.NotPanics(t, func() {
		svc.RecordActivity(context.Background(), auth.Activity{Type: auth.EventLoginFailure, Message: "nope"})
	})
	assert.Contains(t, buf.String(), "notification append failed")
}

func TestListPaginationAndUnreadFilter(t *testing.T) {
	quiet(t)
	svc := NewService(NewInMemory())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		svc.Emit(ctx, Entry{EventType: auth.EventLoginSuccess, Message: "login"})
	}

	page, err := svc.List(ctx, Filter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalCount)
	assert.Len(t, page.Notifications, 1)

	first, err := svc.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	read, err := svc.MarkRead(ctx, first.Notifications[0].ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	unread, err := svc.List(ctx, Filter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 4, unread.TotalCount)

	n, err := svc.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	unread, err = svc.List(ctx, Filter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Zero(t, unread.TotalCount)
	assert.NotNil(t, unread.Notifications)

	_, err = svc.MarkRead(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmitPublishesToSubscribers(t *testing.T) {
	quiet(t)
	broker := stream.New[Notification](4)
	svc := NewService(NewInMemory(), WithBroker(broker))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := svc.Subscribe(ctx)
	require.NotNil(t, ch)
	svc.Emit(ctx, Entry{EventType: auth.EventLoginSuccess, Message: "hello"})

	select {
	case n := <-ch:
		assert.Equal(t, "hello", n.Message)
		assert.NotEmpty(t, n.ID)
	case <-time.After(time.Second):
		t.Fatal("no notification published")
	}
}

func TestFilterNormalize(t *testing.T) {
	f := Filter{Limit: 1000, Offset: -3}.Normalize()
	assert.Equal(t, MaxLimit, f.Limit)
	assert.Zero(t, f.Offset)
}
