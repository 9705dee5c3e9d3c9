package model

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkQueueOrder(t *testing.T) {
	var o ServiceObjectWithActions
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = o.QueueWork(ctx, func(context.Context) error {
			close(started)
			<-release
			mu.Lock()
			order = append(order, 1)
			mu.Unlock()
			return nil
		})
	}()
	<-started
	assert.True(t, o.IsBusy())

	// Вторая и третья работы встают за первой строго по очереди.
	for _, n := range []int{2, 3} {
		n := n
		prev := currentTail(&o.queue)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = o.QueueWork(ctx, func(context.Context) error {
				mu.Lock()
				order = append(order, n)
				mu.Unlock()
				return nil
			})
		}()
		require.Eventually(t, func() bool {
			return currentTail(&o.queue) != prev
		}, time.Second, time.Millisecond)
	}

	close(release)
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
	assert.False(t, o.IsBusy())
}

func currentTail(q *WorkQueue) chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tail
}

func TestWorkQueueCancelledContext(t *testing.T) {
	var o ServiceObjectWithActions

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := o.QueueWork(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestSetNotification(t *testing.T) {
	var o ServiceObjectWithActions

	// Тип по умолчанию — ошибка.
	o.SetNotification("boom", NotificationNone, 0)
	text, typ, _ := o.Notification()
	assert.Equal(t, "boom", text)
	assert.Equal(t, NotificationError, typ)

	// Пробельный текст сбрасывает уведомление целиком.
	o.SetNotification("   ", NotificationWarning, 5)
	text, typ, duration := o.Notification()
	assert.Empty(t, text)
	assert.Equal(t, NotificationNone, typ)
	assert.Zero(t, duration)
}

func TestSubscribeCancel(t *testing.T) {
	var o ServiceObjectWithActions

	var got []PropertyChange
	cancel := o.Subscribe(func(c PropertyChange) { got = append(got, c) })

	o.SetNotification("first", NotificationOK, 0)
	cancel()
	o.SetNotification("second", NotificationOK, 0)

	require.NotEmpty(t, got)
	for _, c := range got {
		assert.NotEqual(t, "second", c.New)
	}
}
