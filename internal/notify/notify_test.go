package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCenter_DrainKeepsOrder(t *testing.T) {
	c := NewCenter()
	c.Toast(Success, "Category created")
	c.Alert(Error, "Oops...", "Post not found")

	got := c.Drain()
	require.Len(t, got, 2)
	require.Equal(t, Toast, got[0].Kind)
	require.Equal(t, "Category created", got[0].Message)
	require.Equal(t, Blocking, got[1].Kind)
	require.Equal(t, "Oops...", got[1].Title)
	require.False(t, got[1].At.IsZero())

	require.Empty(t, c.Drain())
}

func TestCenter_ConcurrentPush(t *testing.T) {
	c := NewCenter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Toast(Info, "hi")
		}()
	}
	wg.Wait()

	select {
	case <-c.Wait():
	case <-time.After(time.Second):
		t.Fatal("no wake up after push")
	}
	require.Len(t, c.Drain(), 50)
}
