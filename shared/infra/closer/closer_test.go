package closer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseAll(t *testing.T) {
	t.Run("обратный порядок и объединённые ошибки", func(t *testing.T) {
		var order []string
		failure := errors.New("boom")

		c := New(nil)
		c.AddNamed("first", func(context.Context) error {
			order = append(order, "first")
			return nil
		})
		c.AddNamed("second", func(context.Context) error {
			order = append(order, "second")
			return failure
		})
		c.AddNamed("third", func(context.Context) error {
			order = append(order, "third")
			panic("bad close")
		})

		err := c.CloseAll(context.Background())

		require.Error(t, err)
		assert.ErrorIs(t, err, failure)
		assert.ErrorContains(t, err, "panic in close function")
		assert.Equal(t, []string{"third", "second", "first"}, order)
	})

	t.Run("выполняется один раз", func(t *testing.T) {
		calls := 0
		c := New(nil)
		c.AddNamed("counter", func(context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, c.CloseAll(context.Background()))
		require.NoError(t, c.CloseAll(context.Background()))
		assert.Equal(t, 1, calls)
	})

	t.Run("отменённый контекст останавливает остальные", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		c := New(nil)
		c.AddNamed("skipped", func(context.Context) error {
			called = true
			return nil
		})

		err := c.CloseAll(ctx)

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}
