package github

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLimiter struct {
	calls int
	err   error
}

func (l *countingLimiter) Check(context.Context) error {
	l.calls++
	return l.err
}

func threePages(requested *[]int) PageFunc[int] {
	return func(_ context.Context, page int) (Page[int], error) {
		*requested = append(*requested, page)
		switch page {
		case 0:
			return Page[int]{Items: []int{1, 2}, NextPage: 2}, nil
		case 2:
			return Page[int]{Items: []int{3}, NextPage: 3}, nil
		default:
			return Page[int]{Items: []int{4}}, nil
		}
	}
}

func TestPages(t *testing.T) {
	ctx := context.Background()

	t.Run("follows cursors and checks the limiter between pages", func(t *testing.T) {
		var requested []int
		limiter := &countingLimiter{}

		var got []int
		for items, err := range Pages(ctx, limiter, threePages(&requested)) {
			require.NoError(t, err)
			got = append(got, items...)
		}

		assert.Equal(t, []int{1, 2, 3, 4}, got)
		assert.Equal(t, []int{0, 2, 3}, requested)
		assert.Equal(t, 2, limiter.calls)
	})

	t.Run("breaking stops further fetches", func(t *testing.T) {
		var requested []int
		for range Pages(ctx, nil, threePages(&requested)) {
			break
		}
		assert.Equal(t, []int{0}, requested)
	})

	t.Run("limiter failure ends the sequence", func(t *testing.T) {
		var requested []int
		quotaErr := errors.New("quota unavailable")
		limiter := &countingLimiter{err: quotaErr}

		var errs []error
		for _, err := range Pages(ctx, limiter, threePages(&requested)) {
			if err != nil {
				errs = append(errs, err)
			}
		}

		assert.Equal(t, []int{0}, requested)
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], quotaErr)
	})

	t.Run("is single use", func(t *testing.T) {
		var requested []int
		seq := Pages(ctx, nil, threePages(&requested))
		for range seq {
		}

		var second []error
		for items, err := range seq {
			assert.Nil(t, items)
			second = append(second, err)
		}
		require.Len(t, second, 1)
		assert.ErrorIs(t, second[0], ErrPagerExhausted)
		assert.Len(t, requested, 3)
	})
}
