package live

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue(t *testing.T) {
	t.Run("read and write", func(t *testing.T) {
		count := NewValue[int]()
		_, ok := count.Read()
		assert.False(t, ok)

		count.Write(10)
		v, ok := count.Read()
		assert.True(t, ok)
		assert.Equal(t, 10, v)
	})

	t.Run("initial value", func(t *testing.T) {
		text := NewValueOf("hello")
		assert.Equal(t, "hello", text.Get())
	})

	t.Run("active subscriber sees every write in order", func(t *testing.T) {
		log := []int{}

		count := NewValue[int]()
		count.Subscribe(Forever, func(v int) {
			log = append(log, v)
		})

		for i := 1; i <= 5; i++ {
			count.Write(i)
		}

		assert.Equal(t, []int{1, 2, 3, 4, 5}, log)
	})

	t.Run("same value written twice is delivered twice", func(t *testing.T) {
		log := []string{}

		text := NewValue[string]()
		text.Subscribe(Forever, func(v string) {
			log = append(log, v)
		})

		text.Write("a")
		text.Write("a")

		assert.Equal(t, []string{"a", "a"}, log)
	})

	t.Run("replays latest on subscribe", func(t *testing.T) {
		log := []string{}

		text := NewValue[string]()
		text.Write("first")
		text.Write("second")

		text.Subscribe(Forever, func(v string) {
			log = append(log, v)
		})

		assert.Equal(t, []string{"second"}, log)
	})

	t.Run("nothing replayed before the first write", func(t *testing.T) {
		calls := 0

		text := NewValue[string]()
		text.Subscribe(Forever, func(string) { calls++ })

		assert.Equal(t, 0, calls)
	})

	t.Run("notifies in registration order", func(t *testing.T) {
		log := []string{}

		count := NewValue[int]()
		for _, name := range []string{"a", "b", "c"} {
			name := name
			count.Subscribe(Forever, func(v int) {
				log = append(log, fmt.Sprintf("%s %d", name, v))
			})
		}

		count.Write(1)

		assert.Equal(t, []string{"a 1", "b 1", "c 1"}, log)
	})

	t.Run("inactive subscriber gets only the latest value once active", func(t *testing.T) {
		log := []int{}

		scope := NewScope()
		count := NewValue[int]()
		count.Subscribe(scope, func(v int) {
			log = append(log, v)
		})

		count.Write(1)
		count.Write(2)
		count.Write(3)
		assert.Empty(t, log)

		scope.Activate()
		assert.Equal(t, []int{3}, log)

		// already seen, no redelivery
		scope.Deactivate()
		scope.Activate()
		assert.Equal(t, []int{3}, log)
	})

	t.Run("unsubscribe stops deliveries", func(t *testing.T) {
		log := []int{}

		count := NewValue[int]()
		sub := count.Subscribe(Forever, func(v int) {
			log = append(log, v)
		})

		count.Write(1)
		count.Unsubscribe(sub.ID())
		count.Write(2)
		count.Write(3)

		assert.Equal(t, []int{1}, log)
		assert.False(t, count.HasSubscribers())
	})

	t.Run("unsubscribe is idempotent", func(t *testing.T) {
		count := NewValue[int]()
		sub := count.Subscribe(Forever, func(int) {})

		assert.NotPanics(t, func() {
			sub.Unsubscribe()
			sub.Unsubscribe()
			count.Unsubscribe(sub.ID())
			count.Unsubscribe(SubscriberID(999))
		})
	})

	t.Run("unsubscribe from within a callback", func(t *testing.T) {
		log := []string{}

		count := NewValue[int]()
		var first *Subscription
		first = count.Subscribe(Forever, func(v int) {
			log = append(log, fmt.Sprintf("first %d", v))
			first.Unsubscribe()
		})
		count.Subscribe(Forever, func(v int) {
			log = append(log, fmt.Sprintf("second %d", v))
		})

		count.Write(1)
		count.Write(2)

		assert.Equal(t, []string{
			"first 1",
			"second 1",
			"second 2",
		}, log)
	})

	t.Run("write from within a callback restarts dispatch", func(t *testing.T) {
		log := []string{}

		count := NewValue[int]()
		count.Subscribe(Forever, func(v int) {
			log = append(log, fmt.Sprintf("a %d", v))
			if v == 1 {
				count.Write(2)
			}
		})
		count.Subscribe(Forever, func(v int) {
			log = append(log, fmt.Sprintf("b %d", v))
		})

		count.Write(1)

		assert.Equal(t, []string{
			"a 1",
			"a 2",
			"b 2",
		}, log)
	})

	t.Run("manual deactivate and activate", func(t *testing.T) {
		log := []int{}

		count := NewValue[int]()
		sub := count.Subscribe(Forever, func(v int) {
			log = append(log, v)
		})

		sub.Deactivate()
		assert.False(t, sub.IsActive())
		count.Write(1)
		count.Write(2)
		assert.Empty(t, log)

		sub.Activate()
		assert.True(t, sub.IsActive())
		assert.Equal(t, []int{2}, log)
	})

	t.Run("plain lifecycle is checked on every write", func(t *testing.T) {
		log := []int{}

		lc := &flagLifecycle{active: true}
		count := NewValue[int]()
		sub := count.Subscribe(lc, func(v int) {
			log = append(log, v)
		})

		count.Write(1)
		lc.active = false
		count.Write(2)
		assert.Equal(t, []int{1}, log)

		lc.active = true
		sub.Activate()
		assert.Equal(t, []int{1, 2}, log)
	})

	t.Run("active subscribers", func(t *testing.T) {
		scope := NewScope()
		count := NewValue[int]()
		count.Subscribe(scope, func(int) {})

		assert.True(t, count.HasSubscribers())
		assert.False(t, count.HasActiveSubscribers())

		scope.Activate()
		assert.True(t, count.HasActiveSubscribers())

		count.UnsubscribeAll()
		assert.False(t, count.HasSubscribers())
	})

	t.Run("concurrent writes", func(t *testing.T) {
		var mu sync.Mutex
		seen := 0

		count := NewValue[int]()
		count.Subscribe(Forever, func(int) {
			mu.Lock()
			seen++
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				count.Write(i)
			}()
		}
		wg.Wait()

		mu.Lock()
		defer mu.Unlock()
		assert.GreaterOrEqual(t, seen, 1)
		assert.LessOrEqual(t, seen, 10)
	})

	t.Run("zero values", func(t *testing.T) {
		err := NewValue[error]()
		err.Write(nil)

		v, ok := err.Read()
		assert.True(t, ok)
		assert.Nil(t, v)
	})
}

type flagLifecycle struct {
	active bool
}

func (l *flagLifecycle) IsActive() bool { return l.active }
