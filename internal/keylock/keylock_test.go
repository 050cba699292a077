package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockSerializesSameKey(t *testing.T) {
	var l Locker
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("book:1")
			defer unlock()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Empty(t, l.locks, "released keys are dropped")
}

func TestLockDifferentKeysDoNotBlock(t *testing.T) {
	var l Locker

	unlockA := l.Lock("user:1")
	done := make(chan struct{})
	go func() {
		unlockB := l.Lock("user:2")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}
