package runtime

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCancellationToken_OneWay(t *testing.T) {
	token := NewCancellationToken()
	assert.False(t, token.Canceled())

	token.Cancel()
	token.Cancel()
	assert.True(t, token.Canceled())

	select {
	case <-token.Done():
	default:
		t.Fatal("Done not closed after Cancel")
	}
}

func TestCancellationToken_ZeroValueAndNil(t *testing.T) {
	var zero CancellationToken
	assert.False(t, zero.Canceled())
	zero.Cancel()
	assert.True(t, zero.Canceled())

	var nilToken *CancellationToken
	assert.False(t, nilToken.Canceled())
	assert.Nil(t, nilToken.Done())
}

func TestCancellationToken_ConcurrentCancel(t *testing.T) {
	token := NewCancellationToken()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token.Cancel()
		}()
	}

	select {
	case <-token.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("token never fired")
	}
	wg.Wait()
	assert.True(t, token.Canceled())
}
