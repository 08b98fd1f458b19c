package timex

import (
	"testing"
	"time"
)

func TestFromMs(t *testing.T) {
	if FromMs(250) != 250*time.Millisecond || FromMs(uint32(0)) != 0 {
		t.Fatal("FromMs conversion failed")
	}
	if NowMs() <= 0 {
		t.Fatal("NowMs not positive")
	}
}
