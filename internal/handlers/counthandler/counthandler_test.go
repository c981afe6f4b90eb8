package counthandler

import (
	"sync"
	"testing"

	"github.com/bassosimone/acceptx/model"
)

func TestIntegration(t *testing.T) {
	const count = 3
	var (
		handler Handler
		wg      sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		for i := 0; i < count; i++ {
			handler.OnMeasurement(model.Measurement{})
		}
		wg.Done()
	}()
	wg.Wait()
	if handler.Count != count {
		t.Fatal("did not record all emitted measurements")
	}
}
