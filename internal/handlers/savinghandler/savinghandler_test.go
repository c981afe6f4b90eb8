package savinghandler

import (
	"sync"
	"testing"

	"github.com/bassosimone/acceptx/model"
)

func TestIntegration(t *testing.T) {
	var (
		wg      sync.WaitGroup
		handler Handler
	)
	wg.Add(1)
	go func() {
		handler.OnMeasurement(model.Measurement{
			HandshakeStart: &model.HandshakeStartEvent{
				ConnID: 155,
				Time:   4,
			},
		})
		wg.Done()
	}()
	wg.Wait()
	if len(handler.All) != 1 {
		t.Fatal("measurements not saved")
	}
	if handler.All[0].HandshakeStart == nil {
		t.Fatal("specific event is missing")
	}
	evt := handler.All[0].HandshakeStart
	if evt.Time != 4 || evt.ConnID != 155 {
		t.Fatal("specific event is corrupt")
	}
}
