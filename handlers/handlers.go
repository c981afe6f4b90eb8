// Package handlers contains default model.Handler handlers.
package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/bassosimone/acceptx/model"
	"github.com/m-lab/go/rtx"
)

type stdoutHandler struct{}

func (stdoutHandler) OnMeasurement(m model.Measurement) {
	data, err := json.Marshal(m)
	rtx.Must(err, "unexpected json.Marshal failure")
	fmt.Printf("%s\n", string(data))
}

// StdoutHandler is a Handler that logs on stdout.
var StdoutHandler stdoutHandler

type noHandler struct{}

func (noHandler) OnMeasurement(m model.Measurement) {
}

// NoHandler is a Handler that does not print anything.
var NoHandler noHandler
