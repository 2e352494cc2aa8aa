package domain

import "fmt"

// ChargeControlRequest

type ChargeControlRequest interface {
	ActorRequest
	ChargeControlCommand() string
}

type ChargeControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r ChargeControlRequestMixIn) ChargeControlCommand() string {
	return fmt.Sprintf("%T", r)
}

// ChargeControl commands

// ChargeControlEnableRequest turns the control loop on or off without stopping telemetry tracking
type ChargeControlEnableRequest struct {
	ChargeControlRequestMixIn
	Enable bool
}

type ChargeControlEnableResponse struct {
	ActorResponseMixIn
	Changed bool
}

type ChargeControlStatusRequest struct {
	ChargeControlRequestMixIn
}

type ChargeControlStatusResponse struct {
	ActorResponseMixIn
	Status ControllerStatus
}

// ChargeControlPublishStatusRequest asks the control actor to republish its status sensors
type ChargeControlPublishStatusRequest struct {
	ChargeControlRequestMixIn
}

// ensure interface compliance
var _ ChargeControlRequest = (*ChargeControlEnableRequest)(nil)
var _ ChargeControlRequest = (*ChargeControlStatusRequest)(nil)
var _ ChargeControlRequest = (*ChargeControlPublishStatusRequest)(nil)
