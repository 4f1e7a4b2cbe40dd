package engine

import "mecanimovil/api"

// transferEmitter bridges the transfer package's emitter interface to the EventBus.
type transferEmitter struct {
	bus *EventBus
}

func (e *transferEmitter) EmitTransferCompleted(offerID int64, vehicle string, newOwner *api.Counterpart) {
	e.bus.Emit(Event{Type: EventTransferCompleted, Payload: TransferCompletedEvent{
		OfferID:  offerID,
		Vehicle:  vehicle,
		NewOwner: newOwner,
	}})
}
