package api

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// GetVehicleHealth fetches the current health snapshot for a vehicle.
// The full response body is preserved in Raw so the UI can render fields
// this client does not interpret.
func (c *Client) GetVehicleHealth(vehicleID string) (*HealthSnapshot, error) {
	path := "/vehicles/" + url.PathEscape(vehicleID) + "/health"
	body, err := c.getRaw(path)
	if err != nil {
		return nil, err
	}
	return DecodeHealthSnapshot(vehicleID, body)
}

// DecodeHealthSnapshot builds the typed envelope from a raw health payload.
// Also used when re-hydrating a snapshot from the durable cache tier.
func DecodeHealthSnapshot(vehicleID string, body []byte) (*HealthSnapshot, error) {
	var snap HealthSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("api decode health: %w", err)
	}
	snap.Raw = body
	if snap.VehicleID == "" {
		snap.VehicleID = vehicleID
	}
	return &snap, nil
}
