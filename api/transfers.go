package api

import "fmt"

// GenerateTransferToken mints a single-use QR credential for an accepted
// offer. The server rejects offers that are not in the accepted state; the
// client does not pre-validate.
func (c *Client) GenerateTransferToken(offerID int64) (*TransferToken, error) {
	var tok TransferToken
	if err := c.post(fmt.Sprintf("/offers/%d/transfer-token", offerID), nil, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// CompleteTransfer redeems a scanned token on the buyer side. Expired,
// invalid, or already-used tokens come back as an *APIError with a token
// code (see IsTokenError); the buyer may re-scan and retry.
func (c *Client) CompleteTransfer(token string) (*TransferResult, error) {
	var result TransferResult
	if err := c.post("/transfers/complete", &CompleteTransferRequest{Token: token}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
