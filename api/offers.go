package api

import "fmt"

// ListSentOffers returns offers where the local user is the prospective buyer.
func (c *Client) ListSentOffers() ([]OfferRecord, error) {
	var resp offerListResponse
	if err := c.get("/offers/sent", &resp); err != nil {
		return nil, err
	}
	return resp.Offers, nil
}

// ListReceivedOffers returns offers where the local user is the seller.
func (c *Client) ListReceivedOffers() ([]OfferRecord, error) {
	var resp offerListResponse
	if err := c.get("/offers/received", &resp); err != nil {
		return nil, err
	}
	return resp.Offers, nil
}

// GetOffer fetches a single offer's current state. Used by the transfer
// session poll loop.
func (c *Client) GetOffer(offerID int64) (*OfferRecord, error) {
	var offer OfferRecord
	if err := c.get(fmt.Sprintf("/offers/%d", offerID), &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// RespondOffer accepts or rejects a received offer. The returned status is
// the server's authoritative state after the action.
func (c *Client) RespondOffer(offerID int64, accept bool) (*RespondOfferResponse, error) {
	var resp RespondOfferResponse
	err := c.post(fmt.Sprintf("/offers/%d/respond", offerID), &RespondOfferRequest{Accept: accept}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
