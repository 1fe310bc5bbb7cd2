// Package shippo is the HTTP client for the carrier label provider. A
// single bounded-timeout call purchases a label with adult-signature
// service; there are no retries here, the fulfillment saga surfaces
// failures to the caller.
package shippo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-orderflow/internal/gateway"
	"ms-orderflow/internal/models"
)

type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
}

func NewClient(baseURL, apiToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, apiToken: apiToken, http: httpClient}
}

type addressPayload struct {
	Name    string `json:"name"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
}

type labelRequest struct {
	AddressFrom       addressPayload `json:"address_from"`
	AddressTo         addressPayload `json:"address_to"`
	Parcel            parcelPayload  `json:"parcel"`
	SignatureRequired string         `json:"signature_confirmation"`
}

type parcelPayload struct {
	Length       float64 `json:"length"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	DistanceUnit string  `json:"distance_unit"`
	Weight       float64 `json:"weight"`
	MassUnit     string  `json:"mass_unit"`
}

type labelResponse struct {
	Status         string `json:"status"`
	LabelURL       string `json:"label_url"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	ServiceLevel   string `json:"servicelevel_name"`
	Messages       []struct {
		Code string `json:"code"`
		Text string `json:"text"`
	} `json:"messages"`
}

func (c *Client) CreateLabel(ctx context.Context, from, to models.Address, parcel gateway.Parcel) (*gateway.Label, error) {
	// Defense in depth: the saga checks this too, but a PO box must never
	// reach the carrier regardless of who calls us.
	if to.IsPOBox() {
		return nil, &gateway.Error{Code: "PO_BOX_DESTINATION", Message: "adult signature service cannot deliver to a PO box"}
	}

	reqBody := labelRequest{
		AddressFrom:       toPayload(from),
		AddressTo:         toPayload(to),
		SignatureRequired: "ADULT_SIGNATURE",
		Parcel: parcelPayload{
			Length:       parcel.LengthIn,
			Width:        parcel.WidthIn,
			Height:       parcel.HeightIn,
			DistanceUnit: "in",
			Weight:       parcel.WeightOz,
			MassUnit:     "oz",
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &gateway.Error{Code: "BAD_REQUEST", Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewBuffer(body))
	if err != nil {
		return nil, &gateway.Error{Code: "BAD_REQUEST", Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "ShippoToken "+c.apiToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &gateway.Error{Code: "CARRIER_UNREACHABLE", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &gateway.Error{
			Code:    fmt.Sprintf("CARRIER_HTTP_%d", resp.StatusCode),
			Message: "label provider returned an error",
		}
	}

	var lr labelResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, &gateway.Error{Code: "BAD_RESPONSE", Message: err.Error()}
	}

	if lr.Status != "SUCCESS" {
		code := "LABEL_REJECTED"
		msg := "label purchase was not successful"
		if len(lr.Messages) > 0 {
			if lr.Messages[0].Code != "" {
				code = lr.Messages[0].Code
			}
			msg = lr.Messages[0].Text
		}
		return nil, &gateway.Error{Code: code, Message: msg}
	}

	return &gateway.Label{
		URL:            lr.LabelURL,
		TrackingNumber: lr.TrackingNumber,
		Carrier:        lr.Carrier,
		ServiceLevel:   lr.ServiceLevel,
	}, nil
}

func toPayload(a models.Address) addressPayload {
	return addressPayload{
		Name:    a.FirstName + " " + a.LastName,
		Street1: a.Street1,
		Street2: a.Street2,
		City:    a.City,
		State:   a.State,
		Zip:     a.PostalCode,
		Country: a.Country,
		Phone:   a.Phone,
	}
}
