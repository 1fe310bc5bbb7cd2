package models

import "time"

type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CardInput is accepted on the wire, forwarded to the payment gateway and
// then discarded. It must never reach a database row or a log line.
type CardInput struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVC      string `json:"cvc"`
}

type CreateOrderRequest struct {
	UserID            string             `json:"user_id,omitempty"`
	CustomerFirstName string             `json:"customer_first_name"`
	CustomerLastName  string             `json:"customer_last_name"`
	DateOfBirth       time.Time          `json:"date_of_birth"`
	ShippingAddressID string             `json:"shipping_address_id"`
	BillingAddressID  string             `json:"billing_address_id"`
	Items             []OrderItemRequest `json:"items"`
	Card              CardInput          `json:"card"`
}

type CreateOrderResponse struct {
	OrderID           string      `json:"order_id"`
	Status            OrderStatus `json:"status"`
	StakeCallRequired bool        `json:"stake_call_required"`
	SnapshotID        string      `json:"snapshot_id"`
	TransactionID     string      `json:"transaction_id"`
}

type ShipOrderResponse struct {
	OrderID              string `json:"order_id"`
	TrackingNumber       string `json:"tracking_number"`
	Carrier              string `json:"carrier"`
	LabelURL             string `json:"label_url"`
	LabelFileKey         string `json:"label_file_key,omitempty"`
	CaptureTransactionID string `json:"capture_transaction_id"`
}

type StakeCallRequest struct {
	Notes string `json:"notes"`
}

type ReportRequest struct {
	Jurisdiction string    `json:"jurisdiction"`
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
}

type ReportResponse struct {
	ReportID   string `json:"report_id"`
	FileKey    string `json:"file_key"`
	FileHash   string `json:"file_hash"`
	OrderCount int    `json:"order_count"`
	RowCount   int    `json:"row_count"`
	Existing   bool   `json:"existing"`
}
