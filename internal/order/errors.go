package order

// Stable error codes surfaced to callers. Input errors are retryable
// with corrected input; compliance codes are terminal by design; gateway
// codes fail closed and the caller decides whether to retry the saga.
const (
	CodeEmptyOrder              = "EMPTY_ORDER"
	CodeShippingAddressNotFound = "SHIPPING_ADDRESS_NOT_FOUND"
	CodeBillingAddressNotFound  = "BILLING_ADDRESS_NOT_FOUND"
	CodeProductsNotFound        = "PRODUCTS_NOT_FOUND"
	CodeDatabaseError           = "DATABASE_ERROR"
	CodeAgeVerificationFailed   = "AGE_VERIFICATION_FAILED"
	CodeOrderBlocked            = "ORDER_BLOCKED"
	CodeInvalidProductPrice     = "INVALID_PRODUCT_PRICE"
	CodeInvalidQuantity         = "INVALID_QUANTITY"
	CodePaymentAuthFailed       = "PAYMENT_AUTHORIZATION_FAILED"
	CodePersistenceFailed       = "ORDER_PERSISTENCE_FAILED"
	CodeOrderNotFound           = "ORDER_NOT_FOUND"
	CodeOrderLocked             = "ORDER_LOCKED"
	CodeShippingNotAllowed      = "SHIPPING_NOT_ALLOWED"
	CodePaymentCaptureFailed    = "PAYMENT_CAPTURE_FAILED"
	CodeShippoError             = "SHIPPO_ERROR"
	CodeInvalidStakeCall        = "INVALID_STAKE_CALL"
	CodeStakeCallExists         = "STAKE_CALL_EXISTS"
)

// Reason codes reported by the fulfillment precondition check. All
// violated preconditions are collected, not just the first.
const (
	ReasonOrderNotPaid         = "ORDER_NOT_PAID"
	ReasonComplianceNotAllowed = "COMPLIANCE_NOT_ALLOWED"
	ReasonPOBoxNotAllowed      = "PO_BOX_NOT_ALLOWED"
	ReasonPaymentNotAuthorized = "PAYMENT_NOT_AUTHORIZED"
	ReasonStakeCallMissing     = "STAKE_CALL_REQUIRED"
)

// MinimumAge is enforced locally even when the verification provider
// returns an approval.
const MinimumAge = 21

const ReasonUnderMinimumAge = "UNDER_21"
