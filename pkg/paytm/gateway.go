package paytm

// RefundGateway defines the interface for initiating payment refunds
type RefundGateway interface {
	// InitiateRefund submits a refund for a captured payment.
	// Returns the gateway refund id on success.
	InitiateRefund(orderID, transactionID string, amount float64) (string, error)

	// GetName returns the name of this gateway implementation
	GetName() string
}
