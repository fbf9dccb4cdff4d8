package model

import "fmt"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON             = "INVALID_JSON"
	ErrCodeValidationFailed        = "VALIDATION_FAILED"
	ErrCodeProductNotFound         = "PRODUCT_NOT_FOUND"
	ErrCodeVariantNotFound         = "VARIANT_NOT_FOUND"
	ErrCodeInsufficientStock       = "INSUFFICIENT_STOCK"
	ErrCodeInvalidQuantity         = "INVALID_QUANTITY"
	ErrCodeEmptyCart               = "EMPTY_CART"
	ErrCodeCartNotFound            = "CART_NOT_FOUND"
	ErrCodeOrderNotFound           = "ORDER_NOT_FOUND"
	ErrCodeInvalidIdentity         = "INVALID_IDENTITY"
	ErrCodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	ErrCodeTransactionAborted      = "TRANSACTION_ABORTED"
	ErrCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken              = "EMAIL_TAKEN"
	ErrCodeSlugTaken               = "SLUG_TAKEN"
	ErrCodeUnauthorised            = "UNAUTHORIZED"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeNotFound                = "NOT_FOUND"
	ErrCodeInternalError           = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrProductNotFound         = NewDomainError(ErrCodeProductNotFound, "Product not found")
	ErrVariantNotFound         = NewDomainError(ErrCodeVariantNotFound, "Selected size or colour is not available")
	ErrInsufficientStock       = NewDomainError(ErrCodeInsufficientStock, "Not enough stock available")
	ErrInvalidQuantity         = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrEmptyCart               = NewDomainError(ErrCodeEmptyCart, "Please add items to your cart")
	ErrCartNotFound            = NewDomainError(ErrCodeCartNotFound, "Cart or cart item not found")
	ErrOrderNotFound           = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrInvalidIdentity         = NewDomainError(ErrCodeInvalidIdentity, "Exactly one of user ID or session ID is required")
	ErrInvalidStatusTransition = NewDomainError(ErrCodeInvalidStatusTransition, "Status transition is not allowed")
	ErrTransactionAborted      = NewDomainError(ErrCodeTransactionAborted, "Something went wrong, please try again")
	ErrInvalidCredentials      = NewDomainError(ErrCodeInvalidCredentials, "Invalid email or password")
	ErrEmailTaken              = NewDomainError(ErrCodeEmailTaken, "An account with this email already exists")
	ErrSlugTaken               = NewDomainError(ErrCodeSlugTaken, "A product with this slug already exists")
	ErrContactRequired         = NewDomainError(ErrCodeValidationFailed, "Guest checkout requires contact details")
)

// StockError reports which line of a request could not be covered by stock.
// It unwraps to ErrInsufficientStock.
type StockError struct {
	ProductID string
	Size      string
	Color     string
	Requested int
}

func (e *StockError) Error() string {
	if e.Size != "" || e.Color != "" {
		return fmt.Sprintf("insufficient stock for product %s (size %q, color %q): requested %d",
			e.ProductID, e.Size, e.Color, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for product %s: requested %d", e.ProductID, e.Requested)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}
