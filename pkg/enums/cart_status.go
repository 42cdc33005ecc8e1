package enums

// CartStatus tracks whether a cart is still editable.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusConverted CartStatus = "converted"
)

func (s CartStatus) String() string {
	return string(s)
}

func (s CartStatus) IsValid() bool {
	return s == CartStatusActive || s == CartStatusConverted
}
