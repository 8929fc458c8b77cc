package quickaction

// Action is a shortcut button on the welcome view. Its label is sent to the
// conversation backend verbatim.
type Action struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// Seed provides the default support menu.
func Seed() []Action {
	return []Action{
		{ID: "track-order", Label: "Track my order"},
		{ID: "return-item", Label: "Return an item"},
		{ID: "shipping-info", Label: "Shipping info"},
		{ID: "payment-methods", Label: "Payment methods"},
		{ID: "contact-support", Label: "Contact support"},
		{ID: "product-availability", Label: "Product availability"},
	}
}
