package ui

// Contact is a display name paired with its resolved gateway address.
type Contact struct {
	Name    string
	Address string
}

// Label renders the contact for pickers and tabs.
func (c Contact) Label() string {
	if c.Name == "" {
		return c.Address
	}
	return c.Name
}
