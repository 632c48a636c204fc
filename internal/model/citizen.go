package model

type Citizen struct {
	Username      string  `json:"username"`
	WalletAddress string  `json:"walletAddress,omitempty"`
	FirstName     string  `json:"firstName,omitempty"`
	LastName      string  `json:"lastName,omitempty"`
	SocialClass   string  `json:"socialClass,omitempty"`
	Ducats        float64 `json:"ducats"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	Position      string  `json:"position,omitempty"`
}

// Principal is the authenticated caller of the gateway.
type Principal struct {
	Username      string
	WalletAddress string
}

func (p Principal) Is(username string) bool {
	return username != "" && p.Username == username
}
