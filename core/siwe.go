package core

// SiweRequest is the caller-supplied configuration of a SIWE message
type SiweRequest struct {
	Address        string   `json:"address" binding:"required"`  // 20-byte hex address, 0x optional
	ChainID        uint64   `json:"chainId"`                     // EIP-155 chain id
	Domain         string   `json:"domain" binding:"required"`   // RFC 3986 authority requesting the signing
	Nonce          *string  `json:"nonce,omitempty"`             // Random token, generated when absent
	IssuedAt       string   `json:"issuedAt" binding:"required"` // RFC 3339 timestamp
	ExpirationTime *string  `json:"expirationTime,omitempty"`
	NotBefore      *string  `json:"notBefore,omitempty"`
	RequestID      *string  `json:"requestId,omitempty"`
	Resources      []string `json:"resources,omitempty"`
	Statement      *string  `json:"statement,omitempty"`
}
