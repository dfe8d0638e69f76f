package model

// SenderIdentityStatus tracks the approval workflow of a sender id.
// Operators only accept registered display names.
type SenderIdentityStatus string

const (
	SenderIdentityApproved SenderIdentityStatus = "approved"
	SenderIdentityPending  SenderIdentityStatus = "pending"
	SenderIdentityRejected SenderIdentityStatus = "rejected"
)

type SenderIdentity struct {
	ID        int64                `json:"id"`
	AccountID int64                `json:"account_id"`
	Name      string               `json:"name"`
	Status    SenderIdentityStatus `json:"status"`
	Active    bool                 `json:"active"`
	IsDefault bool                 `json:"is_default"`
}

func (SenderIdentity) TableName() string { return "sender_identities" }

// Usable reports whether the identity may appear on outbound traffic.
func (s *SenderIdentity) Usable() bool {
	return s.Status == SenderIdentityApproved && s.Active
}
