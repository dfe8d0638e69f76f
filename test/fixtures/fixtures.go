package fixtures

import (
	"time"

	"github.com/afrisend/comms-gateway/internal/model"
)

var (
	TestAccountFunded = model.Account{
		ID:        1,
		APIKey:    "test-api-key-1",
		Balance:   1000,
		Currency:  "USD",
		Active:    true,
		RateLimit: 100,
	}

	TestAccountSecondary = model.Account{
		ID:        2,
		APIKey:    "test-api-key-2",
		Balance:   500,
		Currency:  "USD",
		Active:    true,
		RateLimit: 50,
	}

	TestAccountZeroBalance = model.Account{
		ID:        4,
		APIKey:    "test-api-key-4",
		Balance:   0,
		Currency:  "USD",
		Active:    true,
		RateLimit: 10,
	}

	TestAccountInactive = model.Account{
		ID:       5,
		APIKey:   "test-api-key-5",
		Balance:  100,
		Currency: "USD",
		Active:   false,
	}
)

// Providers cover Ghana so the default test recipient always routes.
var (
	TestProviderAtlas = model.Provider{
		Name:               "atlas",
		Endpoint:           "http://atlas.test",
		SupportedCountries: []string{"GH", "NG", "KE"},
		SupportedNetworks:  []string{"mtn-gh", "mtn-ng"},
		Status:             model.ProviderStatusActive,
		Priority:           100,
	}

	TestProviderBaobab = model.Provider{
		Name:               "baobab",
		Endpoint:           "http://baobab.test",
		SupportedCountries: []string{"GH", "ZA"},
		SupportedNetworks:  []string{"mtn-gh"},
		Status:             model.ProviderStatusActive,
		Priority:           80,
	}

	TestProviderCowrie = model.Provider{
		Name:               "cowrie",
		Endpoint:           "http://cowrie.test",
		SupportedCountries: []string{"GH"},
		Status:             model.ProviderStatusActive,
		Priority:           60,
	}
)

var (
	ValidRecipients = []string{
		"+233244123456",
		"+2348031234567",
		"+254711222333",
	}

	InvalidRecipients = []string{
		"",
		"123",
		"invalid",
		"+",
		"abc123",
	}
)

func NewTestRate(country, network string, serviceType model.ServiceType, msgType model.MessageType, perUnit float64) *model.PricingRate {
	return &model.PricingRate{
		Country:       country,
		Network:       network,
		ServiceType:   serviceType,
		MessageType:   msgType,
		RatePerUnit:   perUnit,
		Currency:      "USD",
		EffectiveFrom: time.Now().Add(-24 * time.Hour),
	}
}

func NewTestSender(accountID int64, name string) *model.SenderIdentity {
	return &model.SenderIdentity{
		AccountID: accountID,
		Name:      name,
		Status:    model.SenderIdentityApproved,
		Active:    true,
		IsDefault: true,
	}
}

func NewTestSendRequest(recipient, content string) model.SendRequest {
	return model.SendRequest{
		Recipient: recipient,
		Content:   content,
	}
}

func NewTestOTPRequest(recipient string) model.OTPRequest {
	return model.OTPRequest{
		Recipient: recipient,
	}
}

func NewTestDeliveryReport(messageID int64, status string) *model.DeliveryReport {
	now := time.Now()
	return &model.DeliveryReport{
		MessageID:   messageID,
		Status:      status,
		DeliveredAt: &now,
	}
}

func MessageFilterByAccount(accountID int64) model.MessageFilter {
	return model.MessageFilter{
		AccountID: &accountID,
		Limit:     50,
		Offset:    0,
	}
}
