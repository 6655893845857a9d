package handlers

import (
	"time"

	"github.com/wick-sh/wick/internal/domain/consumer"
	"github.com/wick-sh/wick/internal/domain/entitlement"
	"github.com/wick-sh/wick/internal/domain/pool"
)

// PoolResponse is the wire representation of a pool.
type PoolResponse struct {
	ID                  string            `json:"id"`
	OwnerKey            string            `json:"owner_key"`
	ProductID           string            `json:"product_id"`
	ProductName         string            `json:"product_name"`
	ProvidedProducts    []ProductResponse `json:"provided_products"`
	Quantity            int64             `json:"quantity"`
	Consumed            int64             `json:"consumed"`
	Available           int64             `json:"available"`
	Unlimited           bool              `json:"unlimited"`
	StartDate           time.Time         `json:"start_date"`
	EndDate             time.Time         `json:"end_date"`
	SubscriptionID      string            `json:"subscription_id,omitempty"`
	SourceEntitlementID string            `json:"source_entitlement_id,omitempty"`
	ContractNumber      string            `json:"contract_number,omitempty"`
	AccountNumber       string            `json:"account_number,omitempty"`
	Attributes          map[string]string `json:"attributes,omitempty"`
}

// ProductResponse is the wire representation of a provided product.
type ProductResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
}

// ConsumerResponse is the wire representation of a consumer.
type ConsumerResponse struct {
	ID        string            `json:"id"`
	UUID      string            `json:"uuid"`
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	OwnerKey  string            `json:"owner_key"`
	Username  string            `json:"username,omitempty"`
	Facts     map[string]string `json:"facts,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// EntitlementResponse is the wire representation of an entitlement.
type EntitlementResponse struct {
	ID             string    `json:"id"`
	PoolID         string    `json:"pool_id"`
	ConsumerID     string    `json:"consumer_id"`
	OwnerKey       string    `json:"owner_key"`
	Quantity       int64     `json:"quantity"`
	Free           bool      `json:"free"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	ContractNumber string    `json:"contract_number,omitempty"`
	AccountNumber  string    `json:"account_number,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CertificateResponse carries an issued certificate and its key in PEM form.
type CertificateResponse struct {
	Serial        int64     `json:"serial"`
	EntitlementID string    `json:"entitlement_id"`
	Cert          string    `json:"cert"`
	Key           string    `json:"key"`
	CreatedAt     time.Time `json:"created_at"`
}

func toPoolResponse(p *pool.Pool) PoolResponse {
	provided := make([]ProductResponse, 0, len(p.ProvidedProducts()))
	for _, pp := range p.ProvidedProducts() {
		provided = append(provided, ProductResponse{
			ProductID:   pp.ProductID,
			ProductName: pp.ProductName,
		})
	}
	return PoolResponse{
		ID:                  p.ID(),
		OwnerKey:            p.OwnerKey(),
		ProductID:           p.ProductID(),
		ProductName:         p.ProductName(),
		ProvidedProducts:    provided,
		Quantity:            p.Quantity(),
		Consumed:            p.Consumed(),
		Available:           p.Available(),
		Unlimited:           p.IsUnlimited(),
		StartDate:           p.StartDate(),
		EndDate:             p.EndDate(),
		SubscriptionID:      p.SubscriptionID(),
		SourceEntitlementID: p.SourceEntitlementID(),
		ContractNumber:      p.ContractNumber(),
		AccountNumber:       p.AccountNumber(),
		Attributes:          p.Attributes(),
	}
}

func toConsumerResponse(c *consumer.Consumer) ConsumerResponse {
	return ConsumerResponse{
		ID:        c.ID(),
		UUID:      c.UUID(),
		Name:      c.Name(),
		Type:      c.TypeLabel(),
		OwnerKey:  c.OwnerKey(),
		Username:  c.Username(),
		Facts:     c.Facts(),
		CreatedAt: c.CreatedAt(),
	}
}

func toEntitlementResponse(e *entitlement.Entitlement) EntitlementResponse {
	return EntitlementResponse{
		ID:             e.ID(),
		PoolID:         e.PoolID(),
		ConsumerID:     e.ConsumerID(),
		OwnerKey:       e.OwnerKey(),
		Quantity:       e.Quantity(),
		Free:           e.IsFree(),
		StartDate:      e.StartDate(),
		EndDate:        e.EndDate(),
		ContractNumber: e.ContractNumber(),
		AccountNumber:  e.AccountNumber(),
		CreatedAt:      e.CreatedAt(),
	}
}

func toEntitlementResponses(ents []*entitlement.Entitlement) []EntitlementResponse {
	out := make([]EntitlementResponse, 0, len(ents))
	for _, e := range ents {
		out = append(out, toEntitlementResponse(e))
	}
	return out
}
