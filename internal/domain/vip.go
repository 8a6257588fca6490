package domain

import "fmt"

// Tier is a loyalty classification, ordered platine > or > argent > bronze > standard.
type Tier string

const (
	TierStandard Tier = "standard"
	TierBronze   Tier = "bronze"
	TierArgent   Tier = "argent"
	TierOr       Tier = "or"
	TierPlatine  Tier = "platine"
)

// MinScore is the lowest loyalty score that reaches the tier.
func (t Tier) MinScore() float64 {
	switch t {
	case TierPlatine:
		return 85
	case TierOr:
		return 70
	case TierArgent:
		return 50
	case TierBronze:
		return 30
	case TierStandard:
		return 0
	default:
		panic(fmt.Sprintf("unknown tier %q", string(t)))
	}
}

// Next returns the tier above, or false for platine.
func (t Tier) Next() (Tier, bool) {
	switch t {
	case TierStandard:
		return TierBronze, true
	case TierBronze:
		return TierArgent, true
	case TierArgent:
		return TierOr, true
	case TierOr:
		return TierPlatine, true
	case TierPlatine:
		return "", false
	default:
		panic(fmt.Sprintf("unknown tier %q", string(t)))
	}
}

// Benefits lists the perks granted at the tier.
func (t Tier) Benefits() []string {
	switch t {
	case TierPlatine:
		return []string{"Remise de 10 % sur tous les achats", "Crédit prioritaire", "Livraison offerte", "Cadeau d'anniversaire"}
	case TierOr:
		return []string{"Remise de 7 % sur tous les achats", "Crédit prioritaire", "Livraison offerte"}
	case TierArgent:
		return []string{"Remise de 5 % sur tous les achats", "Accès aux promotions en avant-première"}
	case TierBronze:
		return []string{"Remise de 2 % sur tous les achats"}
	case TierStandard:
		return []string{}
	default:
		panic(fmt.Sprintf("unknown tier %q", string(t)))
	}
}

// TierFor maps a loyalty score to its tier.
func TierFor(score float64) Tier {
	switch {
	case score >= 85:
		return TierPlatine
	case score >= 70:
		return TierOr
	case score >= 50:
		return TierArgent
	case score >= 30:
		return TierBronze
	default:
		return TierStandard
	}
}

// VIPScore is the loyalty assessment of one client.
type VIPScore struct {
	ClientID         string        `json:"clientId"`
	ClientName       string        `json:"clientName"`
	Tier             Tier          `json:"tier"`
	Score            float64       `json:"score"`
	Components       VIPComponents `json:"components"`
	TotalSpent       float64       `json:"totalSpent"`
	NbPurchases      int           `json:"nbPurchases"`
	AvgPurchase      float64       `json:"avgPurchase"`
	LastPurchaseDays int           `json:"lastPurchaseDays"`
	Benefits         []string      `json:"benefits"`
	NextTier         Tier          `json:"nextTier,omitempty"`
	NextTierScore    float64       `json:"nextTierScore,omitempty"`
}

// VIPComponents breaks the loyalty score into its capped parts.
type VIPComponents struct {
	Spend     float64 `json:"spend"`
	Frequency float64 `json:"frequency"`
	Recency   float64 `json:"recency"`
	Basket    float64 `json:"basket"`
}

// Sum returns the total loyalty score.
func (c VIPComponents) Sum() float64 {
	return c.Spend + c.Frequency + c.Recency + c.Basket
}
